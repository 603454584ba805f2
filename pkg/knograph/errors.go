package knograph

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error type constants for classification
const (
	ErrTypeUpstream   = "upstream"
	ErrTypeTimeout    = "timeout"
	ErrTypeMalformed  = "malformed_path"
	ErrTypeCache      = "cache"
	ErrTypeValidation = "validation"
	ErrTypeUnknown    = "unknown"
)

// Kind identifies the failure mode of a retrieval.
type Kind string

const (
	// KindUpstreamUnavailable means the graph store was unreachable or
	// errored. Not retried automatically; surfaced to the caller.
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindTimeout means the upstream call exceeded the caller budget.
	// Surfaced with no partial cache writes.
	KindTimeout Kind = "timeout"

	// KindMalformedPath marks a path violating the vertex/edge invariant.
	// Such paths are dropped and scoring continues; this kind appears only
	// in logs, never as a request-level failure.
	KindMalformedPath Kind = "malformed_path"

	// KindCacheWriteRejected marks a best-effort cache write that was
	// refused. Never surfaced as a caller error.
	KindCacheWriteRejected Kind = "cache_write_rejected"
)

// RetrievalError is the structured error returned by AnswerContext.
type RetrievalError struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a RetrievalError of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *RetrievalError
	return errors.As(err, &re) && re.Kind == kind
}

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	var re *RetrievalError
	if errors.As(err, &re) {
		switch re.Kind {
		case KindUpstreamUnavailable:
			return ErrTypeUpstream
		case KindTimeout:
			return ErrTypeTimeout
		case KindMalformedPath:
			return ErrTypeMalformed
		case KindCacheWriteRejected:
			return ErrTypeCache
		}
	}

	errStrLower := strings.ToLower(err.Error())

	// Check for timeout errors
	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errStrLower, "timeout") ||
		strings.Contains(errStrLower, "deadline exceeded") {
		return ErrTypeTimeout
	}

	// Check for network/upstream errors
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return ErrTypeUpstream
	}
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "connection reset") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "network is unreachable") ||
		strings.Contains(errStrLower, "dial tcp") ||
		strings.Contains(errStrLower, "eof") {
		return ErrTypeUpstream
	}

	// Check for storage errors
	if strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "constraint") {
		return ErrTypeCache
	}

	// Check for validation errors
	if strings.Contains(errStrLower, "validation") ||
		strings.Contains(errStrLower, "invalid") ||
		strings.Contains(errStrLower, "required") ||
		strings.Contains(errStrLower, "cannot be empty") ||
		strings.Contains(errStrLower, "must be") {
		return ErrTypeValidation
	}

	return ErrTypeUnknown
}
