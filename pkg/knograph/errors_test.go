package knograph

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"retrieval upstream", &RetrievalError{Kind: KindUpstreamUnavailable, Op: "answer_context"}, ErrTypeUpstream},
		{"retrieval timeout", &RetrievalError{Kind: KindTimeout, Op: "answer_context"}, ErrTypeTimeout},
		{"retrieval malformed", &RetrievalError{Kind: KindMalformedPath, Op: "prune"}, ErrTypeMalformed},
		{"retrieval cache", &RetrievalError{Kind: KindCacheWriteRejected, Op: "put"}, ErrTypeCache},
		{"wrapped retrieval error", fmt.Errorf("outer: %w", &RetrievalError{Kind: KindTimeout}), ErrTypeTimeout},
		{"deadline exceeded", context.DeadlineExceeded, ErrTypeTimeout},
		{"timeout string", errors.New("operation timeout after 10s"), ErrTypeTimeout},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), ErrTypeUpstream},
		{"connection reset", errors.New("read: connection reset by peer"), ErrTypeUpstream},
		{"no such host", errors.New("lookup graph.internal: no such host"), ErrTypeUpstream},
		{"sql error", errors.New("sql: database is locked"), ErrTypeCache},
		{"constraint violation", errors.New("UNIQUE constraint failed: entries.key"), ErrTypeCache},
		{"validation", errors.New("anchor is required"), ErrTypeValidation},
		{"invalid input", errors.New("invalid depth"), ErrTypeValidation},
		{"unknown", errors.New("something odd happened"), ErrTypeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetrievalError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := &RetrievalError{Kind: KindUpstreamUnavailable, Op: "answer_context", Err: cause}

	if !errors.Is(err, cause) {
		t.Fatal("Unwrap should expose the cause")
	}
	msg := err.Error()
	if msg != "answer_context: upstream_unavailable: socket closed" {
		t.Fatalf("Error() = %q", msg)
	}

	bare := &RetrievalError{Kind: KindTimeout, Op: "answer_context"}
	if bare.Error() != "answer_context: timeout" {
		t.Fatalf("Error() = %q", bare.Error())
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &RetrievalError{Kind: KindTimeout})
	if !IsKind(err, KindTimeout) {
		t.Fatal("IsKind should see through wrapping")
	}
	if IsKind(err, KindUpstreamUnavailable) {
		t.Fatal("IsKind must match the exact kind")
	}
	if IsKind(errors.New("plain"), KindTimeout) {
		t.Fatal("plain errors are no kind at all")
	}
}
