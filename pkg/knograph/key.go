package knograph

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// CacheKey derives the deterministic cache key for a request. Every
// parameter that influences the result participates, so a formatted answer
// and a ranked answer for the same anchor never collide.
func CacheKey(req ContextRequest) string {
	parts := []string{
		req.Anchor,
		strconv.Itoa(req.MaxPaths),
		strconv.Itoa(req.MaxDepth),
		req.DomainFilter,
		req.VersionConstraint,
		strconv.FormatBool(req.FormatForOutput),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
