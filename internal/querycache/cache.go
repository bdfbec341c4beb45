// Package querycache stores pipeline responses keyed by a digest of the
// normalized query text. Caching is best-effort: backend failures degrade to
// misses/no-ops and are logged, never propagated.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type Cache interface {
	// Get returns the stored payload, or false on a miss. Entries past
	// their TTL behave as misses even if not yet purged.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Put stores payload under key for ttl, overwriting any prior entry.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration)
}

// KeyFor derives the cache key from query text: lowercase, trim, then hash.
// Equal normalized text always yields equal keys.
func KeyFor(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:32]
}
