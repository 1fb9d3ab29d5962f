// Package cache provides pluggable caching for FloraKB.
//
// Two backends are available: a file-based cache for CLI usage and a Redis
// cache for server deployments where several API replicas share one store.
// A null cache disables caching without changing call sites.
//
// Cached data is opaque bytes; callers marshal/unmarshal themselves. Keys are
// generated through a Keyer so that every component derives keys the same
// way (and so tests can assert on key construction rather than string
// concatenation scattered across handlers).
package cache

import (
	"context"
	"time"
)

// Cache is the common interface implemented by all backends.
type Cache interface {
	// Get retrieves a value. The second return value reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a time-to-live. A ttl of 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys for the query surfaces worth caching.
type Keyer interface {
	// SearchKey identifies one taxa search: endpoint path plus the full
	// filter/pagination parameter set.
	SearchKey(path string, params map[string]string) string

	// TreeKey identifies one tree query (root, subtree, ancestors,
	// children) by operation, taxon id and depth bound.
	TreeKey(op string, id int64, depth int) string
}

// DefaultKeyer hashes parameters into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// SearchKey generates a key for a taxa search request.
func (k *DefaultKeyer) SearchKey(path string, params map[string]string) string {
	return hashKey("search", path, params)
}

// TreeKey generates a key for a tree query.
func (k *DefaultKeyer) TreeKey(op string, id int64, depth int) string {
	return hashKey("tree", op, id, depth)
}

// ScopedKeyer wraps a Keyer with a prefix, isolating key spaces when several
// datasets share one Redis instance.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every key.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// SearchKey generates a prefixed search key.
func (k *ScopedKeyer) SearchKey(path string, params map[string]string) string {
	return k.prefix + k.inner.SearchKey(path, params)
}

// TreeKey generates a prefixed tree query key.
func (k *ScopedKeyer) TreeKey(op string, id int64, depth int) string {
	return k.prefix + k.inner.TreeKey(op, id, depth)
}
