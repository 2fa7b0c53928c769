// Package kv is the durable key-value layer behind filter state, the demo
// record store and the listing cache.
package kv

import (
	"context"
	"time"
)

// KV is a string-keyed byte store. A missing key is reported with ok=false
// and a nil error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Remove(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
