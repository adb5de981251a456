// Package kv provides the key-value store used by stateful routers and
// middleware for routing memory: round-robin counters, user-to-group
// assignments, and return-route records with expiry.
package kv

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("dispatchmux/kv: key not found")

// Store is the key-value contract required by the dispatcher. Incr must
// be atomic; no cross-key transactions are required. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

// Key joins namespace parts with ":". The first part is conventionally
// the dispatcher name so that dispatchers sharing a store stay disjoint.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
