package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Store is the persistent key/value capability the analytics engine runs on.
// Values are opaque strings; callers own their encoding.
type Store interface {
	// Get returns ErrNotFound when the key has never been set or was removed.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// Lifecycle
	Close() error
}
