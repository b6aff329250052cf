// Package store persists the annotation cache across sessions.
//
// Backends implement KV; Persister adapts any KV to cache.Persistence by
// storing the whole cache as one versioned snapshot under a single key.
package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by KV.Get when the key is absent.
var ErrNotFound = errors.New("store: not found")

// KV is a minimal byte-oriented key/value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
