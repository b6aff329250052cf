// Package memkv is an in-process store.KV, for tests and ephemeral sessions.
package memkv

import (
	"context"
	"sync"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/store"
)

// KV is a mutex-guarded map. Values are copied on the way in and out.
type KV struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// New returns an empty KV.
func New() *KV { return &KV{m: make(map[string][]byte)} }

func (kv *KV) Get(_ context.Context, key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.m[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (kv *KV) Put(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	kv.m[key] = append([]byte(nil), value...)
	kv.mu.Unlock()
	return nil
}

func (kv *KV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.m[key]; !ok {
		return store.ErrNotFound
	}
	delete(kv.m, key)
	return nil
}

func (kv *KV) Close() error { return nil }

var _ store.KV = (*KV)(nil)
