// Package rediskv is a store.KV backed by Redis, for sharing the cache
// between processes.
package rediskv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/store"
)

// DefaultPrefix namespaces every key written by KV.
const DefaultPrefix = "anilist-notes:"

// KV wraps a Redis client. Keys are stored under Prefix and never expire;
// entry freshness is decided by the cache, not by Redis.
type KV struct {
	client redis.UniversalClient
	prefix string
}

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *KV {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KV{client: client, prefix: prefix}
}

// Dial parses a redis:// URL, connects and pings the server.
func Dial(ctx context.Context, rawURL, prefix string) (*KV, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "rediskv: parse url")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "rediskv: ping %s", opts.Addr)
	}
	return New(client, prefix), nil
}

// Get returns the value under the prefixed key, or store.ErrNotFound.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := kv.client.Get(ctx, kv.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	return b, errors.Wrapf(err, "rediskv: get %s", key)
}

// Put sets the prefixed key with no expiry.
func (kv *KV) Put(ctx context.Context, key string, value []byte) error {
	return errors.Wrapf(kv.client.Set(ctx, kv.prefix+key, value, 0).Err(), "rediskv: set %s", key)
}

// Delete removes the prefixed key, or returns store.ErrNotFound.
func (kv *KV) Delete(ctx context.Context, key string) error {
	n, err := kv.client.Del(ctx, kv.prefix+key).Result()
	if err != nil {
		return errors.Wrapf(err, "rediskv: del %s", key)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Close closes the underlying client.
func (kv *KV) Close() error { return kv.client.Close() }

var _ store.KV = (*KV)(nil)
