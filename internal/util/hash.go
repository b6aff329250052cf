// Package util contains internal helpers (hashing, sharding, padding).
//
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// KeyHash hashes a cache key for shard selection.
// Keys are "{subject}-{context}" strings, so a string hasher is all we need.
func KeyHash(k string) uint64 {
	return xxhash.Sum64String(k)
}
