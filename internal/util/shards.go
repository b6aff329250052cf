package util

import "runtime"

// ReasonableShardCount picks a default shard count based on CPU parallelism:
// nextPow2(GOMAXPROCS), clamped to [1..64]. Annotation caches hold thousands
// of entries, not millions, so fewer shards than a general-purpose cache.
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p)))
	if n > 64 {
		n = 64
	}
	return n
}

// ShardIndex maps a 64-bit hash to a shard index.
// Uses a mask for power-of-two counts and modulo otherwise.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}
