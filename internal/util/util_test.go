package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 64: 64, 65: 128}
	for in, want := range cases {
		require.Equal(t, want, NextPow2(in), "NextPow2(%d)", in)
	}
	require.Equal(t, uint64(1<<63), NextPow2(1<<63+1))
}

func TestShardIndex_InRange(t *testing.T) {
	t.Parallel()

	for _, shards := range []int{1, 3, 8, 17} {
		for _, k := range []string{"", "1-1", "5120-21", "u1-5"} {
			idx := ShardIndex(KeyHash(k), shards)
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, shards)
		}
	}
}

func TestKeyHash_Stable(t *testing.T) {
	t.Parallel()

	require.Equal(t, KeyHash("42-7"), KeyHash("42-7"))
	require.NotEqual(t, KeyHash("42-7"), KeyHash("7-42"))
}

func TestReasonableShardCount(t *testing.T) {
	t.Parallel()

	n := ReasonableShardCount()
	require.True(t, IsPowerOfTwo(uint64(n)))
	require.LessOrEqual(t, n, 64)
}
