// Package storetest is a conformance suite for store.KV implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/store"
)

// Run exercises kv. The suite uses keys with the "storetest/" prefix and
// removes them before returning.
func Run(t *testing.T, kv store.KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		_, err := kv.Get(ctx, "storetest/missing")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, kv.Delete(ctx, "storetest/missing"), store.ErrNotFound)
	})

	t.Run("put get overwrite delete", func(t *testing.T) {
		key := "storetest/a b:1-2"
		require.NoError(t, kv.Put(ctx, key, []byte("one")))
		got, err := kv.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, "one", string(got))

		require.NoError(t, kv.Put(ctx, key, []byte("two")))
		got, err = kv.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, "two", string(got))

		require.NoError(t, kv.Delete(ctx, key))
		_, err = kv.Get(ctx, key)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("persister round trip", func(t *testing.T) {
		p := store.NewPersister(kv, "storetest/snapshot", nil)
		t.Cleanup(func() { _ = p.Purge(ctx) })

		empty, err := p.LoadAll(ctx)
		require.NoError(t, err)
		require.Empty(t, empty)

		at := time.UnixMilli(1_700_000_000_000)
		in := map[string]cache.Entry{
			"1-10": {Key: "1-10", Content: "**great**", WrittenAt: at},
			"1-11": {Key: "1-11", Content: "", WrittenAt: at.Add(time.Second)},
		}
		require.NoError(t, p.SaveAll(ctx, in))
		out, err := p.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, out, 2)
		for k, e := range in {
			require.Equal(t, e.Content, out[k].Content)
			require.True(t, e.WrittenAt.Equal(out[k].WrittenAt))
		}
	})
}
