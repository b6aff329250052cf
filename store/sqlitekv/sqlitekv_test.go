package sqlitekv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/store/storetest"
)

func TestKV(t *testing.T) {
	t.Parallel()
	kv, err := Open(context.Background(), filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	storetest.Run(t, kv)
}

func TestKV_Reopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")

	kv, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, "k", []byte("v")))
	require.NoError(t, kv.Close())

	kv, err = Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}
