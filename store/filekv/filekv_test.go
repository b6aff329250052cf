package filekv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/store/storetest"
)

func TestKV(t *testing.T) {
	t.Parallel()
	kv, err := Open(filepath.Join(t.TempDir(), "nested", "dir"))
	require.NoError(t, err)
	storetest.Run(t, kv)
}

func TestKV_NoTempFilesLeft(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	kv, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Put(context.Background(), "a/b", []byte("x")))

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	require.Equal(t, "a%2Fb.json", names[0].Name())
}

func TestKV_CanceledContext(t *testing.T) {
	t.Parallel()
	kv, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, kv.Put(ctx, "k", nil), context.Canceled)
}
