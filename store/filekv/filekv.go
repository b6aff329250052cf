// Package filekv stores each key as a file in a directory.
package filekv

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/store"
)

// KV is a directory of files, one per key. Writes go through a temporary
// file and a rename so a crash never leaves a torn value behind.
type KV struct {
	dir string
}

// Open creates dir if needed and returns a KV rooted there.
func Open(dir string) (*KV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "filekv: create %s", dir)
	}
	return &KV{dir: dir}, nil
}

// Dir returns the root directory.
func (kv *KV) Dir() string { return kv.dir }

func (kv *KV) path(key string) string {
	return filepath.Join(kv.dir, url.PathEscape(key)+".json")
}

// Get reads the file for key, or returns store.ErrNotFound.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(kv.path(key))
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound
	}
	return b, errors.Wrapf(err, "filekv: read %s", key)
}

// Put replaces the file for key atomically.
func (kv *KV) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(kv.dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "filekv: temp file")
	}
	tmp := f.Name()
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "filekv: write %s", key)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "filekv: close %s", key)
	}
	if err := os.Rename(tmp, kv.path(key)); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "filekv: rename %s", key)
	}
	return nil
}

// Delete removes the file for key; a missing file is store.ErrNotFound.
func (kv *KV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(kv.path(key))
	if os.IsNotExist(err) {
		return store.ErrNotFound
	}
	return errors.Wrapf(err, "filekv: remove %s", key)
}

// Close is a no-op; files are closed after every call.
func (kv *KV) Close() error { return nil }

var _ store.KV = (*KV)(nil)
