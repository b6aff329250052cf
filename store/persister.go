package store

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
)

// DefaultSnapshotKey is the KV key the cache snapshot is stored under.
const DefaultSnapshotKey = "anilist-notes/cache"

// Persister stores a cache snapshot in a KV.
type Persister struct {
	kv  KV
	key string
	log *slog.Logger
}

// NewPersister returns a Persister writing under key (DefaultSnapshotKey
// when empty). logger may be nil.
func NewPersister(kv KV, key string, logger *slog.Logger) *Persister {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Persister{kv: kv, key: key, log: logger.With("component", "store")}
}

// LoadAll returns the stored snapshot. A missing or malformed snapshot
// yields an empty map; only backend failures are returned as errors.
func (p *Persister) LoadAll(ctx context.Context) (map[string]cache.Entry, error) {
	b, err := p.kv.Get(ctx, p.key)
	if errors.Is(err, ErrNotFound) {
		return map[string]cache.Entry{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: load %s", p.key)
	}
	entries, err := Decode(b)
	if err != nil {
		p.log.Warn("discarding malformed cache snapshot", "key", p.key, "error", err)
		return map[string]cache.Entry{}, nil
	}
	return entries, nil
}

// SaveAll replaces the stored snapshot with entries.
func (p *Persister) SaveAll(ctx context.Context, entries map[string]cache.Entry) error {
	b, err := Encode(entries)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.kv.Put(ctx, p.key, b), "store: save %s", p.key)
}

// Purge deletes the stored snapshot.
func (p *Persister) Purge(ctx context.Context) error {
	err := p.kv.Delete(ctx, p.key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return errors.Wrapf(err, "store: purge %s", p.key)
}

var _ cache.Persistence = (*Persister)(nil)
