package store

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
)

// SnapshotVersion is the envelope version written by Encode.
const SnapshotVersion = 1

// ErrMalformed marks a snapshot that cannot be decoded.
var ErrMalformed = errors.New("store: malformed snapshot")

type envelope struct {
	Version int      `json:"v"`
	Entries []record `json:"entries"`
}

type record struct {
	Key     string `json:"k"`
	Content string `json:"c"`
	// WrittenAt in Unix milliseconds.
	WrittenAt int64 `json:"t"`
}

// Encode serializes a cache snapshot. Records are sorted by key so equal
// snapshots encode identically.
func Encode(entries map[string]cache.Entry) ([]byte, error) {
	env := envelope{Version: SnapshotVersion, Entries: make([]record, 0, len(entries))}
	for k, e := range entries {
		env.Entries = append(env.Entries, record{
			Key:       k,
			Content:   e.Content,
			WrittenAt: e.WrittenAt.UnixMilli(),
		})
	}
	sort.Slice(env.Entries, func(i, j int) bool { return env.Entries[i].Key < env.Entries[j].Key })

	b, err := json.Marshal(env)
	return b, errors.Wrap(err, "store: encode snapshot")
}

// Decode parses a snapshot written by Encode. Any structural problem,
// unknown version, or record without a key yields ErrMalformed.
func Decode(b []byte) (map[string]cache.Entry, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%v", err)
	}
	if env.Version != SnapshotVersion {
		return nil, errors.Wrapf(ErrMalformed, "version %d", env.Version)
	}
	out := make(map[string]cache.Entry, len(env.Entries))
	for i, r := range env.Entries {
		if r.Key == "" || r.WrittenAt <= 0 {
			return nil, errors.Wrapf(ErrMalformed, "record %d", i)
		}
		out[r.Key] = cache.Entry{
			Key:       r.Key,
			Content:   r.Content,
			WrittenAt: time.UnixMilli(r.WrittenAt),
		}
	}
	return out, nil
}
