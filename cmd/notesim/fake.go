package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

// fakeFetcher stands in for AniList: fixed latency, a share of entries
// without notes and an optional periodic rate limit.
type fakeFetcher struct {
	latency    time.Duration
	emptyRatio float64
	limitEvery int64

	n atomic.Int64
}

func (f *fakeFetcher) Fetch(ctx context.Context, userID, mediaID string) (string, error) {
	if err := sleep(ctx, f.latency); err != nil {
		return "", err
	}
	n := f.n.Add(1)
	if f.limitEvery > 0 && n%f.limitEvery == 0 {
		return "", errors.Wrap(scheduler.ErrRateLimited, "fake")
	}
	if rand.Float64() < f.emptyRatio {
		return "", nil
	}
	return fmt.Sprintf("Notes by **%s** on media %s\n\nrewatch: %d", userID, mediaID, rand.IntN(5)), nil
}
