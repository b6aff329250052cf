package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/anilist"
	pmet "github.com/rikymarche-ctrl/anilist-extension-sub000/metrics/prom"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/presenter"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/render"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/session"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/store"
)

var runFlags struct {
	user    string
	media   []int
	count   int
	rounds  int
	dwell   time.Duration
	gap     time.Duration
	click   int
	hydrate bool
	drain   time.Duration
	quiet   bool

	fake        bool
	fakeLatency time.Duration
	fakeEmpty   float64
	fakeLimit   int

	metricsAddr string
	pprofAddr   string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep the pointer over a list of entries and report",
	Long: `run hovers each entry in turn for --dwell, leaves for --gap and clicks
every --click-every entries. Rendered surfaces are printed as HTML.`,
	Args: cobra.NoArgs,
	RunE: runSim,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.user, "user", "1", "AniList user id")
	f.IntSliceVar(&runFlags.media, "media", nil, "AniList media ids (default: 1..--count)")
	f.IntVar(&runFlags.count, "count", 20, "number of entries when --media is empty")
	f.IntVar(&runFlags.rounds, "rounds", 1, "passes over the list")
	f.DurationVar(&runFlags.dwell, "dwell", 400*time.Millisecond, "hover time per entry")
	f.DurationVar(&runFlags.gap, "gap", 100*time.Millisecond, "pause between entries")
	f.IntVar(&runFlags.click, "click-every", 0, "click instead of hover every n entries (0 = never)")
	f.BoolVar(&runFlags.hydrate, "hydrate", false, "queue every entry up front")
	f.DurationVar(&runFlags.drain, "drain", 5*time.Second, "wait this long for queued requests after the sweep")
	f.BoolVar(&runFlags.quiet, "quiet", false, "do not print rendered surfaces")

	f.BoolVar(&runFlags.fake, "fake", false, "use a synthetic fetcher instead of AniList")
	f.DurationVar(&runFlags.fakeLatency, "fake-latency", 80*time.Millisecond, "synthetic fetch latency")
	f.Float64Var(&runFlags.fakeEmpty, "fake-empty", 0.3, "share of synthetic entries without notes [0..1]")
	f.IntVar(&runFlags.fakeLimit, "fake-limit-every", 0, "answer every n-th synthetic fetch with a rate limit (0 = never)")

	f.StringVar(&runFlags.metricsAddr, "metrics", "", "serve Prometheus metrics at addr (default: metrics.addr)")
	f.StringVar(&runFlags.pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
}

func runSim(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if runFlags.pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", "addr", runFlags.pprofAddr)
			logger.Warn("pprof: stopped", "error", http.ListenAndServe(runFlags.pprofAddr, nil))
		}()
	}

	kv, err := openKV(ctx, cfg.Store)
	if err != nil {
		return err
	}
	if kv != nil {
		defer kv.Close()
	}

	ns := cfg.Metrics.Namespace
	cacheOpt := cfg.CacheOptions()
	cacheOpt.Metrics = pmet.NewCache(nil, ns, nil)
	if kv != nil {
		cacheOpt.Persistence = store.NewPersister(kv, cfg.Store.Key, logger)
	}
	schedOpt := cfg.SchedulerOptions()
	schedOpt.Metrics = pmet.NewScheduler(nil, ns, nil)

	var fetcher scheduler.Fetcher
	if runFlags.fake {
		fetcher = &fakeFetcher{
			latency:    runFlags.fakeLatency,
			emptyRatio: runFlags.fakeEmpty,
			limitEvery: int64(runFlags.fakeLimit),
		}
	} else {
		ao := cfg.AniListOptions()
		ao.Logger = logger
		client := anilist.New(ao)
		defer client.Close()
		fetcher = client
	}

	var shown atomic.Int64
	out := cmd.OutOrStdout()
	sink := render.New().Sink(func(v presenter.View, html string, err error) {
		if err != nil {
			logger.Warn("render failed", "key", v.Subject.Key(), "error", err)
			return
		}
		if !v.Visible {
			return
		}
		shown.Add(1)
		if !runFlags.quiet {
			fmt.Fprintf(out, "%s\t%s\n", v.Subject.Key(), html)
		}
	})

	sess := session.New(fetcher, sink, session.Options{
		Cache:     cacheOpt,
		Scheduler: schedOpt,
		Presenter: cfg.PresenterOptions(),
		Logger:    logger,
	})
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("closing session", "error", err)
		}
	}()

	subjects := buildSubjects()
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return sweep(gctx, sess, subjects)
	})

	addr := runFlags.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics: serving", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	cs := sess.Cache.Stats()
	ss := sess.Scheduler.Stats()
	hitRate := 0.0
	if n := cs.Hits + cs.Misses; n > 0 {
		hitRate = float64(cs.Hits) / float64(n) * 100
	}
	fmt.Fprintf(out, "entries=%d rounds=%d dur=%v fake=%v\n",
		len(subjects), runFlags.rounds, time.Since(start).Round(time.Millisecond), runFlags.fake)
	fmt.Fprintf(out, "shown=%d  cached=%d  hits=%d  misses=%d  hit-rate=%.2f%%\n",
		shown.Load(), cs.Entries, cs.Hits, cs.Misses, hitRate)
	fmt.Fprintf(out, "queued=%d  outstanding=%d  in-window=%d  rate-limited=%v\n",
		ss.Queued, ss.Outstanding, ss.CountInWindow, ss.RateLimited)
	return nil
}

func buildSubjects() []scheduler.Subject {
	media := runFlags.media
	if len(media) == 0 {
		for i := 1; i <= runFlags.count; i++ {
			media = append(media, i)
		}
	}
	out := make([]scheduler.Subject, 0, len(media))
	for _, m := range media {
		out = append(out, scheduler.Subject{ID: runFlags.user, ContextID: strconv.Itoa(m)})
	}
	return out
}

// sweep plays the scripted pointer movement, then waits for the queue to
// drain or --drain to pass.
func sweep(ctx context.Context, sess *session.Session, subjects []scheduler.Subject) error {
	if runFlags.hydrate {
		n := sess.Hydrate(subjects)
		logger.Info("hydrated", "queued", n)
	}

	for round := 0; round < runFlags.rounds; round++ {
		for i, s := range subjects {
			if runFlags.click > 0 && i%runFlags.click == 0 {
				sess.Presenter.Click(s)
			} else {
				sess.Presenter.TriggerEnter(s)
			}
			if err := sleep(ctx, runFlags.dwell); err != nil {
				return err
			}
			sess.Presenter.TriggerLeave()
			if err := sleep(ctx, runFlags.gap); err != nil {
				return err
			}
		}
	}

	deadline := time.Now().Add(runFlags.drain)
	for sess.Scheduler.Stats().Outstanding > 0 && time.Now().Before(deadline) {
		if err := sleep(ctx, 50*time.Millisecond); err != nil {
			return err
		}
	}
	if n := sess.Scheduler.Stats().Outstanding; n > 0 {
		logger.Warn("queue not drained", "outstanding", n)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
