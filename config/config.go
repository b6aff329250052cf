// Package config loads runtime settings from defaults, an optional file and
// NOTES_* environment variables, in increasing precedence.
package config

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/anilist"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/presenter"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

// EnvPrefix prefixes every environment override; "cache.positive_ttl"
// becomes NOTES_CACHE_POSITIVE_TTL.
const EnvPrefix = "NOTES"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Store drivers.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the full runtime configuration, one section per component.
type Config struct {
	Cache     Cache     `mapstructure:"cache"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Presenter Presenter `mapstructure:"presenter"`
	Store     Store     `mapstructure:"store"`
	AniList   AniList   `mapstructure:"anilist"`
	Log       Log       `mapstructure:"log"`
	Metrics   Metrics   `mapstructure:"metrics"`
}

// Cache configures the annotation cache.
type Cache struct {
	PositiveTTL     time.Duration `mapstructure:"positive_ttl"`
	NegativeTTL     time.Duration `mapstructure:"negative_ttl"`
	MaxStale        time.Duration `mapstructure:"max_stale"`
	Capacity        int           `mapstructure:"capacity"`
	PersistInterval time.Duration `mapstructure:"persist_interval"`
}

// Scheduler configures request admission and pacing.
type Scheduler struct {
	RequestBudget     int           `mapstructure:"request_budget"`
	WindowDuration    time.Duration `mapstructure:"window_duration"`
	// InterRequestDelay spaces consecutive fetches; 0 disables spacing.
	InterRequestDelay time.Duration `mapstructure:"inter_request_delay"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
}

// Presenter configures hover timing.
type Presenter struct {
	ShowDelay        time.Duration `mapstructure:"show_delay"`
	HideDelay        time.Duration `mapstructure:"hide_delay"`
	PinDuration      time.Duration `mapstructure:"pin_duration"`
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`
	HideAnimation    time.Duration `mapstructure:"hide_animation"`
}

// Store selects where the cache snapshot is persisted.
type Store struct {
	// Driver is one of none, memory, file, sqlite, redis.
	Driver string `mapstructure:"driver"`
	// Path is the directory (file) or database file (sqlite).
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	Key      string `mapstructure:"key"`
}

// AniList configures the GraphQL client.
type AniList struct {
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Addr serves /metrics when non-empty, e.g. ":9090".
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.positive_ttl", cache.DefaultPositiveTTL)
	v.SetDefault("cache.negative_ttl", cache.DefaultNegativeTTL)
	v.SetDefault("cache.max_stale", time.Duration(0))
	v.SetDefault("cache.capacity", cache.DefaultCapacity)
	v.SetDefault("cache.persist_interval", cache.DefaultPersistInterval)

	v.SetDefault("scheduler.request_budget", scheduler.DefaultRequestBudget)
	v.SetDefault("scheduler.window_duration", scheduler.DefaultWindowDuration)
	v.SetDefault("scheduler.inter_request_delay", scheduler.DefaultInterRequestDelay)
	v.SetDefault("scheduler.fetch_timeout", scheduler.DefaultFetchTimeout)

	v.SetDefault("presenter.show_delay", presenter.DefaultShowDelay)
	v.SetDefault("presenter.hide_delay", presenter.DefaultHideDelay)
	v.SetDefault("presenter.pin_duration", presenter.DefaultPinDuration)
	v.SetDefault("presenter.watchdog_interval", presenter.DefaultWatchdogInterval)
	v.SetDefault("presenter.hide_animation", presenter.DefaultHideAnimation)

	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.path", "anilist-notes")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.key", "")

	v.SetDefault("anilist.endpoint", anilist.DefaultEndpoint)
	v.SetDefault("anilist.token", "")
	v.SetDefault("anilist.timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.namespace", "anilist_notes")
}

// Load reads configuration. path may be empty to use defaults and the
// environment only. The result is validated.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "config: read %s", path)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	return c, c.Validate()
}

// Validate checks the cross-field constraints the components rely on.
func (c Config) Validate() error {
	var bad []string
	check := func(ok bool, msg string) {
		if !ok {
			bad = append(bad, msg)
		}
	}
	check(c.Cache.NegativeTTL > 0, "cache.negative_ttl must be positive")
	check(c.Cache.PositiveTTL > c.Cache.NegativeTTL, "cache.positive_ttl must exceed cache.negative_ttl")
	check(c.Cache.MaxStale >= 0, "cache.max_stale must not be negative")
	check(c.Cache.Capacity > 0, "cache.capacity must be positive")
	check(c.Cache.PersistInterval > 0, "cache.persist_interval must be positive")

	check(c.Scheduler.RequestBudget > 0, "scheduler.request_budget must be positive")
	check(c.Scheduler.WindowDuration > 0, "scheduler.window_duration must be positive")
	check(c.Scheduler.InterRequestDelay >= 0, "scheduler.inter_request_delay must not be negative")
	check(c.Scheduler.FetchTimeout > 0, "scheduler.fetch_timeout must be positive")

	check(c.Presenter.ShowDelay > 0, "presenter.show_delay must be positive")
	check(c.Presenter.HideDelay > c.Presenter.ShowDelay, "presenter.hide_delay must exceed presenter.show_delay")
	check(c.Presenter.PinDuration > 0, "presenter.pin_duration must be positive")

	switch c.Store.Driver {
	case DriverNone, DriverMemory:
	case DriverFile, DriverSQLite:
		check(c.Store.Path != "", "store.path is required for driver "+c.Store.Driver)
	case DriverRedis:
		check(c.Store.RedisURL != "", "store.redis_url is required for driver redis")
	default:
		bad = append(bad, "store.driver: unknown driver "+c.Store.Driver)
	}

	_, err := parseLevel(c.Log.Level)
	check(err == nil, "log.level must be debug, info, warn or error")
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format must be text or json")

	if len(bad) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(bad, "; "))
	}
	return nil
}

// CacheOptions converts the cache section. Persistence, metrics, logger and
// clock are left for the caller to wire.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		PositiveTTL:     c.Cache.PositiveTTL,
		NegativeTTL:     c.Cache.NegativeTTL,
		MaxStale:        c.Cache.MaxStale,
		Capacity:        c.Cache.Capacity,
		PersistInterval: c.Cache.PersistInterval,
	}
}

// SchedulerOptions converts the scheduler section. A zero delay is passed on
// as "no spacing" rather than left for the scheduler's default.
func (c Config) SchedulerOptions() scheduler.Options {
	delay := c.Scheduler.InterRequestDelay
	if delay == 0 {
		delay = -1
	}
	return scheduler.Options{
		RequestBudget:     c.Scheduler.RequestBudget,
		WindowDuration:    c.Scheduler.WindowDuration,
		InterRequestDelay: delay,
		FetchTimeout:      c.Scheduler.FetchTimeout,
	}
}

// PresenterOptions converts the presenter section.
func (c Config) PresenterOptions() presenter.Options {
	return presenter.Options{
		ShowDelay:        c.Presenter.ShowDelay,
		HideDelay:        c.Presenter.HideDelay,
		PinDuration:      c.Presenter.PinDuration,
		WatchdogInterval: c.Presenter.WatchdogInterval,
		HideAnimation:    c.Presenter.HideAnimation,
	}
}

// AniListOptions converts the anilist section.
func (c Config) AniListOptions() anilist.Options {
	return anilist.Options{
		Endpoint: c.AniList.Endpoint,
		Token:    c.AniList.Token,
		Timeout:  c.AniList.Timeout,
	}
}

// NewLogger builds the process logger described by the log section.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(s))
	return lvl, errors.Wrapf(err, "config: log level %q", s)
}
