package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/config"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/store"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/store/filekv"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/store/memkv"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/store/rediskv"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/store/sqlitekv"
)

var (
	// configPath points at an optional YAML/TOML/JSON config file.
	configPath string

	// cfg and logger are populated before any subcommand runs.
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "notesim",
	Short: "Exercise the AniList notes hover core from the command line",
	Long: `notesim runs the cache, request scheduler and hover presenter without a
browser. Settings come from --config and NOTES_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		logger, err = cfg.NewLogger(os.Stderr)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"Path to a config file (default: defaults + environment)",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openKV opens the backend named by the store section. It returns nil for
// driver "none".
func openKV(ctx context.Context, c config.Store) (store.KV, error) {
	switch c.Driver {
	case config.DriverNone:
		return nil, nil
	case config.DriverMemory:
		return memkv.New(), nil
	case config.DriverFile:
		kv, err := filekv.Open(c.Path)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create sqlite directory")
		}
		kv, err := sqlitekv.Open(ctx, c.Path)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case config.DriverRedis:
		kv, err := rediskv.Dial(ctx, c.RedisURL, "")
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, errors.Wrapf(config.ErrInvalid, "store driver %q", c.Driver)
	}
}
