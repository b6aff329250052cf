package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/cache"
	"github.com/rikymarche-ctrl/anilist-extension-sub000/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the persisted notes cache",
}

var cacheDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the persisted cache as JSON lines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, closeKV, err := openPersister(cmd)
		if err != nil {
			return err
		}
		defer closeKV()

		entries, err := p.LoadAll(cmd.Context())
		if err != nil {
			return err
		}

		// Freshness is judged by a cache built with the configured windows.
		judge := cache.New(cfg.CacheOptions())
		defer judge.Close()

		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, k := range keys {
			e := entries[k]
			if err := enc.Encode(struct {
				Key       string    `json:"key"`
				Content   string    `json:"content"`
				Positive  bool      `json:"positive"`
				Fresh     bool      `json:"fresh"`
				WrittenAt time.Time `json:"written_at"`
			}{k, e.Content, e.HasContent(), judge.IsFresh(e), e.WrittenAt}); err != nil {
				return errors.Wrap(err, "write entry")
			}
		}
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the persisted cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, closeKV, err := openPersister(cmd)
		if err != nil {
			return err
		}
		defer closeKV()
		if err := p.Purge(cmd.Context()); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "cache purged")
		return err
	},
}

func init() {
	cacheCmd.AddCommand(cacheDumpCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

func openPersister(cmd *cobra.Command) (*store.Persister, func(), error) {
	kv, err := openKV(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	if kv == nil {
		return nil, nil, errors.New("store.driver is none: nothing is persisted")
	}
	return store.NewPersister(kv, cfg.Store.Key, logger), func() { _ = kv.Close() }, nil
}
