package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanatlas/osmgrowth/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the filesystem cache",
}

// openCache ignores the enabled flag: maintenance commands should work on
// a cache that analysis runs currently bypass.
func openCache() (*cache.Store, error) {
	dir := cfg.Cache.Dir
	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	store, err := cache.New(dir, ttl)
	if err != nil {
		return nil, eris.Wrapf(err, "open cache %s", dir)
	}
	return store, nil
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-namespace entry counts and sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		stats, err := store.Stats()
		if err != nil {
			return eris.Wrap(err, "cache stats")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [namespace]",
	Short: "Remove cached entries, optionally from a single namespace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		namespace := ""
		if len(args) == 1 {
			namespace = args[0]
		}
		removed, err := store.Clear(namespace)
		if err != nil {
			return eris.Wrap(err, "cache clear")
		}
		zap.L().Info("cache cleared",
			zap.String("namespace", namespace),
			zap.Int("removed", removed),
		)
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		removed, err := store.CleanupExpired()
		if err != nil {
			return eris.Wrap(err, "cache cleanup")
		}
		zap.L().Info("expired entries removed", zap.Int("removed", removed))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheCleanupCmd)
	rootCmd.AddCommand(cacheCmd)
}
