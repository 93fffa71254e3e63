package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanatlas/osmgrowth/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "osmgrowth",
	Short: "Urban growth analysis from OpenStreetMap data",
	Long:  "Collects buildings, roads, and landuse from the Overpass API, compares snapshot years, and reports growth metrics, hotspots, sprawl, clustering, and road accessibility.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
