package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanatlas/osmgrowth/internal/analyzer"
	"github.com/urbanatlas/osmgrowth/internal/export"
)

var (
	analyzeBBox       string
	analyzeYears      []int
	analyzeGridKm     float64
	analyzeOut        string
	analyzeGeoJSONDir string
	analyzeShapefile  string
	analyzeSynthetic  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full growth analysis over snapshot years",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bboxStr := analyzeBBox
		if bboxStr == "" {
			bboxStr = cfg.Analysis.BBox
		}
		bbox, err := parseBBox(bboxStr)
		if err != nil {
			return err
		}
		years := analyzeYears
		if len(years) == 0 {
			years = cfg.Analysis.Years
		}
		gridKm := analyzeGridKm
		if gridKm <= 0 {
			gridKm = cfg.Analysis.GridKm
		}

		store, err := initCache()
		if err != nil {
			return eris.Wrap(err, "init cache")
		}
		var resultStore analyzer.ResultStore
		if store != nil {
			resultStore = store
		}
		a := analyzer.New(newCollector(store), resultStore)

		result, err := a.Analyze(ctx, analyzer.Request{
			BBox:              bbox,
			Years:             years,
			Features:          cfg.Analysis.Features,
			GridKm:            gridKm,
			ClusterEpsM:       cfg.Analysis.ClusterEpsM,
			ClusterMinSamples: cfg.Analysis.ClusterMinSamples,
			AccessDistanceM:   cfg.Analysis.AccessDistanceM,
			SyntheticHistory:  analyzeSynthetic || cfg.Overpass.SyntheticHistory,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		report := result.Report

		if analyzeOut != "" {
			if err := export.WriteReport(analyzeOut, report); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", analyzeOut))
		}

		if analyzeGeoJSONDir != "" {
			if err := writeCollections(result, analyzeGeoJSONDir); err != nil {
				return err
			}
			zap.L().Info("geojson written", zap.String("dir", analyzeGeoJSONDir))
		}

		if analyzeShapefile != "" {
			if err := export.WriteHotspotShapefile(analyzeShapefile, report.Spatial.Hotspots); err != nil {
				return err
			}
			zap.L().Info("hotspot shapefile written", zap.String("path", analyzeShapefile))
		}

		if analyzeOut == "" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		return nil
	},
}

func writeCollections(result *analyzer.Result, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create output dir %s", dir)
	}
	if err := export.WriteGeoJSON(filepath.Join(dir, "buildings.geojson"), result.LatestBuildings()); err != nil {
		return eris.Wrap(err, "write buildings.geojson")
	}
	if err := export.WriteGeoJSON(filepath.Join(dir, "roads.geojson"), result.LatestRoads()); err != nil {
		return eris.Wrap(err, "write roads.geojson")
	}
	if err := export.WriteGeoJSON(filepath.Join(dir, "landuse.geojson"), result.LatestLanduse()); err != nil {
		return eris.Wrap(err, "write landuse.geojson")
	}
	return nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeBBox, "bbox", "", "bounding box as south,west,north,east (defaults to config)")
	analyzeCmd.Flags().IntSliceVar(&analyzeYears, "years", nil, "snapshot years to compare (defaults to config)")
	analyzeCmd.Flags().Float64Var(&analyzeGridKm, "grid-km", 0, "hotspot grid cell size in km (defaults to config)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "report JSON path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeGeoJSONDir, "geojson-dir", "", "directory for latest-year GeoJSON exports")
	analyzeCmd.Flags().StringVar(&analyzeShapefile, "shapefile", "", "hotspot shapefile path (.shp)")
	analyzeCmd.Flags().BoolVar(&analyzeSynthetic, "synthetic", false, "sample current data into synthetic historical snapshots")
	rootCmd.AddCommand(analyzeCmd)
}
