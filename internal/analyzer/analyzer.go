// Package analyzer orchestrates a full urban-growth analysis run: snapshot
// collection, per-year processing, quantitative metrics, and spatial
// analysis, assembled into a single report.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanatlas/osmgrowth/internal/cache"
	"github.com/urbanatlas/osmgrowth/internal/metrics"
	"github.com/urbanatlas/osmgrowth/internal/model"
	"github.com/urbanatlas/osmgrowth/internal/processor"
	"github.com/urbanatlas/osmgrowth/internal/spatial"
)

// DefaultFeatures are the OSM tag selectors collected when a request
// does not name its own.
var DefaultFeatures = []string{"building", "highway", "landuse", "amenity"}

// Collector fetches feature snapshots for a set of years.
type Collector interface {
	CollectSnapshots(ctx context.Context, bbox model.BoundingBox, features []string, years []int, synthetic bool) (map[int]*model.Collection, error)
}

// ResultStore persists analysis reports. *cache.Store satisfies it.
type ResultStore interface {
	PutJSON(namespace, key string, v any) error
}

// Request describes one analysis run.
type Request struct {
	BBox     model.BoundingBox `json:"bbox"`
	Years    []int             `json:"years"`
	Features []string          `json:"features"`

	GridKm            float64 `json:"grid_km"`
	ClusterEpsM       float64 `json:"cluster_eps_m"`
	ClusterMinSamples int     `json:"cluster_min_samples"`
	AccessDistanceM   float64 `json:"access_distance_m"`
	SyntheticHistory  bool    `json:"synthetic_history"`
}

// Metadata identifies a run and records its timing.
type Metadata struct {
	RunID      string            `json:"run_id"`
	BBox       model.BoundingBox `json:"bbox"`
	AreaKm2    float64           `json:"area_km2"`
	Years      []int             `json:"years"`
	Features   []string          `json:"features"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DurationMs int64             `json:"duration_ms"`
}

// YearCounts summarizes the data volume for one snapshot year.
type YearCounts struct {
	RawFeatures int `json:"raw_features"`
	Buildings   int `json:"buildings"`
	Roads       int `json:"roads"`
	Landuse     int `json:"landuse"`
}

// Quantitative bundles the numeric growth metrics.
type Quantitative struct {
	Summary metrics.SummaryResult       `json:"summary"`
	Landuse metrics.LanduseChangeResult `json:"landuse"`
}

// Spatial bundles the spatial analysis results. Cluster, accessibility,
// fragmentation, and connectivity figures describe the latest year.
type Spatial struct {
	Hotspots      spatial.HotspotResult                    `json:"hotspots"`
	Sprawl        spatial.SprawlResult                     `json:"sprawl"`
	Clusters      spatial.ClusterResult                    `json:"clusters"`
	Accessibility spatial.AccessibilityResult              `json:"accessibility"`
	Fragmentation map[string]spatial.CategoryFragmentation `json:"fragmentation"`
	Connectivity  spatial.ConnectivityResult               `json:"connectivity"`
}

// Report is the persisted run output. It holds only plain JSON values;
// geometry collections are exported separately.
type Report struct {
	Metadata     Metadata           `json:"metadata"`
	DataSummary  map[int]YearCounts `json:"data_summary"`
	Quantitative Quantitative       `json:"quantitative"`
	Spatial      Spatial            `json:"spatial"`
}

// Result pairs the report with the processed per-year collections for
// callers that export geometry.
type Result struct {
	Report          *Report
	BuildingsByYear map[int]*model.Collection
	RoadsByYear     map[int]*model.Collection
	LanduseByYear   map[int]*model.Collection
}

// LatestBuildings returns the building collection for the newest year.
func (r *Result) LatestBuildings() *model.Collection {
	return r.latest(r.BuildingsByYear)
}

// LatestRoads returns the road collection for the newest year.
func (r *Result) LatestRoads() *model.Collection {
	return r.latest(r.RoadsByYear)
}

// LatestLanduse returns the landuse collection for the newest year.
func (r *Result) LatestLanduse() *model.Collection {
	return r.latest(r.LanduseByYear)
}

func (r *Result) latest(byYear map[int]*model.Collection) *model.Collection {
	var best int
	var out *model.Collection
	for year, c := range byYear {
		if out == nil || year > best {
			best, out = year, c
		}
	}
	if out == nil {
		out = model.NewCollection()
	}
	return out
}

// Analyzer runs analysis requests.
type Analyzer struct {
	collector Collector
	store     ResultStore
	proc      *processor.Processor
	logger    *zap.Logger
}

// New builds an Analyzer. store may be nil to skip report persistence.
func New(collector Collector, store ResultStore) *Analyzer {
	return &Analyzer{
		collector: collector,
		store:     store,
		proc:      processor.New(),
		logger:    zap.L().With(zap.String("component", "analyzer")),
	}
}

type yearData struct {
	buildings *model.Collection
	roads     *model.Collection
	landuse   *model.Collection
	counts    YearCounts
}

// Analyze runs the full pipeline for one request. Only caller-input errors
// propagate; upstream data failures degrade to empty collections and the
// quantitative and spatial stages run independently of each other.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if err := req.BBox.Validate(); err != nil {
		return nil, eris.Wrap(err, "analyzer: invalid bounding box")
	}
	if len(req.Years) == 0 {
		return nil, eris.New("analyzer: at least one snapshot year is required")
	}
	features := req.Features
	if len(features) == 0 {
		features = DefaultFeatures
	}

	started := time.Now().UTC()
	runID := uuid.NewString()
	logger := a.logger.With(zap.String("run_id", runID))
	logger.Info("analysis started",
		zap.String("bbox", req.BBox.OverpassString()),
		zap.Ints("years", req.Years),
		zap.Strings("features", features))

	snapshots, err := a.collector.CollectSnapshots(ctx, req.BBox, features, req.Years, req.SyntheticHistory)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: collect snapshots")
	}

	g, gctx := errgroup.WithContext(ctx)
	years := append([]int(nil), req.Years...)
	sort.Ints(years)
	perYear := make([]yearData, len(years))
	for i, year := range years {
		i, year := i, year
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perYear[i] = a.processYear(snapshots[year])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "analyzer: process snapshots")
	}

	buildingsByYear := make(map[int]*model.Collection, len(years))
	roadsByYear := make(map[int]*model.Collection, len(years))
	landuseByYear := make(map[int]*model.Collection, len(years))
	dataSummary := make(map[int]YearCounts, len(years))
	for i, year := range years {
		buildingsByYear[year] = perYear[i].buildings
		roadsByYear[year] = perYear[i].roads
		landuseByYear[year] = perYear[i].landuse
		dataSummary[year] = perYear[i].counts
	}

	report := &Report{DataSummary: dataSummary}

	a.runStage(logger, "quantitative", func() {
		report.Quantitative = Quantitative{
			Summary: metrics.Summary(buildingsByYear, roadsByYear, req.BBox.AreaKm2()),
			Landuse: metrics.LanduseChanges(landuseByYear),
		}
	})

	a.runStage(logger, "spatial", func() {
		latestBuildings := buildingsByYear[years[len(years)-1]]
		latestRoads := roadsByYear[years[len(years)-1]]
		latestLanduse := landuseByYear[years[len(years)-1]]

		bbox := req.BBox
		report.Spatial = Spatial{
			Hotspots:      spatial.DetectHotspots(buildingsByYear, req.GridKm, &bbox),
			Sprawl:        spatial.AnalyzeSprawl(buildingsByYear, nil),
			Clusters:      spatial.DetectClusters(latestBuildings, req.ClusterEpsM, req.ClusterMinSamples),
			Accessibility: spatial.AnalyzeAccessibility(latestBuildings, latestRoads, req.AccessDistanceM),
			Fragmentation: spatial.Fragmentation(latestLanduse),
			Connectivity:  spatial.Connectivity(latestBuildings, latestRoads),
		}
	})

	finished := time.Now().UTC()
	report.Metadata = Metadata{
		RunID:      runID,
		BBox:       req.BBox,
		AreaKm2:    req.BBox.AreaKm2(),
		Years:      years,
		Features:   features,
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
	}

	a.persist(logger, req.BBox, years, features, report)

	logger.Info("analysis finished",
		zap.Int64("duration_ms", report.Metadata.DurationMs),
		zap.Int("years", len(years)))
	return &Result{
		Report:          report,
		BuildingsByYear: buildingsByYear,
		RoadsByYear:     roadsByYear,
		LanduseByYear:   landuseByYear,
	}, nil
}

func (a *Analyzer) processYear(raw *model.Collection) yearData {
	if raw == nil {
		raw = model.NewCollection()
	}
	buildings := a.proc.ProcessBuildings(raw.ByKind(model.KindBuilding))
	roads := a.proc.ProcessRoads(raw.ByKind(model.KindRoad))
	landuse := a.proc.ProcessLanduse(raw.ByKind(model.KindLanduse))
	return yearData{
		buildings: buildings,
		roads:     roads,
		landuse:   landuse,
		counts: YearCounts{
			RawFeatures: raw.Len(),
			Buildings:   buildings.Len(),
			Roads:       roads.Len(),
			Landuse:     landuse.Len(),
		},
	}
}

// runStage executes one analysis stage, containing any panic so the other
// stage still completes with its part of the report.
func (a *Analyzer) runStage(logger *zap.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis stage failed",
				zap.String("stage", name),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

func (a *Analyzer) persist(logger *zap.Logger, bbox model.BoundingBox, years []int, features []string, report *Report) {
	if a.store == nil {
		return
	}
	key := cache.Key(map[string]any{
		"bbox":     bbox.OverpassString(),
		"years":    years,
		"features": features,
		"type":     "report",
	})
	if err := a.store.PutJSON(cache.NamespaceResults, key, report); err != nil {
		logger.Warn("report persistence failed", zap.Error(err))
		return
	}
	logger.Debug("report persisted", zap.String("key", key))
}
