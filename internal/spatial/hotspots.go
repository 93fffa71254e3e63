// Package spatial detects urban growth patterns: grid-based hotspots,
// sprawl characteristics, building clusters, road accessibility, and
// landscape fragmentation.
package spatial

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/urbanatlas/osmgrowth/internal/geo"
	"github.com/urbanatlas/osmgrowth/internal/model"
)

// CellGrowth is one grid cell's density change over a year pair.
type CellGrowth struct {
	CellID            string            `json:"cell_id"`
	Box               model.BoundingBox `json:"box"`
	AbsoluteGrowth    float64           `json:"absolute_growth"`
	RelativeGrowthPct float64           `json:"relative_growth_pct"`
}

// PeriodHotspots holds one consecutive-year pair's hotspot cells.
type PeriodHotspots struct {
	ThresholdGrowth float64      `json:"threshold_growth"`
	Cells           []CellGrowth `json:"cells"`
}

// HotspotResult is the full grid growth analysis.
type HotspotResult struct {
	GridKm    float64                    `json:"grid_km"`
	BBox      model.BoundingBox          `json:"bbox"`
	Years     []int                      `json:"years"`
	Densities map[int]map[string]float64 `json:"densities"`
	Hotspots  map[string]PeriodHotspots  `json:"hotspots"`
}

// DetectHotspots finds grid cells in the top 20% of building density growth
// for each consecutive year pair. When bbox is nil, the extent of the data
// is used. A feature counts toward every cell its envelope intersects.
// Returns an empty result for fewer than two years of data.
func DetectHotspots(buildingsByYear map[int]*model.Collection, gridKm float64, bbox *model.BoundingBox) HotspotResult {
	out := HotspotResult{
		GridKm:    gridKm,
		Densities: make(map[int]map[string]float64),
		Hotspots:  make(map[string]PeriodHotspots),
	}
	if len(buildingsByYear) < 2 || gridKm <= 0 {
		return out
	}
	out.Years = sortedYears(buildingsByYear)

	box := bbox
	if box == nil {
		box = dataExtent(buildingsByYear)
		if box == nil {
			return out
		}
	}
	out.BBox = *box

	cells := geo.Grid(*box, gridKm)
	cellByID := make(map[string]geo.Cell, len(cells))
	for _, c := range cells {
		cellByID[c.ID] = c
	}

	for _, year := range out.Years {
		densities := make(map[string]float64, len(cells))
		for _, c := range cells {
			densities[c.ID] = 0
		}
		for _, f := range buildingsByYear[year].Features {
			if f.Geometry == nil {
				continue
			}
			b := f.Geometry.Bounds()
			for _, c := range cells {
				if c.IntersectsEnvelope(b.Min(0), b.Min(1), b.Max(0), b.Max(1)) {
					densities[c.ID] += 1 / c.AreaKm2
				}
			}
		}
		out.Densities[year] = densities
	}

	for i := 1; i < len(out.Years); i++ {
		prev, curr := out.Years[i-1], out.Years[i]
		out.Hotspots[periodKey(prev, curr)] = periodHotspots(cells, cellByID, out.Densities[prev], out.Densities[curr])
	}

	zap.L().With(zap.String("component", "spatial")).Debug("hotspot detection complete",
		zap.Int("cells", len(cells)),
		zap.Int("periods", len(out.Hotspots)))
	return out
}

func periodHotspots(cells []geo.Cell, cellByID map[string]geo.Cell, prev, curr map[string]float64) PeriodHotspots {
	growth := make([]float64, 0, len(cells))
	byCell := make(map[string]CellGrowth, len(cells))
	for _, c := range cells {
		abs := curr[c.ID] - prev[c.ID]
		rel := 0.0
		if prev[c.ID] != 0 {
			rel = abs / prev[c.ID] * 100
		}
		growth = append(growth, abs)
		byCell[c.ID] = CellGrowth{
			CellID:            c.ID,
			Box:               c.Box,
			AbsoluteGrowth:    abs,
			RelativeGrowthPct: rel,
		}
	}

	threshold := percentile(growth, 80)
	result := PeriodHotspots{ThresholdGrowth: threshold}

	// A flat growth field has no hot cells: every cell would clear the
	// threshold, which is meaningless. Common case: two identical years.
	lo, hi := minMax(growth)
	if lo == hi {
		return result
	}

	for _, c := range cells {
		if cg := byCell[c.ID]; cg.AbsoluteGrowth >= threshold {
			result.Cells = append(result.Cells, cg)
		}
	}
	sort.Slice(result.Cells, func(i, j int) bool {
		return result.Cells[i].CellID < result.Cells[j].CellID
	})
	return result
}

func dataExtent(byYear map[int]*model.Collection) *model.BoundingBox {
	first := true
	var box model.BoundingBox
	for _, c := range byYear {
		for _, f := range c.Features {
			if f.Geometry == nil {
				continue
			}
			b := f.Geometry.Bounds()
			if first {
				box = model.BoundingBox{South: b.Min(1), West: b.Min(0), North: b.Max(1), East: b.Max(0)}
				first = false
				continue
			}
			box.South = math.Min(box.South, b.Min(1))
			box.West = math.Min(box.West, b.Min(0))
			box.North = math.Max(box.North, b.Max(1))
			box.East = math.Max(box.East, b.Max(0))
		}
	}
	if first || box.South >= box.North || box.West >= box.East {
		return nil
	}
	return &box
}
