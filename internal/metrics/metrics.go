// Package metrics computes quantitative urban growth indicators from
// processed feature collections: building and road growth rates, landuse
// change, density, compactness, and growth direction.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/geo"
	"github.com/urbanatlas/osmgrowth/internal/model"
)

// periodKey labels a consecutive-year comparison, e.g. "2015-2020".
func periodKey(prev, curr int) string {
	return fmt.Sprintf("%d-%d", prev, curr)
}

// pctChange returns the percent change from prev to curr, exactly 0 when
// prev is 0 so empty baseline years never produce NaN or Inf.
func pctChange(prev, curr float64) float64 {
	if prev == 0 {
		return 0
	}
	return (curr - prev) / prev * 100
}

func sortedYears[T any](byYear map[int]T) []int {
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// BuildingYearStats summarizes one year's building stock.
type BuildingYearStats struct {
	Count       int            `json:"count"`
	TotalAreaM2 float64        `json:"total_area_m2"`
	AvgAreaM2   float64        `json:"avg_area_m2"`
	Types       map[string]int `json:"types"`
}

// GrowthRate compares two consecutive years of building stock.
type GrowthRate struct {
	CountGrowthPct       float64 `json:"count_growth_pct"`
	AreaGrowthPct        float64 `json:"area_growth_pct"`
	NewBuildings         int     `json:"new_buildings"`
	NewAreaM2            float64 `json:"new_area_m2"`
	YearsElapsed         int     `json:"years_elapsed"`
	AnnualCountGrowthPct float64 `json:"annual_count_growth_pct"`
	AnnualAreaGrowthPct  float64 `json:"annual_area_growth_pct"`
}

// BuildingGrowthResult holds per-year statistics and pairwise growth rates.
type BuildingGrowthResult struct {
	Years  []int                     `json:"years"`
	ByYear map[int]BuildingYearStats `json:"by_year"`
	Growth map[string]GrowthRate     `json:"growth"`
}

// BuildingGrowth computes yearly building statistics and growth rates
// between consecutive years.
func BuildingGrowth(byYear map[int]*model.Collection) BuildingGrowthResult {
	years := sortedYears(byYear)
	out := BuildingGrowthResult{
		Years:  years,
		ByYear: make(map[int]BuildingYearStats, len(years)),
		Growth: make(map[string]GrowthRate),
	}
	for _, y := range years {
		stats := BuildingYearStats{Types: make(map[string]int)}
		for _, f := range byYear[y].Features {
			stats.Count++
			stats.TotalAreaM2 += f.AreaM2
			t := f.BuildingType
			if t == "" {
				t = "other"
			}
			stats.Types[t]++
		}
		if stats.Count > 0 {
			stats.AvgAreaM2 = stats.TotalAreaM2 / float64(stats.Count)
		}
		out.ByYear[y] = stats
	}
	for i := 1; i < len(years); i++ {
		prev, curr := years[i-1], years[i]
		ps, cs := out.ByYear[prev], out.ByYear[curr]
		elapsed := curr - prev
		rate := GrowthRate{
			CountGrowthPct: pctChange(float64(ps.Count), float64(cs.Count)),
			AreaGrowthPct:  pctChange(ps.TotalAreaM2, cs.TotalAreaM2),
			NewBuildings:   cs.Count - ps.Count,
			NewAreaM2:      cs.TotalAreaM2 - ps.TotalAreaM2,
			YearsElapsed:   elapsed,
		}
		if elapsed > 0 {
			rate.AnnualCountGrowthPct = rate.CountGrowthPct / float64(elapsed)
			rate.AnnualAreaGrowthPct = rate.AreaGrowthPct / float64(elapsed)
		}
		out.Growth[periodKey(prev, curr)] = rate
	}
	return out
}

// RoadYearStats summarizes one year's road network.
type RoadYearStats struct {
	Count         int            `json:"count"`
	TotalLengthKm float64        `json:"total_length_km"`
	Classes       map[string]int `json:"classes"`
}

// RoadGrowthRate compares the road network of two consecutive years.
type RoadGrowthRate struct {
	CountGrowthPct        float64 `json:"count_growth_pct"`
	LengthGrowthPct       float64 `json:"length_growth_pct"`
	NewRoads              int     `json:"new_roads"`
	NewLengthKm           float64 `json:"new_length_km"`
	YearsElapsed          int     `json:"years_elapsed"`
	AnnualLengthGrowthPct float64 `json:"annual_length_growth_pct"`
}

// RoadGrowthResult holds per-year road statistics and pairwise growth.
type RoadGrowthResult struct {
	Years  []int                     `json:"years"`
	ByYear map[int]RoadYearStats     `json:"by_year"`
	Growth map[string]RoadGrowthRate `json:"growth"`
}

// RoadGrowth computes yearly road network statistics and growth rates.
func RoadGrowth(byYear map[int]*model.Collection) RoadGrowthResult {
	years := sortedYears(byYear)
	out := RoadGrowthResult{
		Years:  years,
		ByYear: make(map[int]RoadYearStats, len(years)),
		Growth: make(map[string]RoadGrowthRate),
	}
	for _, y := range years {
		stats := RoadYearStats{Classes: make(map[string]int)}
		for _, f := range byYear[y].Features {
			stats.Count++
			stats.TotalLengthKm += f.LengthM / 1000
			class := f.RoadClass
			if class == "" {
				class = "other"
			}
			stats.Classes[class]++
		}
		out.ByYear[y] = stats
	}
	for i := 1; i < len(years); i++ {
		prev, curr := years[i-1], years[i]
		ps, cs := out.ByYear[prev], out.ByYear[curr]
		elapsed := curr - prev
		rate := RoadGrowthRate{
			CountGrowthPct:  pctChange(float64(ps.Count), float64(cs.Count)),
			LengthGrowthPct: pctChange(ps.TotalLengthKm, cs.TotalLengthKm),
			NewRoads:        cs.Count - ps.Count,
			NewLengthKm:     cs.TotalLengthKm - ps.TotalLengthKm,
			YearsElapsed:    elapsed,
		}
		if elapsed > 0 {
			rate.AnnualLengthGrowthPct = rate.LengthGrowthPct / float64(elapsed)
		}
		out.Growth[periodKey(prev, curr)] = rate
	}
	return out
}

// LanduseYearStats is the landuse composition of one year.
type LanduseYearStats struct {
	TotalAreaM2    float64            `json:"total_area_m2"`
	AreaByCategory map[string]float64 `json:"area_by_category"`
	PctByCategory  map[string]float64 `json:"pct_by_category"`
}

// LanduseTransition is the change in one category between two years.
type LanduseTransition struct {
	PrevAreaM2 float64 `json:"prev_area_m2"`
	CurrAreaM2 float64 `json:"curr_area_m2"`
	ChangeM2   float64 `json:"change_m2"`
	ChangePct  float64 `json:"change_pct"`
}

// LanduseChangeResult holds per-year composition and pairwise transitions.
type LanduseChangeResult struct {
	Years       []int                                   `json:"years"`
	ByYear      map[int]LanduseYearStats                `json:"by_year"`
	Transitions map[string]map[string]LanduseTransition `json:"transitions"`
}

// LanduseChanges computes landuse composition by year and the per-category
// area transitions between consecutive years. Transitions cover the union
// of both years' category sets; a category absent from a year counts as 0.
func LanduseChanges(byYear map[int]*model.Collection) LanduseChangeResult {
	years := sortedYears(byYear)
	out := LanduseChangeResult{
		Years:       years,
		ByYear:      make(map[int]LanduseYearStats, len(years)),
		Transitions: make(map[string]map[string]LanduseTransition),
	}
	for _, y := range years {
		stats := LanduseYearStats{
			AreaByCategory: make(map[string]float64),
			PctByCategory:  make(map[string]float64),
		}
		for _, f := range byYear[y].Features {
			category := f.LanduseCategory
			if category == "" {
				category = "other"
			}
			stats.AreaByCategory[category] += f.AreaM2
			stats.TotalAreaM2 += f.AreaM2
		}
		if stats.TotalAreaM2 > 0 {
			for category, area := range stats.AreaByCategory {
				stats.PctByCategory[category] = area / stats.TotalAreaM2 * 100
			}
		}
		out.ByYear[y] = stats
	}
	for i := 1; i < len(years); i++ {
		prev, curr := years[i-1], years[i]
		ps, cs := out.ByYear[prev], out.ByYear[curr]

		categories := make(map[string]bool)
		for c := range ps.AreaByCategory {
			categories[c] = true
		}
		for c := range cs.AreaByCategory {
			categories[c] = true
		}

		transitions := make(map[string]LanduseTransition, len(categories))
		for c := range categories {
			prevArea := ps.AreaByCategory[c]
			currArea := cs.AreaByCategory[c]
			transitions[c] = LanduseTransition{
				PrevAreaM2: prevArea,
				CurrAreaM2: currArea,
				ChangeM2:   currArea - prevArea,
				ChangePct:  pctChange(prevArea, currArea),
			}
		}
		out.Transitions[periodKey(prev, curr)] = transitions
	}
	return out
}

// DensityMetrics relates feature stocks to the analyzed land area.
type DensityMetrics struct {
	BuildingsPerKm2       float64 `json:"buildings_per_km2"`
	BuildingCoverageRatio float64 `json:"building_coverage_ratio"`
	AvgBuildingAreaM2     float64 `json:"avg_building_area_m2"`
	TotalRoadKm           float64 `json:"total_road_km"`
	RoadKmPerKm2          float64 `json:"road_km_per_km2"`
}

// Density computes per-area metrics. All fields are zero when areaKm2 <= 0.
func Density(buildings, roads *model.Collection, areaKm2 float64) DensityMetrics {
	if areaKm2 <= 0 {
		return DensityMetrics{}
	}
	var m DensityMetrics
	var totalBuildingArea float64
	for _, f := range buildings.Features {
		totalBuildingArea += f.AreaM2
	}
	m.BuildingsPerKm2 = float64(buildings.Len()) / areaKm2
	m.BuildingCoverageRatio = totalBuildingArea / (areaKm2 * 1e6)
	if buildings.Len() > 0 {
		m.AvgBuildingAreaM2 = totalBuildingArea / float64(buildings.Len())
	}
	for _, f := range roads.Features {
		m.TotalRoadKm += f.LengthM / 1000
	}
	m.RoadKmPerKm2 = m.TotalRoadKm / areaKm2
	return m
}

const clusterRadiusM = 100.0

// CompactnessMetrics describes the spatial arrangement of building stock.
type CompactnessMetrics struct {
	// MeanShapeRatio is the mean area/perimeter^2 in planar degree units,
	// a scale-free shape indicator (higher = more compact footprints).
	MeanShapeRatio       float64 `json:"mean_shape_ratio"`
	MeanNearestNeighborM float64 `json:"mean_nearest_neighbor_m"`
	ClusterCount         int     `json:"cluster_count"`
}

// Compactness computes footprint shape and proximity indicators. The
// cluster count is the number of connected components of building
// centroids within touching distance of a 100 m buffer radius.
func Compactness(buildings *model.Collection) CompactnessMetrics {
	var m CompactnessMetrics
	polygons := buildings.Polygons()
	if polygons.Empty() {
		return m
	}

	var ratioSum float64
	ratioCount := 0
	centroids := make([]geom.Coord, 0, polygons.Len())
	for _, f := range polygons.Features {
		poly := f.Geometry.(*geom.Polygon)
		perimeter := geo.PerimeterDeg(poly)
		if perimeter > 0 {
			ratioSum += geo.AreaDeg(poly) / (perimeter * perimeter)
			ratioCount++
		}
		lon, lat := geo.Centroid(poly)
		centroids = append(centroids, geom.Coord{lon, lat})
	}
	if ratioCount > 0 {
		m.MeanShapeRatio = ratioSum / float64(ratioCount)
	}
	m.MeanNearestNeighborM = meanNearestNeighborM(centroids)
	m.ClusterCount = clusterCount(centroids, 2*clusterRadiusM/geo.MetersPerDegree)
	return m
}

func meanNearestNeighborM(centroids []geom.Coord) float64 {
	if len(centroids) < 2 {
		return 0
	}
	var sum float64
	for i, a := range centroids {
		best := math.Inf(1)
		for j, b := range centroids {
			if i == j {
				continue
			}
			d := math.Hypot(a[0]-b[0], a[1]-b[1])
			if d < best {
				best = d
			}
		}
		sum += best
	}
	return sum / float64(len(centroids)) * geo.MetersPerDegree
}

// clusterCount is a union-find over centroids: two centroids join when
// their planar distance is at most thresholdDeg.
func clusterCount(centroids []geom.Coord, thresholdDeg float64) int {
	n := len(centroids)
	if n == 0 {
		return 0
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Hypot(centroids[i][0]-centroids[j][0], centroids[i][1]-centroids[j][1])
			if d <= thresholdDeg {
				parent[find(i)] = find(j)
			}
		}
	}
	components := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		components[find(i)] = true
	}
	return len(components)
}
