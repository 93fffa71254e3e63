package spatial

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/geo"
	"github.com/urbanatlas/osmgrowth/internal/model"
)

// DefaultAccessDistanceM is the standard road-accessibility threshold.
const DefaultAccessDistanceM = 500.0

// AccessibilityResult summarizes building access to the road network.
type AccessibilityResult struct {
	MaxDistanceM    float64 `json:"max_distance_m"`
	TotalBuildings  int     `json:"total_buildings"`
	AccessibleCount int     `json:"accessible_count"`
	AccessiblePct   float64 `json:"accessible_pct"`
	MeanDistanceM   float64 `json:"mean_distance_m"`
	NoRoadNetwork   bool    `json:"no_road_network"`
}

// AnalyzeAccessibility measures each building centroid's distance to the
// nearest road segment and flags buildings within maxDistanceM (default
// 500 m). Features get DistanceToRoadM and Accessible set in place; with
// no roads every building is inaccessible at infinite distance and the
// aggregate mean covers finite distances only.
func AnalyzeAccessibility(buildings, roads *model.Collection, maxDistanceM float64) AccessibilityResult {
	if maxDistanceM <= 0 {
		maxDistanceM = DefaultAccessDistanceM
	}
	result := AccessibilityResult{
		MaxDistanceM:   maxDistanceM,
		TotalBuildings: buildings.Len(),
	}
	if buildings.Empty() {
		return result
	}

	segments := roadSegments(roads)
	if len(segments) == 0 {
		result.NoRoadNetwork = true
		for _, f := range buildings.Features {
			f.DistanceToRoadM = math.Inf(1)
			f.Accessible = false
		}
		return result
	}

	var distSum float64
	for _, f := range buildings.Features {
		if f.Geometry == nil {
			f.DistanceToRoadM = math.Inf(1)
			continue
		}
		lon, lat := geo.Centroid(f.Geometry)
		p := geom.Coord{lon, lat}
		best := math.Inf(1)
		for _, s := range segments {
			if d := geo.PointSegmentDistance(p, s[0], s[1]); d < best {
				best = d
			}
		}
		f.DistanceToRoadM = best * geo.MetersPerDegree
		f.Accessible = f.DistanceToRoadM <= maxDistanceM
		if f.Accessible {
			result.AccessibleCount++
		}
		distSum += f.DistanceToRoadM
	}
	result.AccessiblePct = float64(result.AccessibleCount) / float64(result.TotalBuildings) * 100
	result.MeanDistanceM = distSum / float64(result.TotalBuildings)
	return result
}

type segment [2]geom.Coord

func roadSegments(roads *model.Collection) []segment {
	var out []segment
	if roads == nil {
		return out
	}
	for _, f := range roads.Features {
		ls, ok := f.Geometry.(*geom.LineString)
		if !ok {
			continue
		}
		coords := ls.Coords()
		for i := 1; i < len(coords); i++ {
			out = append(out, segment{coords[i-1], coords[i]})
		}
	}
	return out
}
