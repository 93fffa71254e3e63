package metrics

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/geo"
	"github.com/urbanatlas/osmgrowth/internal/model"
)

// Point is a (lon, lat) pair.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// YearCenter is the mean building position of one year.
type YearCenter struct {
	Center        Point   `json:"center"`
	MeanDistanceM float64 `json:"mean_distance_m"`
	BuildingCount int     `json:"building_count"`
}

// DirectionVector describes the shift of the building-stock center between
// two consecutive years.
type DirectionVector struct {
	DistanceM float64 `json:"distance_m"`
	// BearingDeg is measured clockwise from geographic north in [0, 360):
	// 0 = north, 90 = east, 180 = south, 270 = west.
	BearingDeg float64 `json:"bearing_deg"`
}

// GrowthDirectionResult holds per-year centers and inter-year shift vectors.
type GrowthDirectionResult struct {
	Center  Point                      `json:"center"`
	ByYear  map[int]YearCenter         `json:"by_year"`
	Vectors map[string]DirectionVector `json:"vectors"`
}

// SharedCenter is the centroid of all building centroids across every
// year, the fixed reference point for direction and sprawl analysis.
func SharedCenter(byYear map[int]*model.Collection) (Point, bool) {
	var sx, sy float64
	n := 0
	for _, c := range byYear {
		for _, f := range c.Features {
			if f.Geometry == nil {
				continue
			}
			lon, lat := geo.Centroid(f.Geometry)
			sx += lon
			sy += lat
			n++
		}
	}
	if n == 0 {
		return Point{}, false
	}
	return Point{Lon: sx / float64(n), Lat: sy / float64(n)}, true
}

// GrowthDirection computes where the building stock's center of mass moved
// between consecutive years, relative to the shared center.
func GrowthDirection(byYear map[int]*model.Collection, center Point) GrowthDirectionResult {
	years := sortedYears(byYear)
	out := GrowthDirectionResult{
		Center:  center,
		ByYear:  make(map[int]YearCenter, len(years)),
		Vectors: make(map[string]DirectionVector),
	}
	for _, y := range years {
		out.ByYear[y] = yearCenter(byYear[y], center)
	}
	for i := 1; i < len(years); i++ {
		prev, curr := years[i-1], years[i]
		pc, cc := out.ByYear[prev], out.ByYear[curr]
		if pc.BuildingCount == 0 || cc.BuildingCount == 0 {
			continue
		}
		out.Vectors[periodKey(prev, curr)] = DirectionVector{
			DistanceM: geo.Distance(
				geom.Coord{pc.Center.Lon, pc.Center.Lat},
				geom.Coord{cc.Center.Lon, cc.Center.Lat}),
			BearingDeg: Bearing(pc.Center, cc.Center),
		}
	}
	return out
}

func yearCenter(c *model.Collection, ref Point) YearCenter {
	var sx, sy, distSum float64
	n := 0
	for _, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		lon, lat := geo.Centroid(f.Geometry)
		sx += lon
		sy += lat
		distSum += geo.Distance(geom.Coord{lon, lat}, geom.Coord{ref.Lon, ref.Lat})
		n++
	}
	if n == 0 {
		return YearCenter{}
	}
	return YearCenter{
		Center:        Point{Lon: sx / float64(n), Lat: sy / float64(n)},
		MeanDistanceM: distSum / float64(n),
		BuildingCount: n,
	}
}

// Bearing returns the compass bearing from a to b in degrees clockwise
// from geographic north, normalized to [0, 360). Computed on planar degree
// deltas, adequate at bbox scale.
func Bearing(a, b Point) float64 {
	dx := b.Lon - a.Lon
	dy := b.Lat - a.Lat
	deg := math.Atan2(dx, dy) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
