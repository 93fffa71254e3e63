package spatial

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/geo"
	"github.com/urbanatlas/osmgrowth/internal/model"
)

const distanceBandWidthKm = 2.0

// SprawlYear describes one year's urban footprint relative to the center.
type SprawlYear struct {
	UrbanExtentM2      float64        `json:"urban_extent_m2"`
	MeanDistanceM      float64        `json:"mean_distance_m"`
	MaxDistanceM       float64        `json:"max_distance_m"`
	StdDevDistanceM    float64        `json:"stddev_distance_m"`
	BuildingCount      int            `json:"building_count"`
	DistanceBandCounts map[string]int `json:"distance_band_counts"`
}

// SprawlResult is the sprawl analysis over all years.
type SprawlResult struct {
	CenterLon float64            `json:"center_lon"`
	CenterLat float64            `json:"center_lat"`
	Years     []int              `json:"years"`
	ByYear    map[int]SprawlYear `json:"by_year"`
}

// AnalyzeSprawl measures how far the building stock spreads from the urban
// center: convex-hull extent, distance statistics, and 2 km distance-band
// counts per year. The center defaults to the centroid of all building
// centroids across every year. Returns an empty result for fewer than two
// years.
func AnalyzeSprawl(buildingsByYear map[int]*model.Collection, center *geom.Coord) SprawlResult {
	out := SprawlResult{ByYear: make(map[int]SprawlYear)}
	if len(buildingsByYear) < 2 {
		return out
	}
	out.Years = sortedYears(buildingsByYear)

	c := center
	if c == nil {
		c = sharedCentroid(buildingsByYear)
		if c == nil {
			return out
		}
	}
	out.CenterLon = (*c)[0]
	out.CenterLat = (*c)[1]

	for _, year := range out.Years {
		out.ByYear[year] = sprawlYear(buildingsByYear[year], *c)
	}
	return out
}

func sprawlYear(buildings *model.Collection, center geom.Coord) SprawlYear {
	if buildings.Empty() {
		return SprawlYear{DistanceBandCounts: map[string]int{}}
	}

	var allCoords []geom.Coord
	distances := make([]float64, 0, buildings.Len())
	for _, f := range buildings.Features {
		if f.Geometry == nil {
			continue
		}
		lon, lat := geo.Centroid(f.Geometry)
		d := math.Hypot(lon-center[0], lat-center[1]) * geo.MetersPerDegree
		distances = append(distances, d)
		allCoords = append(allCoords, outlineCoords(f.Geometry)...)
	}
	if len(distances) == 0 {
		return SprawlYear{DistanceBandCounts: map[string]int{}}
	}

	year := SprawlYear{
		MeanDistanceM:      mean(distances),
		StdDevDistanceM:    stddev(distances),
		BuildingCount:      len(distances),
		DistanceBandCounts: distanceBands(distances),
	}
	_, year.MaxDistanceM = minMax(distances)

	if hull := geo.ConvexHull(allCoords); hull != nil {
		year.UrbanExtentM2 = geo.Area(geo.HullPolygon(hull))
	}
	return year
}

func outlineCoords(g geom.T) []geom.Coord {
	switch t := g.(type) {
	case *geom.Point:
		return []geom.Coord{t.Coords()}
	case *geom.LineString:
		return t.Coords()
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil
		}
		return t.LinearRing(0).Coords()
	default:
		return nil
	}
}

// distanceBands buckets distances (meters) into fixed 2 km rings from the
// center, keyed "0.0-2.0km".
func distanceBands(distancesM []float64) map[string]int {
	bands := make(map[string]int)
	if len(distancesM) == 0 {
		return bands
	}
	_, maxM := minMax(distancesM)
	numBands := int(math.Ceil(maxM / 1000 / distanceBandWidthKm))
	if numBands == 0 {
		numBands = 1
	}
	for i := 0; i < numBands; i++ {
		loKm := float64(i) * distanceBandWidthKm
		hiKm := float64(i+1) * distanceBandWidthKm
		count := 0
		for _, d := range distancesM {
			if d >= loKm*1000 && d < hiKm*1000 {
				count++
			}
		}
		bands[fmt.Sprintf("%.1f-%.1fkm", loKm, hiKm)] = count
	}
	return bands
}

func sharedCentroid(byYear map[int]*model.Collection) *geom.Coord {
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
		return nil
	}
	return &geom.Coord{sx / float64(n), sy / float64(n)}
}
