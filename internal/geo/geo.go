// Package geo provides planar measurement over geographic geometries:
// UTM-projected areas and distances, haversine great-circle distance, and
// the square analysis grid used by the spatial stages.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

const (
	// EarthRadiusM is the mean Earth radius used by the haversine formula.
	EarthRadiusM = 6371000.0

	// MetersPerDegree is the equirectangular meters-per-degree constant at
	// the equator. Used for degree→meter fallbacks and tolerance
	// conversions. Accuracy degrades away from the equator.
	MetersPerDegree = 111319.9

	// KmPerDegree converts kilometers to degrees for grid cell sizing.
	KmPerDegree = 111.32
)

// Haversine returns the great-circle distance in meters between two
// (lat, lon) points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(a))
}

// Area returns the geometry's area in square meters. Nil, empty, and
// non-areal geometries yield 0. The geometry is projected into the UTM zone
// of its centroid before the planar area is taken; if the projection
// produces non-finite coordinates the equirectangular approximation
// (degree area × MetersPerDegree²) is used instead, a documented accuracy
// degradation far from the equator.
func Area(g geom.T) float64 {
	poly, ok := g.(*geom.Polygon)
	if !ok || poly == nil || poly.NumLinearRings() == 0 {
		return 0
	}
	lon, lat := Centroid(poly)
	proj := utmFor(lon, lat)

	total := 0.0
	finite := true
	for i := 0; i < poly.NumLinearRings(); i++ {
		ring := poly.LinearRing(i).Coords()
		projected := make([]geom.Coord, len(ring))
		for j, c := range ring {
			x, y := proj.forward(c[0], c[1])
			if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
				finite = false
				break
			}
			projected[j] = geom.Coord{x, y}
		}
		if !finite {
			break
		}
		a := math.Abs(shoelace(projected))
		if i == 0 {
			total += a
		} else {
			total -= a
		}
	}
	if finite && total >= 0 {
		return total
	}
	return planarDegreeArea(poly) * MetersPerDegree * MetersPerDegree
}

// Distance returns the planar distance in meters between two (lon, lat)
// coordinates, projected into the UTM zone of their midpoint. Falls back to
// haversine when the projection degenerates.
func Distance(a, b geom.Coord) float64 {
	midLon := (a[0] + b[0]) / 2
	midLat := (a[1] + b[1]) / 2
	proj := utmFor(midLon, midLat)
	x1, y1 := proj.forward(a[0], a[1])
	x2, y2 := proj.forward(b[0], b[1])
	d := math.Hypot(x2-x1, y2-y1)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return Haversine(a[1], a[0], b[1], b[0])
	}
	return d
}

// PerimeterDeg returns the polygon perimeter in planar degree units (all
// rings). Used for scale-free shape ratios.
func PerimeterDeg(poly *geom.Polygon) float64 {
	if poly == nil {
		return 0
	}
	total := 0.0
	for i := 0; i < poly.NumLinearRings(); i++ {
		total += ringLength(poly.LinearRing(i).Coords())
	}
	return total
}

// LengthDeg returns a linestring's planar length in degree units.
func LengthDeg(ls *geom.LineString) float64 {
	if ls == nil {
		return 0
	}
	return ringLength(ls.Coords())
}

// AreaDeg returns the polygon's planar area in squared degree units.
func AreaDeg(poly *geom.Polygon) float64 {
	return planarDegreeArea(poly)
}

// Centroid returns a geometry's centroid as (lon, lat). Polygons use the
// area-weighted centroid of the outer ring, linestrings the length-weighted
// midpoint of their segments, points their own coordinate.
func Centroid(g geom.T) (lon, lat float64) {
	switch t := g.(type) {
	case *geom.Point:
		return t.X(), t.Y()
	case *geom.LineString:
		coords := t.Coords()
		if len(coords) == 0 {
			return 0, 0
		}
		var sx, sy, total float64
		for i := 1; i < len(coords); i++ {
			seg := math.Hypot(coords[i][0]-coords[i-1][0], coords[i][1]-coords[i-1][1])
			sx += seg * (coords[i][0] + coords[i-1][0]) / 2
			sy += seg * (coords[i][1] + coords[i-1][1]) / 2
			total += seg
		}
		if total == 0 {
			return coords[0][0], coords[0][1]
		}
		return sx / total, sy / total
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return 0, 0
		}
		ring := t.LinearRing(0).Coords()
		var a, cx, cy float64
		for i := 0; i < len(ring)-1; i++ {
			cross := ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
			a += cross
			cx += (ring[i][0] + ring[i+1][0]) * cross
			cy += (ring[i][1] + ring[i+1][1]) * cross
		}
		if a == 0 {
			// Degenerate ring: fall back to vertex mean.
			var sx, sy float64
			for _, c := range ring {
				sx += c[0]
				sy += c[1]
			}
			return sx / float64(len(ring)), sy / float64(len(ring))
		}
		return cx / (3 * a), cy / (3 * a)
	default:
		return 0, 0
	}
}

// PointSegmentDistance returns the planar distance in degree units from
// point p to the segment (a, b).
func PointSegmentDistance(p, a, b geom.Coord) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	if dx == 0 && dy == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1])
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p[0]-(a[0]+t*dx), p[1]-(a[1]+t*dy))
}

// MinDistanceDeg returns the minimum planar distance in degree units
// between the vertices/edges of two geometries. Zero means the outlines
// touch or share a vertex; containment without edge proximity is not
// detected, which is sufficient for tolerance-sized duplicate checks.
func MinDistanceDeg(a, b geom.T) float64 {
	ca, cb := outline(a), outline(b)
	if len(ca) == 0 || len(cb) == 0 {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for _, p := range ca {
		best = math.Min(best, minToOutline(p, cb))
	}
	for _, p := range cb {
		best = math.Min(best, minToOutline(p, ca))
	}
	return best
}

func minToOutline(p geom.Coord, coords []geom.Coord) float64 {
	if len(coords) == 1 {
		return math.Hypot(p[0]-coords[0][0], p[1]-coords[0][1])
	}
	best := math.Inf(1)
	for i := 1; i < len(coords); i++ {
		best = math.Min(best, PointSegmentDistance(p, coords[i-1], coords[i]))
	}
	return best
}

// outline flattens a geometry into its boundary coordinates.
func outline(g geom.T) []geom.Coord {
	switch t := g.(type) {
	case *geom.Point:
		return []geom.Coord{t.Coords()}
	case *geom.LineString:
		return t.Coords()
	case *geom.Polygon:
		var out []geom.Coord
		for i := 0; i < t.NumLinearRings(); i++ {
			out = append(out, t.LinearRing(i).Coords()...)
		}
		return out
	default:
		return nil
	}
}

// ConvexHull computes the convex hull of a coordinate set using the
// monotone chain algorithm. Returns a closed ring, or nil when fewer than
// three distinct points exist.
func ConvexHull(coords []geom.Coord) []geom.Coord {
	pts := dedupeCoords(coords)
	if len(pts) < 3 {
		return nil
	}
	sortCoords(pts)

	cross := func(o, a, b geom.Coord) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	var lower, upper []geom.Coord
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}
	return append(hull, hull[0])
}

// HullPolygon wraps a closed hull ring in a go-geom polygon.
func HullPolygon(ring []geom.Coord) *geom.Polygon {
	if len(ring) < 4 {
		return nil
	}
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring})
}

func dedupeCoords(coords []geom.Coord) []geom.Coord {
	seen := make(map[[2]float64]bool, len(coords))
	out := make([]geom.Coord, 0, len(coords))
	for _, c := range coords {
		key := [2]float64{c[0], c[1]}
		if !seen[key] {
			seen[key] = true
			out = append(out, geom.Coord{c[0], c[1]})
		}
	}
	return out
}

func sortCoords(pts []geom.Coord) {
	// Lexicographic (x, then y) insertion sort keeps this dependency-free;
	// hull inputs are bbox-scale.
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0 && less(pts[j], pts[j-1]); j-- {
			pts[j], pts[j-1] = pts[j-1], pts[j]
		}
	}
}

func less(a, b geom.Coord) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

func ringLength(coords []geom.Coord) float64 {
	total := 0.0
	for i := 1; i < len(coords); i++ {
		total += math.Hypot(coords[i][0]-coords[i-1][0], coords[i][1]-coords[i-1][1])
	}
	return total
}

func shoelace(coords []geom.Coord) float64 {
	area := 0.0
	for i := 0; i < len(coords)-1; i++ {
		area += coords[i][0]*coords[i+1][1] - coords[i+1][0]*coords[i][1]
	}
	return area / 2
}

func planarDegreeArea(poly *geom.Polygon) float64 {
	if poly == nil {
		return 0
	}
	total := 0.0
	for i := 0; i < poly.NumLinearRings(); i++ {
		a := math.Abs(shoelace(poly.LinearRing(i).Coords()))
		if i == 0 {
			total += a
		} else {
			total -= a
		}
	}
	if total < 0 {
		return 0
	}
	return total
}
