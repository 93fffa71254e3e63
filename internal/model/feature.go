// Package model defines the core geographic data types shared across the
// collection, processing, and analysis stages.
package model

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// BoundingBox is a rectangular geographic extent in WGS84 degrees,
// ordered (south, west, north, east) to match the Overpass convention.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Validate checks coordinate ranges and ordering. It is the single input
// validation gate: callers fail fast before any collection or analysis runs.
func (b BoundingBox) Validate() error {
	if b.South < -90 || b.South > 90 || b.North < -90 || b.North > 90 {
		return eris.New("model: latitude values must be between -90 and 90 degrees")
	}
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return eris.New("model: longitude values must be between -180 and 180 degrees")
	}
	if b.South >= b.North {
		return eris.New("model: southern latitude must be less than northern latitude")
	}
	if b.West >= b.East {
		return eris.New("model: western longitude must be less than eastern longitude")
	}
	return nil
}

// OverpassString renders the bbox in Overpass clause order: south,west,north,east.
func (b BoundingBox) OverpassString() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}

// Center returns the midpoint of the box as (lon, lat).
func (b BoundingBox) Center() (lon, lat float64) {
	return (b.West + b.East) / 2, (b.South + b.North) / 2
}

// WidthKm is the great-circle length of the southern edge in kilometers.
func (b BoundingBox) WidthKm() float64 {
	return haversineMeters(b.South, b.West, b.South, b.East) / 1000
}

// HeightKm is the great-circle length of the western edge in kilometers.
func (b BoundingBox) HeightKm() float64 {
	return haversineMeters(b.South, b.West, b.North, b.West) / 1000
}

// AreaKm2 approximates the box area in square kilometers from its edge
// lengths.
func (b BoundingBox) AreaKm2() float64 {
	return b.WidthKm() * b.HeightKm()
}

// haversineMeters duplicates geo.Haversine locally to keep model free of an
// import cycle; both use the 6,371,000 m mean Earth radius.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}

// Tags holds the OSM key/value pairs attached to a feature. Arbitrary keys
// are preserved; the handful of well-known keys get typed accessors.
type Tags map[string]string

// Get returns the value for key, or "" when absent.
func (t Tags) Get(key string) string {
	if t == nil {
		return ""
	}
	return t[key]
}

// Has reports whether the key is present with a non-empty value.
func (t Tags) Has(key string) bool { return t.Get(key) != "" }

// Building returns the value of the "building" tag.
func (t Tags) Building() string { return t.Get("building") }

// Highway returns the value of the "highway" tag.
func (t Tags) Highway() string { return t.Get("highway") }

// Landuse returns the value of the "landuse" tag.
func (t Tags) Landuse() string { return t.Get("landuse") }

// Amenity returns the value of the "amenity" tag.
func (t Tags) Amenity() string { return t.Get("amenity") }

// Count returns the number of tags with non-empty values. Used as the
// attribute-richness score when breaking deduplication ties.
func (t Tags) Count() int {
	n := 0
	for _, v := range t {
		if v != "" {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of the tag map.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Feature is one OSM entity: an identifier, a geometry (point, linestring,
// or polygon in geographic coordinates), and its tags. Derived attributes
// are filled by the processor and never written back into Tags.
type Feature struct {
	ID       int64  `json:"osm_id"`
	OSMType  string `json:"osm_type"`
	Geometry geom.T `json:"-"`
	Tags     Tags   `json:"tags,omitempty"`

	// Derived attributes, populated during processing.
	AreaM2          float64 `json:"area_m2,omitempty"`
	LengthM         float64 `json:"length_m,omitempty"`
	Levels          float64 `json:"levels,omitempty"`
	FloorAreaM2     float64 `json:"floor_area_m2,omitempty"`
	BuildingType    string  `json:"building_type,omitempty"`
	RoadClass       string  `json:"road_class,omitempty"`
	LanduseCategory string  `json:"landuse_category,omitempty"`
	ClusterID       int     `json:"cluster_id,omitempty"`
	DistanceToRoadM float64 `json:"distance_to_road_m,omitempty"`
	Accessible      bool    `json:"accessible,omitempty"`
}

// Clone returns a copy of the feature sharing the (immutable) geometry.
func (f *Feature) Clone() *Feature {
	cp := *f
	cp.Tags = f.Tags.Clone()
	return &cp
}

// Kind is the feature-type classification used to route features into the
// per-type processing pipelines.
type Kind int

const (
	KindNone Kind = iota
	KindBuilding
	KindRoad
	KindLanduse
)

func (k Kind) String() string {
	switch k {
	case KindBuilding:
		return "building"
	case KindRoad:
		return "road"
	case KindLanduse:
		return "landuse"
	default:
		return "none"
	}
}

// Classify determines the feature type from tags and geometry variant.
// Buildings and landuse require polygons; roads require linestrings.
// Features that match no class (or the wrong geometry) return KindNone.
func Classify(f *Feature) Kind {
	if f == nil || f.Geometry == nil {
		return KindNone
	}
	switch f.Geometry.(type) {
	case *geom.Polygon:
		if f.Tags.Has("building") {
			return KindBuilding
		}
		if f.Tags.Has("landuse") || f.Tags.Has("amenity") {
			return KindLanduse
		}
	case *geom.LineString:
		if f.Tags.Has("highway") {
			return KindRoad
		}
	}
	return KindNone
}

// Collection is an ordered sequence of features. Order is preserved through
// processing so that "keep first" tie-breaks are deterministic.
type Collection struct {
	Features []*Feature `json:"features"`
}

// NewCollection wraps features in a Collection.
func NewCollection(features ...*Feature) *Collection {
	return &Collection{Features: features}
}

// Len returns the number of features; safe on nil.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Features)
}

// Empty reports whether the collection has no features.
func (c *Collection) Empty() bool { return c.Len() == 0 }

// Append adds features to the collection.
func (c *Collection) Append(features ...*Feature) {
	c.Features = append(c.Features, features...)
}

// Clone returns a deep copy (geometries shared, features and tags copied).
func (c *Collection) Clone() *Collection {
	if c == nil {
		return NewCollection()
	}
	out := &Collection{Features: make([]*Feature, 0, len(c.Features))}
	for _, f := range c.Features {
		out.Features = append(out.Features, f.Clone())
	}
	return out
}

// Polygons returns the subset of features with polygon geometry.
func (c *Collection) Polygons() *Collection {
	return c.filter(func(f *Feature) bool {
		_, ok := f.Geometry.(*geom.Polygon)
		return ok
	})
}

// LineStrings returns the subset of features with linestring geometry.
func (c *Collection) LineStrings() *Collection {
	return c.filter(func(f *Feature) bool {
		_, ok := f.Geometry.(*geom.LineString)
		return ok
	})
}

// ByKind returns the subset of features classified as the given kind.
func (c *Collection) ByKind(k Kind) *Collection {
	return c.filter(func(f *Feature) bool { return Classify(f) == k })
}

func (c *Collection) filter(keep func(*Feature) bool) *Collection {
	out := NewCollection()
	if c == nil {
		return out
	}
	for _, f := range c.Features {
		if keep(f) {
			out.Append(f)
		}
	}
	return out
}
