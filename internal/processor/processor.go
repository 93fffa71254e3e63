// Package processor cleans and enriches raw OSM collections: geometry
// repair, tag normalization, size filters, duplicate removal, and
// per-feature-type classification.
package processor

import (
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbanatlas/osmgrowth/internal/geo"
	"github.com/urbanatlas/osmgrowth/internal/model"
)

const (
	// Building footprints outside this range are almost always mapping
	// errors (sub-shed slivers, continent-sized typos).
	minBuildingAreaM2 = 10.0
	maxBuildingAreaM2 = 1_000_000.0

	minLanduseAreaM2 = 100.0
	minRoadLengthM   = 10.0

	duplicateToleranceDeg     = 0.001
	roadDuplicateToleranceDeg = 0.0001
)

// Processor runs the cleaning pipelines. Zero value is not usable; call New.
type Processor struct {
	logger *zap.Logger
}

func New() *Processor {
	return &Processor{logger: zap.L().With(zap.String("component", "processor"))}
}

// CleanGeometries drops features with nil or degenerate geometry and
// repairs the rest: repeated consecutive vertices are removed and unclosed
// polygon rings are closed.
func (p *Processor) CleanGeometries(c *model.Collection) *model.Collection {
	out := model.NewCollection()
	for _, f := range c.Features {
		g := cleanGeometry(f.Geometry)
		if g == nil {
			continue
		}
		cp := f.Clone()
		cp.Geometry = g
		out.Append(cp)
	}
	if removed := c.Len() - out.Len(); removed > 0 {
		p.logger.Info("removed invalid geometries",
			zap.Int("removed", removed),
			zap.Int("kept", out.Len()))
	}
	return out
}

func cleanGeometry(g geom.T) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return t
	case *geom.LineString:
		coords := dropRepeatedVertices(t.Coords())
		if len(coords) < 2 {
			return nil
		}
		return geom.NewLineString(geom.XY).MustSetCoords(coords)
	case *geom.Polygon:
		rings := make([][]geom.Coord, 0, t.NumLinearRings())
		for i := 0; i < t.NumLinearRings(); i++ {
			ring := dropRepeatedVertices(t.LinearRing(i).Coords())
			if len(ring) > 0 && !coordEqual(ring[0], ring[len(ring)-1]) {
				ring = append(ring, geom.Coord{ring[0][0], ring[0][1]})
			}
			if len(ring) < 4 {
				if i == 0 {
					return nil
				}
				continue
			}
			rings = append(rings, ring)
		}
		if len(rings) == 0 {
			return nil
		}
		return geom.NewPolygon(geom.XY).MustSetCoords(rings)
	default:
		return nil
	}
}

func dropRepeatedVertices(coords []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, 0, len(coords))
	for _, c := range coords {
		if len(out) > 0 && coordEqual(out[len(out)-1], c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func coordEqual(a, b geom.Coord) bool {
	return a[0] == b[0] && a[1] == b[1]
}

// NormalizeTags lowercases and trims every tag value and maps the common
// free-form variants onto their canonical spellings.
func (p *Processor) NormalizeTags(c *model.Collection) *model.Collection {
	out := model.NewCollection()
	for _, f := range c.Features {
		cp := f.Clone()
		cp.Tags = normalizeTags(f.Tags)
		out.Append(cp)
	}
	return out
}

func normalizeTags(tags model.Tags) model.Tags {
	out := make(model.Tags, len(tags))
	for k, v := range tags {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		switch k {
		case "building":
			if v == "true" || v == "1" {
				v = "yes"
			}
		case "highway":
			if v == "road" || v == "street" {
				v = "unclassified"
			}
		}
		out[k] = v
	}
	return out
}

// FilterByArea removes polygons outside [minM2, maxM2]. maxM2 <= 0 means
// no upper bound. Non-polygon features pass through untouched.
func (p *Processor) FilterByArea(c *model.Collection, minM2, maxM2 float64) *model.Collection {
	out := model.NewCollection()
	for _, f := range c.Features {
		if _, ok := f.Geometry.(*geom.Polygon); ok {
			area := geo.Area(f.Geometry)
			if area < minM2 || (maxM2 > 0 && area > maxM2) {
				continue
			}
		}
		out.Append(f)
	}
	if removed := c.Len() - out.Len(); removed > 0 {
		p.logger.Info("filtered features by area", zap.Int("removed", removed))
	}
	return out
}

// RemoveDuplicates drops features whose geometry lies within 2x tolerance
// of an earlier feature's. Of each duplicate pair the feature with more
// tags survives; ties keep the first. Idempotent, O(n^2) over bbox-scale
// inputs.
func (p *Processor) RemoveDuplicates(c *model.Collection, toleranceDeg float64) *model.Collection {
	n := c.Len()
	if n <= 1 {
		return c.Clone()
	}
	threshold := 2 * toleranceDeg
	removed := make([]bool, n)
	for i := 0; i < n; i++ {
		if removed[i] {
			continue
		}
		for j := i + 1; j < n; j++ {
			if removed[j] {
				continue
			}
			if geo.MinDistanceDeg(c.Features[i].Geometry, c.Features[j].Geometry) >= threshold {
				continue
			}
			if c.Features[i].Tags.Count() >= c.Features[j].Tags.Count() {
				removed[j] = true
			} else {
				removed[i] = true
				break
			}
		}
	}
	out := model.NewCollection()
	for i, f := range c.Features {
		if !removed[i] {
			out.Append(f.Clone())
		}
	}
	if dropped := n - out.Len(); dropped > 0 {
		p.logger.Info("removed duplicate features", zap.Int("removed", dropped))
	}
	return out
}

// ProcessBuildings runs the full building pipeline and fills the derived
// attributes: area, levels (from building:levels, default 1), floor area,
// and the building type class.
func (p *Processor) ProcessBuildings(c *model.Collection) *model.Collection {
	if c.Empty() {
		return model.NewCollection()
	}
	p.logger.Info("processing buildings", zap.Int("input", c.Len()))

	out := p.CleanGeometries(c)
	out = p.NormalizeTags(out)
	out = p.FilterByArea(out, minBuildingAreaM2, maxBuildingAreaM2)
	out = p.RemoveDuplicates(out, duplicateToleranceDeg)

	for _, f := range out.Features {
		f.AreaM2 = geo.Area(f.Geometry)
		f.Levels = parseLevels(f.Tags.Get("building:levels"))
		f.FloorAreaM2 = f.AreaM2 * f.Levels
		f.BuildingType = ClassifyBuilding(f.Tags)
	}

	p.logger.Info("processed buildings", zap.Int("remaining", out.Len()))
	return out
}

// ProcessRoads runs the road pipeline: length filter at 10 m and the road
// class lookup.
func (p *Processor) ProcessRoads(c *model.Collection) *model.Collection {
	if c.Empty() {
		return model.NewCollection()
	}
	p.logger.Info("processing roads", zap.Int("input", c.Len()))

	cleaned := p.CleanGeometries(c)
	cleaned = p.NormalizeTags(cleaned)

	filtered := model.NewCollection()
	for _, f := range cleaned.Features {
		ls, ok := f.Geometry.(*geom.LineString)
		if !ok {
			continue
		}
		f.LengthM = geo.LengthDeg(ls) * geo.MetersPerDegree
		if f.LengthM >= minRoadLengthM {
			filtered.Append(f)
		}
	}

	out := p.RemoveDuplicates(filtered, roadDuplicateToleranceDeg)
	for _, f := range out.Features {
		f.RoadClass = ClassifyRoad(f.Tags.Highway())
	}

	p.logger.Info("processed roads", zap.Int("remaining", out.Len()))
	return out
}

// ProcessLanduse runs the landuse pipeline: area filter at 100 m2 and the
// landuse category lookup.
func (p *Processor) ProcessLanduse(c *model.Collection) *model.Collection {
	if c.Empty() {
		return model.NewCollection()
	}
	p.logger.Info("processing landuse", zap.Int("input", c.Len()))

	out := p.CleanGeometries(c)
	out = p.NormalizeTags(out)
	out = p.FilterByArea(out, minLanduseAreaM2, 0)
	out = p.RemoveDuplicates(out, duplicateToleranceDeg)

	for _, f := range out.Features {
		f.AreaM2 = geo.Area(f.Geometry)
		f.LanduseCategory = ClassifyLanduse(f.Tags.Landuse())
	}

	p.logger.Info("processed landuse", zap.Int("remaining", out.Len()))
	return out
}

func parseLevels(raw string) float64 {
	levels, err := strconv.ParseFloat(raw, 64)
	if err != nil || levels <= 0 {
		return 1
	}
	return levels
}

// Summary describes what a pipeline run kept and dropped.
type Summary struct {
	OriginalFeatures  int            `json:"original_features"`
	ProcessedFeatures int            `json:"processed_features"`
	RemovedFeatures   int            `json:"removed_features"`
	RemovalRatePct    float64        `json:"removal_rate_pct"`
	GeometryTypes     map[string]int `json:"geometry_types,omitempty"`
}

// Summarize compares a collection before and after processing.
func Summarize(original, processed *model.Collection) Summary {
	s := Summary{
		OriginalFeatures:  original.Len(),
		ProcessedFeatures: processed.Len(),
		RemovedFeatures:   original.Len() - processed.Len(),
	}
	if s.OriginalFeatures > 0 {
		s.RemovalRatePct = float64(s.RemovedFeatures) / float64(s.OriginalFeatures) * 100
	}
	if !processed.Empty() {
		s.GeometryTypes = make(map[string]int)
		for _, f := range processed.Features {
			switch f.Geometry.(type) {
			case *geom.Point:
				s.GeometryTypes["Point"]++
			case *geom.LineString:
				s.GeometryTypes["LineString"]++
			case *geom.Polygon:
				s.GeometryTypes["Polygon"]++
			}
		}
	}
	return s
}
