// Package export writes analysis outputs to disk: JSON reports, GeoJSON
// feature collections, and hotspot shapefiles.
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/urbanatlas/osmgrowth/internal/analyzer"
	"github.com/urbanatlas/osmgrowth/internal/model"
	"github.com/urbanatlas/osmgrowth/internal/spatial"
)

// WriteReport writes the report as indented JSON.
func WriteReport(path string, report *analyzer.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write report %s", path)
	}
	return nil
}

// WriteGeoJSON writes the collection as a GeoJSON FeatureCollection with
// tags and derived attributes as properties. Non-finite attribute values
// are omitted; GeoJSON has no encoding for them.
func WriteGeoJSON(path string, c *model.Collection) error {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	if c != nil {
		for _, f := range c.Features {
			if f.Geometry == nil {
				continue
			}
			fc.Features = append(fc.Features, &geojson.Feature{
				ID:         fmt.Sprintf("%s/%d", f.OSMType, f.ID),
				Geometry:   f.Geometry,
				Properties: featureProperties(f),
			})
		}
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write geojson %s", path)
	}
	return nil
}

func featureProperties(f *model.Feature) map[string]interface{} {
	props := map[string]interface{}{
		"osm_id":   f.ID,
		"osm_type": f.OSMType,
	}
	for k, v := range f.Tags {
		props[k] = v
	}
	setFinite(props, "area_m2", f.AreaM2)
	setFinite(props, "length_m", f.LengthM)
	setFinite(props, "levels", f.Levels)
	setFinite(props, "floor_area_m2", f.FloorAreaM2)
	setFinite(props, "distance_to_road_m", f.DistanceToRoadM)
	if f.BuildingType != "" {
		props["building_type"] = f.BuildingType
	}
	if f.RoadClass != "" {
		props["road_class"] = f.RoadClass
	}
	if f.LanduseCategory != "" {
		props["landuse_category"] = f.LanduseCategory
	}
	if f.ClusterID != 0 {
		props["cluster_id"] = f.ClusterID
	}
	if f.Accessible {
		props["accessible"] = true
	}
	return props
}

func setFinite(props map[string]interface{}, key string, v float64) {
	if v != 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
		props[key] = v
	}
}

// WriteHotspotShapefile writes every period's hotspot cells as polygons
// with period and growth attributes. path must end in .shp; the companion
// .shx and .dbf files are written alongside.
func WriteHotspotShapefile(path string, result spatial.HotspotResult) error {
	writer, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer writer.Close()

	writer.SetFields([]shp.Field{
		shp.StringField("PERIOD", 16),
		shp.StringField("CELL_ID", 32),
		shp.FloatField("GROWTH", 16, 6),
		shp.FloatField("GROWTH_PCT", 16, 6),
	})

	periods := make([]string, 0, len(result.Hotspots))
	for period := range result.Hotspots {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	row := 0
	for _, period := range periods {
		for _, cell := range result.Hotspots[period].Cells {
			writer.Write(cellShape(cell.Box))
			attrs := []struct {
				field int
				value interface{}
			}{
				{0, period},
				{1, cell.CellID},
				{2, cell.AbsoluteGrowth},
				{3, cell.RelativeGrowthPct},
			}
			for _, a := range attrs {
				if err := writer.WriteAttribute(row, a.field, a.value); err != nil {
					return eris.Wrapf(err, "export: write attribute row %d", row)
				}
			}
			row++
		}
	}
	return nil
}

// cellShape builds a single clockwise ring, the outer-ring winding
// shapefiles expect.
func cellShape(box model.BoundingBox) *shp.Polygon {
	points := []shp.Point{
		{X: box.West, Y: box.North},
		{X: box.East, Y: box.North},
		{X: box.East, Y: box.South},
		{X: box.West, Y: box.South},
		{X: box.West, Y: box.North},
	}
	return (*shp.Polygon)(shp.NewPolyLine([][]shp.Point{points}))
}
