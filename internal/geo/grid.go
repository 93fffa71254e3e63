package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/model"
)

// Cell is one square of the analysis grid. ID encodes the column (west to
// east) and row (south to north) indexes as "grid_<col>_<row>".
type Cell struct {
	ID    string
	Box   model.BoundingBox
	Col   int
	Row   int
	AreaKm2 float64
}

// Polygon returns the cell boundary as a closed go-geom polygon.
func (c Cell) Polygon() *geom.Polygon {
	ring := []geom.Coord{
		{c.Box.West, c.Box.South},
		{c.Box.East, c.Box.South},
		{c.Box.East, c.Box.North},
		{c.Box.West, c.Box.North},
		{c.Box.West, c.Box.South},
	}
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring})
}

// Contains reports whether (lon, lat) lies inside the cell. East and north
// edges are exclusive so adjacent cells never double-count a point.
func (c Cell) Contains(lon, lat float64) bool {
	return lon >= c.Box.West && lon < c.Box.East &&
		lat >= c.Box.South && lat < c.Box.North
}

// IntersectsEnvelope reports whether the cell overlaps the axis-aligned
// envelope (minLon, minLat, maxLon, maxLat).
func (c Cell) IntersectsEnvelope(minLon, minLat, maxLon, maxLat float64) bool {
	return minLon < c.Box.East && maxLon > c.Box.West &&
		minLat < c.Box.North && maxLat > c.Box.South
}

// Grid tiles the bounding box with square cells of cellKm kilometers per
// side. Cells are full-sized; the easternmost column and northernmost row
// may extend past the box edge so partial remainders are still covered.
func Grid(bbox model.BoundingBox, cellKm float64) []Cell {
	if cellKm <= 0 {
		return nil
	}
	step := cellKm / KmPerDegree
	cols := int(math.Ceil((bbox.East - bbox.West) / step))
	rows := int(math.Ceil((bbox.North - bbox.South) / step))

	cellArea := cellKm * cellKm
	cells := make([]Cell, 0, cols*rows)
	for i := 0; i < cols; i++ {
		for j := 0; j < rows; j++ {
			west := bbox.West + float64(i)*step
			south := bbox.South + float64(j)*step
			cells = append(cells, Cell{
				ID:  fmt.Sprintf("grid_%d_%d", i, j),
				Box: model.BoundingBox{South: south, West: west, North: south + step, East: west + step},
				Col: i,
				Row: j,
				AreaKm2: cellArea,
			})
		}
	}
	return cells
}
