package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/model"
)

func polyFeature(id int64, lon, lat, sizeDeg float64) *model.Feature {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{lon, lat},
		{lon + sizeDeg, lat},
		{lon + sizeDeg, lat + sizeDeg},
		{lon, lat + sizeDeg},
		{lon, lat},
	}})
	return &model.Feature{ID: id, Geometry: poly, Tags: model.Tags{"building": "yes"}}
}

func roadFeature(id int64, coords ...geom.Coord) *model.Feature {
	ls := geom.NewLineString(geom.XY).MustSetCoords(coords)
	lengthDeg := 0.0
	for i := 1; i < len(coords); i++ {
		lengthDeg += math.Hypot(coords[i][0]-coords[i-1][0], coords[i][1]-coords[i-1][1])
	}
	return &model.Feature{
		ID:       id,
		Geometry: ls,
		Tags:     model.Tags{"highway": "residential"},
		LengthM:  lengthDeg * 111319.9,
	}
}

// clusterAt creates count tightly packed buildings around (lon, lat).
func clusterAt(startID int64, lon, lat float64, count int) []*model.Feature {
	out := make([]*model.Feature, 0, count)
	for i := 0; i < count; i++ {
		offset := float64(i) * 0.0003 // ~33m spacing
		out = append(out, polyFeature(startID+int64(i), lon+offset, lat, 0.0001))
	}
	return out
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 80, 0},
		{"single", []float64{7}, 80, 7},
		{"interpolated median", []float64{1, 2, 3, 4}, 50, 2.5},
		{"eightieth", []float64{0, 0, 0, 0, 10}, 80, 2.0},
		{"max", []float64{1, 5, 3}, 100, 5},
		{"min", []float64{1, 5, 3}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, percentile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestDetectHotspots(t *testing.T) {
	bbox := model.BoundingBox{South: 0, West: 0, North: 0.018, East: 0.018}
	// Growth concentrated in the southwest corner cell.
	byYear := map[int]*model.Collection{
		2015: model.NewCollection(polyFeature(1, 0.001, 0.001, 0.0005)),
		2020: model.NewCollection(
			polyFeature(1, 0.001, 0.001, 0.0005),
			polyFeature(2, 0.002, 0.002, 0.0005),
			polyFeature(3, 0.003, 0.001, 0.0005),
			// One building far in the northeast, no growth elsewhere.
			polyFeature(4, 0.016, 0.016, 0.0005),
		),
	}
	result := DetectHotspots(byYear, 1.0, &bbox)
	require.Equal(t, []int{2015, 2020}, result.Years)

	period, ok := result.Hotspots["2015-2020"]
	require.True(t, ok)
	require.NotEmpty(t, period.Cells)

	// The southwest cell gained two buildings and must lead the list.
	var best CellGrowth
	for _, c := range period.Cells {
		if c.AbsoluteGrowth > best.AbsoluteGrowth {
			best = c
		}
	}
	assert.Equal(t, "grid_0_0", best.CellID)
	assert.Greater(t, best.AbsoluteGrowth, 0.0)
}

func TestDetectHotspotsUniformZeroGrowth(t *testing.T) {
	bbox := model.BoundingBox{South: 0, West: 0, North: 0.02, East: 0.02}
	same := model.NewCollection(polyFeature(1, 0.001, 0.001, 0.0005))
	byYear := map[int]*model.Collection{
		2015: same,
		2020: same.Clone(),
	}
	result := DetectHotspots(byYear, 1.0, &bbox)
	period := result.Hotspots["2015-2020"]

	// Identical years: a flat growth field yields no hotspots.
	assert.Empty(t, period.Cells)
}

func TestDetectHotspotsRequiresTwoYears(t *testing.T) {
	byYear := map[int]*model.Collection{
		2020: model.NewCollection(polyFeature(1, 0, 0, 0.001)),
	}
	result := DetectHotspots(byYear, 1.0, nil)
	assert.Empty(t, result.Hotspots)
}

func TestDetectHotspotsDataExtent(t *testing.T) {
	byYear := map[int]*model.Collection{
		2015: model.NewCollection(polyFeature(1, 0.001, 0.001, 0.001)),
		2020: model.NewCollection(
			polyFeature(1, 0.001, 0.001, 0.001),
			polyFeature(2, 0.015, 0.012, 0.001),
		),
	}
	result := DetectHotspots(byYear, 1.0, nil)
	assert.InDelta(t, 0.001, result.BBox.West, 1e-9)
	assert.InDelta(t, 0.016, result.BBox.East, 1e-9)
	assert.NotEmpty(t, result.Densities[2020])
}

func TestAnalyzeSprawl(t *testing.T) {
	byYear := map[int]*model.Collection{
		2015: model.NewCollection(polyFeature(1, 0, 0, 0.001)),
		2020: model.NewCollection(
			polyFeature(1, 0, 0, 0.001),
			polyFeature(2, 0.05, 0, 0.001), // ~5.5km east
		),
	}
	result := AnalyzeSprawl(byYear, nil)
	require.Contains(t, result.ByYear, 2020)

	y2020 := result.ByYear[2020]
	assert.Equal(t, 2, y2020.BuildingCount)
	assert.Greater(t, y2020.UrbanExtentM2, 0.0)
	assert.Greater(t, y2020.MaxDistanceM, y2020.MeanDistanceM)
	assert.NotEmpty(t, y2020.DistanceBandCounts)

	// 2015's hull is just the single footprint; 2020 spans kilometers.
	y2015 := result.ByYear[2015]
	assert.Greater(t, y2015.UrbanExtentM2, 0.0)
	assert.Greater(t, y2020.UrbanExtentM2, 100*y2015.UrbanExtentM2)
	assert.Equal(t, 1, y2015.BuildingCount)
}

func TestAnalyzeSprawlDistanceBands(t *testing.T) {
	bands := distanceBands([]float64{100, 500, 2500, 5500})
	assert.Equal(t, map[string]int{
		"0.0-2.0km": 2,
		"2.0-4.0km": 1,
		"4.0-6.0km": 1,
	}, bands)
}

func TestAnalyzeSprawlEmpty(t *testing.T) {
	result := AnalyzeSprawl(map[int]*model.Collection{}, nil)
	assert.Empty(t, result.ByYear)

	result = AnalyzeSprawl(map[int]*model.Collection{
		2015: model.NewCollection(),
		2020: model.NewCollection(),
	}, nil)
	assert.Empty(t, result.ByYear)
}

func TestDetectClusters(t *testing.T) {
	c := model.NewCollection()
	c.Append(clusterAt(1, 0, 0, 6)...)
	c.Append(clusterAt(100, 0.1, 0.1, 6)...)
	c.Append(polyFeature(999, 0.5, 0.5, 0.0001)) // isolated

	result := DetectClusters(c, 100, 5)
	assert.Equal(t, 2, result.ClusterCount)
	assert.Equal(t, 12, result.ClusteredBuildings)
	assert.Equal(t, 1, result.IsolatedBuildings)
	assert.Equal(t, 6, result.LargestClusterSize)
	assert.InDelta(t, 6.0, result.AvgClusterSize, 1e-9)

	// Labels were written back onto the features.
	assert.Equal(t, Noise, c.Features[12].ClusterID)
	assert.NotEqual(t, c.Features[0].ClusterID, c.Features[6].ClusterID)
	assert.Equal(t, c.Features[0].ClusterID, c.Features[5].ClusterID)
}

func TestDetectClustersEmpty(t *testing.T) {
	result := DetectClusters(model.NewCollection(), 100, 5)
	assert.Zero(t, result.ClusterCount)
}

func TestAnalyzeAccessibility(t *testing.T) {
	buildings := model.NewCollection(
		polyFeature(1, 0, 0.001, 0.0001),  // ~110m north of the road
		polyFeature(2, 0, 0.02, 0.0001),   // ~2.2km north, out of reach
	)
	roads := model.NewCollection(roadFeature(10, geom.Coord{-0.01, 0}, geom.Coord{0.01, 0}))

	result := AnalyzeAccessibility(buildings, roads, 500)
	assert.Equal(t, 2, result.TotalBuildings)
	assert.Equal(t, 1, result.AccessibleCount)
	assert.InDelta(t, 50.0, result.AccessiblePct, 1e-9)
	assert.False(t, result.NoRoadNetwork)

	assert.True(t, buildings.Features[0].Accessible)
	assert.InDelta(t, 117, buildings.Features[0].DistanceToRoadM, 5)
	assert.False(t, buildings.Features[1].Accessible)
}

func TestAnalyzeAccessibilityNoRoads(t *testing.T) {
	buildings := model.NewCollection(polyFeature(1, 0, 0, 0.001))
	result := AnalyzeAccessibility(buildings, model.NewCollection(), 500)

	assert.True(t, result.NoRoadNetwork)
	assert.Zero(t, result.AccessibleCount)
	assert.True(t, math.IsInf(buildings.Features[0].DistanceToRoadM, 1))
	assert.False(t, buildings.Features[0].Accessible)
}

func TestFragmentation(t *testing.T) {
	landuse := model.NewCollection(
		&model.Feature{ID: 1, Geometry: polyFeature(1, 0, 0, 0.001).Geometry, LanduseCategory: "natural", AreaM2: 10000},
		&model.Feature{ID: 2, Geometry: polyFeature(2, 0.1, 0.1, 0.001).Geometry, LanduseCategory: "natural", AreaM2: 30000},
		&model.Feature{ID: 3, Geometry: polyFeature(3, 0.2, 0.2, 0.001).Geometry, LanduseCategory: "residential", AreaM2: 5000},
	)
	frag := Fragmentation(landuse)
	require.Contains(t, frag, "natural")
	require.Contains(t, frag, "residential")

	natural := frag["natural"]
	assert.Equal(t, 2, natural.PatchCount)
	assert.InDelta(t, 40000.0, natural.TotalAreaM2, 1e-9)
	assert.InDelta(t, 20000.0, natural.MeanPatchAreaM2, 1e-9)
	assert.InDelta(t, 30000.0, natural.LargestPatchAreaM2, 1e-9)
	assert.InDelta(t, 50.0, natural.PatchDensityPerKm2, 1e-9)
	assert.Greater(t, natural.TotalEdgeLengthM, 0.0)
	assert.Greater(t, natural.EdgeDensity, 0.0)
}

func TestFragmentationEmpty(t *testing.T) {
	assert.Empty(t, Fragmentation(model.NewCollection()))
}

func TestConnectivity(t *testing.T) {
	buildings := model.NewCollection()
	buildings.Append(clusterAt(1, 0, 0, 6)...)
	for _, f := range buildings.Features {
		f.AreaM2 = 100_000
	}
	roads := model.NewCollection(
		roadFeature(10, geom.Coord{0, 0}, geom.Coord{0.01, 0}),
		roadFeature(11, geom.Coord{0, 0}, geom.Coord{0, 0.01}),
	)

	result := Connectivity(buildings, roads)
	assert.Equal(t, 2, result.RoadNetwork.SegmentCount)
	assert.InDelta(t, 2.226, result.RoadNetwork.TotalLengthKm, 0.01)
	assert.InDelta(t, 1113.2, result.RoadNetwork.AvgSegmentLengthM, 1.0)
	// 0.6 km2 built area.
	assert.InDelta(t, 3.71, result.RoadNetwork.RoadDensityKmPerKm2, 0.02)
	assert.Equal(t, 1, result.BuildingClusters.ClusterCount)
}

func TestConnectivityEmptyInputs(t *testing.T) {
	result := Connectivity(model.NewCollection(), model.NewCollection())
	assert.Zero(t, result.RoadNetwork.TotalLengthKm)
	assert.Zero(t, result.BuildingClusters.ClusterCount)
}
