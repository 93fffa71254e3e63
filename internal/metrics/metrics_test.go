package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/model"
)

func building(id int64, areaM2 float64, buildingType string) *model.Feature {
	return &model.Feature{ID: id, AreaM2: areaM2, BuildingType: buildingType}
}

func road(id int64, lengthM float64, class string) *model.Feature {
	return &model.Feature{ID: id, LengthM: lengthM, RoadClass: class}
}

func stock(count int, areaM2 float64) *model.Collection {
	c := model.NewCollection()
	for i := 0; i < count; i++ {
		c.Append(building(int64(i), areaM2, "residential"))
	}
	return c
}

func TestBuildingGrowthFiftyPercent(t *testing.T) {
	byYear := map[int]*model.Collection{
		2015: stock(100, 100),
		2020: stock(150, 100),
	}
	result := BuildingGrowth(byYear)

	require.Equal(t, []int{2015, 2020}, result.Years)
	assert.Equal(t, 100, result.ByYear[2015].Count)
	assert.Equal(t, 150, result.ByYear[2020].Count)

	rate, ok := result.Growth["2015-2020"]
	require.True(t, ok)
	assert.InDelta(t, 50.0, rate.CountGrowthPct, 1e-9)
	assert.InDelta(t, 50.0, rate.AreaGrowthPct, 1e-9)
	assert.Equal(t, 50, rate.NewBuildings)
	assert.Equal(t, 5, rate.YearsElapsed)
	assert.InDelta(t, 10.0, rate.AnnualCountGrowthPct, 1e-9)
}

func TestBuildingGrowthZeroBaseline(t *testing.T) {
	byYear := map[int]*model.Collection{
		2015: model.NewCollection(),
		2020: stock(40, 200),
	}
	rate := BuildingGrowth(byYear).Growth["2015-2020"]

	// A zero baseline reports 0% growth, never NaN or Inf.
	assert.Zero(t, rate.CountGrowthPct)
	assert.Zero(t, rate.AreaGrowthPct)
	assert.Equal(t, 40, rate.NewBuildings)
	assert.InDelta(t, 8000.0, rate.NewAreaM2, 1e-9)
}

func TestBuildingGrowthTypeHistogram(t *testing.T) {
	byYear := map[int]*model.Collection{
		2020: model.NewCollection(
			building(1, 100, "residential"),
			building(2, 100, "residential"),
			building(3, 500, "commercial"),
			building(4, 50, ""),
		),
	}
	stats := BuildingGrowth(byYear).ByYear[2020]
	assert.Equal(t, map[string]int{"residential": 2, "commercial": 1, "other": 1}, stats.Types)
	assert.InDelta(t, 187.5, stats.AvgAreaM2, 1e-9)
}

func TestRoadGrowth(t *testing.T) {
	byYear := map[int]*model.Collection{
		2018: model.NewCollection(road(1, 2000, "major")),
		2020: model.NewCollection(road(1, 2000, "major"), road(2, 1000, "local")),
	}
	result := RoadGrowth(byYear)

	assert.InDelta(t, 2.0, result.ByYear[2018].TotalLengthKm, 1e-9)
	assert.InDelta(t, 3.0, result.ByYear[2020].TotalLengthKm, 1e-9)

	rate := result.Growth["2018-2020"]
	assert.InDelta(t, 50.0, rate.LengthGrowthPct, 1e-9)
	assert.InDelta(t, 25.0, rate.AnnualLengthGrowthPct, 1e-9)
	assert.Equal(t, 1, rate.NewRoads)
	assert.InDelta(t, 1.0, rate.NewLengthKm, 1e-9)
}

func landuse(id int64, areaM2 float64, category string) *model.Feature {
	return &model.Feature{ID: id, AreaM2: areaM2, LanduseCategory: category}
}

func TestLanduseChanges(t *testing.T) {
	byYear := map[int]*model.Collection{
		2015: model.NewCollection(
			landuse(1, 1000, "agricultural"),
			landuse(2, 1000, "residential"),
		),
		2020: model.NewCollection(
			landuse(1, 500, "agricultural"),
			landuse(2, 1400, "residential"),
			landuse(3, 100, "commercial"),
		),
	}
	result := LanduseChanges(byYear)

	assert.InDelta(t, 50.0, result.ByYear[2015].PctByCategory["agricultural"], 1e-9)
	assert.InDelta(t, 70.0, result.ByYear[2020].PctByCategory["residential"], 1e-9)

	transitions := result.Transitions["2015-2020"]
	require.Len(t, transitions, 3)
	assert.InDelta(t, -50.0, transitions["agricultural"].ChangePct, 1e-9)
	assert.InDelta(t, 40.0, transitions["residential"].ChangePct, 1e-9)
	// Category new in the later year: zero baseline, zero percent.
	assert.Zero(t, transitions["commercial"].ChangePct)
	assert.InDelta(t, 100.0, transitions["commercial"].ChangeM2, 1e-9)
}

func TestDensity(t *testing.T) {
	buildings := model.NewCollection(building(1, 5000, ""), building(2, 5000, ""))
	roads := model.NewCollection(road(1, 4000, ""))

	m := Density(buildings, roads, 2.0)
	assert.InDelta(t, 1.0, m.BuildingsPerKm2, 1e-9)
	assert.InDelta(t, 0.005, m.BuildingCoverageRatio, 1e-9)
	assert.InDelta(t, 5000.0, m.AvgBuildingAreaM2, 1e-9)
	assert.InDelta(t, 4.0, m.TotalRoadKm, 1e-9)
	assert.InDelta(t, 2.0, m.RoadKmPerKm2, 1e-9)
}

func TestDensityZeroArea(t *testing.T) {
	m := Density(stock(5, 100), model.NewCollection(), 0)
	assert.Equal(t, DensityMetrics{}, m)
	m = Density(stock(5, 100), model.NewCollection(), -3)
	assert.Equal(t, DensityMetrics{}, m)
}

func polyFeature(id int64, lon, lat, sizeDeg float64) *model.Feature {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{lon, lat},
		{lon + sizeDeg, lat},
		{lon + sizeDeg, lat + sizeDeg},
		{lon, lat + sizeDeg},
		{lon, lat},
	}})
	return &model.Feature{ID: id, Geometry: poly}
}

func TestCompactness(t *testing.T) {
	// Two tight neighbors (~55m apart) and one distant outlier.
	c := model.NewCollection(
		polyFeature(1, 0, 0, 0.0002),
		polyFeature(2, 0.0005, 0, 0.0002),
		polyFeature(3, 0.1, 0.1, 0.0002),
	)
	m := Compactness(c)

	// A square has area/perimeter^2 = 1/16.
	assert.InDelta(t, 1.0/16.0, m.MeanShapeRatio, 1e-9)
	assert.Equal(t, 2, m.ClusterCount)
	assert.Greater(t, m.MeanNearestNeighborM, 0.0)
}

func TestCompactnessEmpty(t *testing.T) {
	m := Compactness(model.NewCollection())
	assert.Zero(t, m.MeanShapeRatio)
	assert.Zero(t, m.MeanNearestNeighborM)
	assert.Zero(t, m.ClusterCount)
}

func TestClusterCountSingle(t *testing.T) {
	m := Compactness(model.NewCollection(polyFeature(1, 0, 0, 0.0002)))
	assert.Equal(t, 1, m.ClusterCount)
	assert.Zero(t, m.MeanNearestNeighborM)
}
