package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanatlas/osmgrowth/internal/model"
)

func TestBearing(t *testing.T) {
	origin := Point{Lon: 0, Lat: 0}
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"north", Point{Lon: 0, Lat: 1}, 0},
		{"east", Point{Lon: 1, Lat: 0}, 90},
		{"south", Point{Lon: 0, Lat: -1}, 180},
		{"west", Point{Lon: -1, Lat: 0}, 270},
		{"northeast", Point{Lon: 1, Lat: 1}, 45},
		{"southwest", Point{Lon: -1, Lat: -1}, 225},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(origin, tt.to)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestSharedCenter(t *testing.T) {
	byYear := map[int]*model.Collection{
		2015: model.NewCollection(polyFeature(1, 0, 0, 0.001)),
		2020: model.NewCollection(polyFeature(2, 0.001, 0.001, 0.001)),
	}
	center, ok := SharedCenter(byYear)
	require.True(t, ok)
	assert.InDelta(t, 0.001, center.Lon, 1e-9)
	assert.InDelta(t, 0.001, center.Lat, 1e-9)

	_, ok = SharedCenter(map[int]*model.Collection{2020: model.NewCollection()})
	assert.False(t, ok)
}

func TestGrowthDirectionEastward(t *testing.T) {
	// Stock center shifts due east between years.
	byYear := map[int]*model.Collection{
		2015: model.NewCollection(polyFeature(1, 0, 0, 0.001)),
		2020: model.NewCollection(
			polyFeature(1, 0, 0, 0.001),
			polyFeature(2, 0.01, 0, 0.001),
		),
	}
	center, ok := SharedCenter(byYear)
	require.True(t, ok)

	result := GrowthDirection(byYear, center)
	vec, ok := result.Vectors["2015-2020"]
	require.True(t, ok)
	assert.InDelta(t, 90.0, vec.BearingDeg, 1e-6)
	assert.Greater(t, vec.DistanceM, 0.0)

	assert.Equal(t, 1, result.ByYear[2015].BuildingCount)
	assert.Equal(t, 2, result.ByYear[2020].BuildingCount)
}

func TestGrowthDirectionSkipsEmptyYears(t *testing.T) {
	byYear := map[int]*model.Collection{
		2015: model.NewCollection(),
		2020: model.NewCollection(polyFeature(1, 0, 0, 0.001)),
	}
	center, _ := SharedCenter(byYear)
	result := GrowthDirection(byYear, center)
	assert.Empty(t, result.Vectors)
}

func TestSummary(t *testing.T) {
	buildings := map[int]*model.Collection{
		2015: model.NewCollection(polyFeature(1, 0, 0, 0.001)),
		2020: model.NewCollection(polyFeature(1, 0, 0, 0.001), polyFeature(2, 0.01, 0, 0.001)),
	}
	roads := map[int]*model.Collection{
		2020: model.NewCollection(road(1, 3000, "major")),
	}
	s := Summary(buildings, roads, 10.0)

	require.Contains(t, s.ByYear, 2015)
	require.Contains(t, s.ByYear, 2020)
	assert.InDelta(t, 0.2, s.ByYear[2020].Density.BuildingsPerKm2, 1e-9)
	assert.InDelta(t, 0.3, s.ByYear[2020].Density.RoadKmPerKm2, 1e-9)
	// 2015 has no roads entry: road metrics zero, building metrics present.
	assert.Zero(t, s.ByYear[2015].Density.TotalRoadKm)
	assert.InDelta(t, 0.1, s.ByYear[2015].Density.BuildingsPerKm2, 1e-9)

	assert.Contains(t, s.BuildingGrowth.Growth, "2015-2020")
	assert.Contains(t, s.GrowthDirection.Vectors, "2015-2020")
}
