package metrics

import "github.com/urbanatlas/osmgrowth/internal/model"

// YearSummary merges the per-year density and compactness indicators.
type YearSummary struct {
	Density     DensityMetrics     `json:"density"`
	Compactness CompactnessMetrics `json:"compactness"`
}

// SummaryResult is the full quantitative output for one analysis run.
type SummaryResult struct {
	ByYear          map[int]YearSummary   `json:"by_year"`
	BuildingGrowth  BuildingGrowthResult  `json:"building_growth"`
	RoadGrowth      RoadGrowthResult      `json:"road_growth"`
	GrowthDirection GrowthDirectionResult `json:"growth_direction"`
}

// Summary computes every quantitative metric over the yearly building and
// road collections. Years present in one map but not the other are treated
// as empty collections on the missing side.
func Summary(buildingsByYear, roadsByYear map[int]*model.Collection, areaKm2 float64) SummaryResult {
	out := SummaryResult{
		ByYear:         make(map[int]YearSummary),
		BuildingGrowth: BuildingGrowth(buildingsByYear),
		RoadGrowth:     RoadGrowth(roadsByYear),
	}

	years := make(map[int]bool)
	for y := range buildingsByYear {
		years[y] = true
	}
	for y := range roadsByYear {
		years[y] = true
	}
	for y := range years {
		buildings := buildingsByYear[y]
		if buildings == nil {
			buildings = model.NewCollection()
		}
		roads := roadsByYear[y]
		if roads == nil {
			roads = model.NewCollection()
		}
		out.ByYear[y] = YearSummary{
			Density:     Density(buildings, roads, areaKm2),
			Compactness: Compactness(buildings),
		}
	}

	center, ok := SharedCenter(buildingsByYear)
	if ok {
		out.GrowthDirection = GrowthDirection(buildingsByYear, center)
	} else {
		out.GrowthDirection = GrowthDirectionResult{
			ByYear:  map[int]YearCenter{},
			Vectors: map[string]DirectionVector{},
		}
	}
	return out
}
