package spatial

import (
	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/geo"
	"github.com/urbanatlas/osmgrowth/internal/model"
)

// CategoryFragmentation holds landscape fragmentation metrics for one
// landuse category.
type CategoryFragmentation struct {
	PatchCount         int     `json:"patch_count"`
	TotalAreaM2        float64 `json:"total_area_m2"`
	MeanPatchAreaM2    float64 `json:"mean_patch_area_m2"`
	LargestPatchAreaM2 float64 `json:"largest_patch_area_m2"`
	PatchDensityPerKm2 float64 `json:"patch_density_per_km2"`
	TotalEdgeLengthM   float64 `json:"total_edge_length_m"`
	EdgeDensity        float64 `json:"edge_density"`
}

// Fragmentation computes per-category patch statistics over landuse
// polygons: patch counts and sizes, patch density over the category's own
// area, and edge (perimeter) density.
func Fragmentation(landuse *model.Collection) map[string]CategoryFragmentation {
	out := make(map[string]CategoryFragmentation)
	if landuse.Empty() {
		return out
	}
	for _, f := range landuse.Features {
		poly, ok := f.Geometry.(*geom.Polygon)
		if !ok {
			continue
		}
		category := f.LanduseCategory
		if category == "" {
			category = "other"
		}
		frag := out[category]
		area := f.AreaM2
		if area == 0 {
			area = geo.Area(poly)
		}
		frag.PatchCount++
		frag.TotalAreaM2 += area
		if area > frag.LargestPatchAreaM2 {
			frag.LargestPatchAreaM2 = area
		}
		frag.TotalEdgeLengthM += geo.PerimeterDeg(poly) * geo.MetersPerDegree
		out[category] = frag
	}
	for category, frag := range out {
		if frag.PatchCount > 0 {
			frag.MeanPatchAreaM2 = frag.TotalAreaM2 / float64(frag.PatchCount)
		}
		if frag.TotalAreaM2 > 0 {
			frag.PatchDensityPerKm2 = float64(frag.PatchCount) / (frag.TotalAreaM2 / 1e6)
			frag.EdgeDensity = frag.TotalEdgeLengthM / frag.TotalAreaM2
		}
		out[category] = frag
	}
	return out
}

// RoadNetworkStats describes the road network's reach.
type RoadNetworkStats struct {
	TotalLengthKm       float64 `json:"total_length_km"`
	SegmentCount        int     `json:"segment_count"`
	RoadDensityKmPerKm2 float64 `json:"road_density_km_per_km2"`
	AvgSegmentLengthM   float64 `json:"avg_segment_length_m"`
}

// ConnectivityResult combines road network stats with the building
// cluster structure.
type ConnectivityResult struct {
	RoadNetwork      RoadNetworkStats `json:"road_network"`
	BuildingClusters ClusterResult    `json:"building_clusters"`
}

// Connectivity measures how the road network and building stock hang
// together. Road density uses the total built-up (building footprint)
// area as the urbanized-area proxy.
func Connectivity(buildings, roads *model.Collection) ConnectivityResult {
	var out ConnectivityResult

	if !roads.Empty() {
		var totalM float64
		for _, f := range roads.Features {
			totalM += f.LengthM
		}
		out.RoadNetwork = RoadNetworkStats{
			TotalLengthKm: totalM / 1000,
			SegmentCount:  roads.Len(),
		}
		if roads.Len() > 0 {
			out.RoadNetwork.AvgSegmentLengthM = totalM / float64(roads.Len())
		}
		var builtAreaM2 float64
		if !buildings.Empty() {
			for _, f := range buildings.Features {
				builtAreaM2 += f.AreaM2
			}
		}
		if builtAreaM2 > 0 {
			out.RoadNetwork.RoadDensityKmPerKm2 = (totalM / 1000) / (builtAreaM2 / 1e6)
		}
	}

	if !buildings.Empty() {
		out.BuildingClusters = DetectClusters(buildings, DefaultClusterEpsM, DefaultClusterMinSamples)
	}
	return out
}
