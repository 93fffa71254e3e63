package spatial

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/urbanatlas/osmgrowth/internal/geo"
	"github.com/urbanatlas/osmgrowth/internal/model"
)

const (
	// Noise is the DBSCAN label for points belonging to no cluster.
	Noise = -1

	// DefaultClusterEpsM and DefaultClusterMinSamples are the standard
	// building-cluster parameters.
	DefaultClusterEpsM       = 100.0
	DefaultClusterMinSamples = 5
)

// ClusterResult summarizes a DBSCAN run over building centroids.
type ClusterResult struct {
	ClusterCount       int         `json:"cluster_count"`
	ClusteredBuildings int         `json:"clustered_buildings"`
	IsolatedBuildings  int         `json:"isolated_buildings"`
	LargestClusterSize int         `json:"largest_cluster_size"`
	AvgClusterSize     float64     `json:"avg_cluster_size"`
	ClusterSizes       map[int]int `json:"cluster_sizes,omitempty"`
}

// DetectClusters groups buildings into DBSCAN clusters of their centroids.
// epsMeters is converted to planar degrees; minSamples is the minimum
// neighborhood size (the point itself included) for a core point. Each
// feature's ClusterID is set in place, Noise (-1) for unclustered ones.
func DetectClusters(buildings *model.Collection, epsMeters float64, minSamples int) ClusterResult {
	result := ClusterResult{ClusterSizes: map[int]int{}}
	if buildings.Empty() {
		return result
	}
	if epsMeters <= 0 {
		epsMeters = DefaultClusterEpsM
	}
	if minSamples <= 0 {
		minSamples = DefaultClusterMinSamples
	}

	points := make([]geom.Coord, 0, buildings.Len())
	idx := make([]int, 0, buildings.Len())
	for i, f := range buildings.Features {
		if f.Geometry == nil {
			f.ClusterID = Noise
			continue
		}
		lon, lat := geo.Centroid(f.Geometry)
		points = append(points, geom.Coord{lon, lat})
		idx = append(idx, i)
	}

	labels := dbscan(points, epsMeters/geo.MetersPerDegree, minSamples)
	for pi, label := range labels {
		buildings.Features[idx[pi]].ClusterID = label
		if label == Noise {
			result.IsolatedBuildings++
			continue
		}
		result.ClusteredBuildings++
		result.ClusterSizes[label]++
	}
	result.ClusterCount = len(result.ClusterSizes)

	total := 0
	for _, size := range result.ClusterSizes {
		total += size
		if size > result.LargestClusterSize {
			result.LargestClusterSize = size
		}
	}
	if result.ClusterCount > 0 {
		result.AvgClusterSize = float64(total) / float64(result.ClusterCount)
	}
	return result
}

// dbscan labels points with cluster ids starting at 0; Noise for points in
// no cluster. Plain O(n^2) neighborhood queries, fine at bbox scale.
func dbscan(points []geom.Coord, epsDeg float64, minSamples int) []int {
	const unvisited = -2
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(p int) []int {
		var out []int
		for q := 0; q < n; q++ {
			if math.Hypot(points[p][0]-points[q][0], points[p][1]-points[q][1]) <= epsDeg {
				out = append(out, q)
			}
		}
		return out
	}

	cluster := 0
	for p := 0; p < n; p++ {
		if labels[p] != unvisited {
			continue
		}
		nbrs := neighbors(p)
		if len(nbrs) < minSamples {
			labels[p] = Noise
			continue
		}
		labels[p] = cluster
		seeds := append([]int(nil), nbrs...)
		for i := 0; i < len(seeds); i++ {
			q := seeds[i]
			if labels[q] == Noise {
				labels[q] = cluster
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = cluster
			qn := neighbors(q)
			if len(qn) >= minSamples {
				seeds = append(seeds, qn...)
			}
		}
		cluster++
	}
	return labels
}
