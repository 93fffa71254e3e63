// Package overpass builds Overpass QL queries, estimates their server cost,
// and collects OSM features for a bounding box with caching, throttling,
// and chunked execution of oversized requests.
package overpass

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/urbanatlas/osmgrowth/internal/model"
)

const (
	// complexityChunkThreshold is the score above which a query is split
	// into per-chunk requests.
	complexityChunkThreshold = 1500

	// maxChunkAreaKm2 caps the area of a single chunked request.
	maxChunkAreaKm2 = 50.0

	// Heavy feature keys inflate the complexity score: they match orders
	// of magnitude more elements than niche tags.
	heavyFeatureWeight = 50
	featureWeight      = 10
)

var heavyFeatures = []string{"building", "highway", "landuse", "amenity"}

// Complexity scores a query by bbox area and requested feature keys. The
// score decides the server-side timeout and whether the request is chunked.
func Complexity(bbox model.BoundingBox, features []string) int {
	score := int(math.Floor(bbox.AreaKm2()))
	score += featureWeight * len(features)
	for _, f := range features {
		for _, heavy := range heavyFeatures {
			if strings.Contains(f, heavy) {
				score += heavyFeatureWeight
				break
			}
		}
	}
	return score
}

// NeedsChunking reports whether the query should be split into chunks.
func NeedsChunking(bbox model.BoundingBox, features []string) bool {
	return Complexity(bbox, features) > complexityChunkThreshold
}

// ServerTimeoutSec picks the Overpass [timeout:] value for a complexity
// score: 300s for moderate queries, 600s for heavy ones.
func ServerTimeoutSec(complexity int) int {
	if complexity < 1000 {
		return 300
	}
	return 600
}

// Split divides bbox into a square grid of sub-boxes so that each piece is
// at most maxAreaKm2. A box already under the limit is returned unchanged.
func Split(bbox model.BoundingBox, maxAreaKm2 float64) []model.BoundingBox {
	area := bbox.AreaKm2()
	if maxAreaKm2 <= 0 || area <= maxAreaKm2 {
		return []model.BoundingBox{bbox}
	}
	divisions := int(math.Ceil(math.Sqrt(area / maxAreaKm2)))
	latStep := (bbox.North - bbox.South) / float64(divisions)
	lonStep := (bbox.East - bbox.West) / float64(divisions)

	boxes := make([]model.BoundingBox, 0, divisions*divisions)
	for i := 0; i < divisions; i++ {
		for j := 0; j < divisions; j++ {
			boxes = append(boxes, model.BoundingBox{
				South: bbox.South + float64(i)*latStep,
				West:  bbox.West + float64(j)*lonStep,
				North: bbox.South + float64(i+1)*latStep,
				East:  bbox.West + float64(j+1)*lonStep,
			})
		}
	}
	return boxes
}

// BuildQuery renders the Overpass QL text for the given bbox and feature
// selectors. A selector is either a bare tag key ("building") or a
// "key=value" pair ("landuse=residential"). dateFilter, when non-empty, is
// an ISO-8601 instant that scopes the query to the historical state of the
// map at that time. Selectors are sorted so identical requests produce
// identical query text.
func BuildQuery(bbox model.BoundingBox, features []string, dateFilter string) string {
	selectors := OptimizeFeatures(features)

	complexity := Complexity(bbox, features)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[out:json][timeout:%d]", ServerTimeoutSec(complexity)))
	if dateFilter != "" {
		b.WriteString(fmt.Sprintf("[date:%q]", dateFilter))
	}
	b.WriteString(";\n(\n")
	for _, sel := range selectors {
		clause := renderSelector(sel)
		b.WriteString(fmt.Sprintf("  way%s(%s);\n", clause, bbox.OverpassString()))
		b.WriteString(fmt.Sprintf("  relation%s(%s);\n", clause, bbox.OverpassString()))
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

// OptimizeFeatures deduplicates and sorts feature selectors. A "key=value"
// selector is dropped when the bare key is also requested, since the bare
// clause already matches every value.
func OptimizeFeatures(features []string) []string {
	bare := make(map[string]bool, len(features))
	for _, f := range features {
		if !strings.Contains(f, "=") {
			bare[f] = true
		}
	}
	seen := make(map[string]bool, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		key, _, hasValue := strings.Cut(f, "=")
		if hasValue && bare[key] {
			continue
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

func renderSelector(sel string) string {
	key, value, hasValue := strings.Cut(sel, "=")
	if hasValue {
		return fmt.Sprintf("[%q=%q]", key, value)
	}
	return fmt.Sprintf("[%q]", key)
}
