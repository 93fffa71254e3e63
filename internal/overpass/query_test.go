package overpass

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanatlas/osmgrowth/internal/model"
)

// ~2.5km x 2.2km box, well under any chunking threshold.
var smallBox = model.BoundingBox{South: 40.70, West: -74.02, North: 40.72, East: -73.99}

// ~1 degree box, thousands of square kilometers.
var largeBox = model.BoundingBox{South: 40.0, West: -74.5, North: 41.0, East: -73.5}

func TestComplexity(t *testing.T) {
	base := Complexity(smallBox, nil)
	withPlain := Complexity(smallBox, []string{"railway"})
	withHeavy := Complexity(smallBox, []string{"building"})

	assert.Equal(t, base+10, withPlain)
	assert.Equal(t, base+60, withHeavy)

	// Substring match catches prefixed variants.
	assert.Equal(t, withHeavy, Complexity(smallBox, []string{"building:part"}))

	// Larger extent scores higher.
	assert.Greater(t, Complexity(largeBox, nil), base)
}

func TestNeedsChunking(t *testing.T) {
	assert.False(t, NeedsChunking(smallBox, []string{"building"}))
	assert.True(t, NeedsChunking(largeBox, []string{"building", "highway", "landuse"}))
}

func TestServerTimeoutSec(t *testing.T) {
	assert.Equal(t, 300, ServerTimeoutSec(0))
	assert.Equal(t, 300, ServerTimeoutSec(999))
	assert.Equal(t, 600, ServerTimeoutSec(1000))
	assert.Equal(t, 600, ServerTimeoutSec(5000))
}

func TestSplitIdentityUnderLimit(t *testing.T) {
	boxes := Split(smallBox, 50)
	require.Len(t, boxes, 1)
	assert.Equal(t, smallBox, boxes[0])
}

func TestSplitLargeBox(t *testing.T) {
	area := largeBox.AreaKm2()
	boxes := Split(largeBox, area/3)

	// ceil(sqrt(3)) = 2 divisions per axis.
	require.Len(t, boxes, 4)

	for _, b := range boxes {
		require.NoError(t, b.Validate())
		assert.GreaterOrEqual(t, b.South, largeBox.South)
		assert.LessOrEqual(t, b.North, largeBox.North+1e-9)
		assert.GreaterOrEqual(t, b.West, largeBox.West)
		assert.LessOrEqual(t, b.East, largeBox.East+1e-9)
	}

	// Sub-box areas sum back to the original.
	total := 0.0
	for _, b := range boxes {
		total += (b.North - b.South) * (b.East - b.West)
	}
	assert.InDelta(t, (largeBox.North-largeBox.South)*(largeBox.East-largeBox.West), total, 1e-9)
}

func TestSplitQuartersWhenFourTimesOver(t *testing.T) {
	boxes := Split(largeBox, largeBox.AreaKm2()/4)
	assert.Len(t, boxes, 4)
}

func TestOptimizeFeatures(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"sorted and deduped", []string{"highway", "building", "highway"}, []string{"building", "highway"}},
		{"bare key subsumes value selector", []string{"building", "building=house"}, []string{"building"}},
		{"value selectors kept", []string{"landuse=residential", "landuse=forest"}, []string{"landuse=forest", "landuse=residential"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OptimizeFeatures(tt.in))
		})
	}
}

func TestBuildQueryValueSelector(t *testing.T) {
	q := BuildQuery(smallBox, []string{"landuse=residential"}, "")
	assert.Contains(t, q, `way["landuse"="residential"](`)
	assert.NotContains(t, q, `way["landuse"](`)
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(smallBox, []string{"highway", "building"}, "")

	assert.Contains(t, q, "[out:json][timeout:300];")
	assert.Contains(t, q, `way["building"](40.7,-74.02,40.72,-73.99);`)
	assert.Contains(t, q, `way["highway"](40.7,-74.02,40.72,-73.99);`)
	assert.Contains(t, q, `relation["building"]`)
	assert.Contains(t, q, "out body;")
	assert.Contains(t, q, "out skel qt;")
	assert.NotContains(t, q, "[date:")

	// Keys are sorted for stable query text.
	assert.Less(t, strings.Index(q, `way["building"]`), strings.Index(q, `way["highway"]`))
}

func TestBuildQueryDateFilter(t *testing.T) {
	q := BuildQuery(smallBox, []string{"building"}, "2020-12-31T23:59:59Z")
	assert.Contains(t, q, `[date:"2020-12-31T23:59:59Z"];`)
}

func TestBuildQueryHeavyTimeout(t *testing.T) {
	q := BuildQuery(largeBox, []string{"building", "highway"}, "")
	assert.Contains(t, q, "[timeout:600]")
}
