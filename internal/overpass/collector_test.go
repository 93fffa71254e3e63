package overpass

import (
	"context"
	"testing"

	overpassapi "github.com/serjvanilla/go-overpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbanatlas/osmgrowth/internal/model"
	"github.com/urbanatlas/osmgrowth/internal/resilience"
)

type fakeQuerier struct {
	queries []string
	result  overpassapi.Result
	err     error
}

func (f *fakeQuerier) Query(query string) (overpassapi.Result, error) {
	f.queries = append(f.queries, query)
	return f.result, f.err
}

func newNode(id int64, lon, lat float64, tags map[string]string) *overpassapi.Node {
	n := &overpassapi.Node{}
	n.ID = id
	n.Lon = lon
	n.Lat = lat
	n.Tags = tags
	return n
}

func newWay(id int64, tags map[string]string, nodes ...*overpassapi.Node) *overpassapi.Way {
	w := &overpassapi.Way{}
	w.ID = id
	w.Tags = tags
	w.Nodes = nodes
	return w
}

func testClient(q querier) *Client {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 1
	return &Client{
		std:      q,
		long:     q,
		throttle: NewThrottle(),
		retry:    retry,
		logger:   zap.NewNop(),
	}
}

func closedWayNodes() []*overpassapi.Node {
	return []*overpassapi.Node{
		newNode(1, 0, 0, nil),
		newNode(2, 0.001, 0, nil),
		newNode(3, 0.001, 0.001, nil),
		newNode(4, 0, 0.001, nil),
		newNode(1, 0, 0, nil),
	}
}

func TestConvertResult(t *testing.T) {
	res := overpassapi.Result{}
	res.Ways = map[int64]*overpassapi.Way{
		10: newWay(10, map[string]string{"building": "yes"}, closedWayNodes()...),
		20: newWay(20, map[string]string{"highway": "residential"},
			newNode(5, 0, 0, nil), newNode(6, 0.01, 0.01, nil)),
	}
	res.Nodes = map[int64]*overpassapi.Node{
		5:   newNode(5, 0, 0, nil), // skel node, no tags
		100: newNode(100, 1, 1, map[string]string{"amenity": "school"}),
	}

	coll := convertResult(&res)
	require.Equal(t, 3, coll.Len())

	// Ways come first in ascending ID order, then tagged nodes.
	b := coll.Features[0]
	assert.Equal(t, int64(10), b.ID)
	assert.Equal(t, "way", b.OSMType)
	_, isPoly := b.Geometry.(*geom.Polygon)
	assert.True(t, isPoly, "closed way should become a polygon")

	r := coll.Features[1]
	assert.Equal(t, int64(20), r.ID)
	_, isLine := r.Geometry.(*geom.LineString)
	assert.True(t, isLine, "open way should become a linestring")

	n := coll.Features[2]
	assert.Equal(t, int64(100), n.ID)
	assert.Equal(t, "node", n.OSMType)
	_, isPoint := n.Geometry.(*geom.Point)
	assert.True(t, isPoint)
}

func TestConvertResultDegenerateWays(t *testing.T) {
	res := overpassapi.Result{}
	res.Ways = map[int64]*overpassapi.Way{
		1: newWay(1, map[string]string{"building": "yes"}, newNode(1, 0, 0, nil)),
		2: newWay(2, map[string]string{"building": "yes"},
			newNode(1, 0, 0, nil), nil, newNode(2, 1, 1, nil)),
	}
	coll := convertResult(&res)
	require.Equal(t, 1, coll.Len())
	assert.Equal(t, int64(2), coll.Features[0].ID)
	_, isLine := coll.Features[0].Geometry.(*geom.LineString)
	assert.True(t, isLine)
}

func TestCollectSingle(t *testing.T) {
	res := overpassapi.Result{}
	res.Ways = map[int64]*overpassapi.Way{
		10: newWay(10, map[string]string{"building": "yes"}, closedWayNodes()...),
	}
	fake := &fakeQuerier{result: res}
	c := testClient(fake)

	coll, err := c.Collect(context.Background(), smallBox, []string{"building"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, coll.Len())
	require.Len(t, fake.queries, 1)
	assert.Contains(t, fake.queries[0], `way["building"]`)
}

func TestCollectBuildingsFiltersKind(t *testing.T) {
	res := overpassapi.Result{}
	res.Ways = map[int64]*overpassapi.Way{
		10: newWay(10, map[string]string{"building": "yes"}, closedWayNodes()...),
		// Unclosed building way decodes as a linestring and is dropped.
		20: newWay(20, map[string]string{"building": "yes"},
			newNode(5, 0, 0, nil), newNode(6, 0.01, 0.01, nil)),
	}
	c := testClient(&fakeQuerier{result: res})

	coll, err := c.CollectBuildings(context.Background(), smallBox, "")
	require.NoError(t, err)
	require.Equal(t, 1, coll.Len())
	assert.Equal(t, int64(10), coll.Features[0].ID)
}

func TestCollectValidation(t *testing.T) {
	c := testClient(&fakeQuerier{})
	_, err := c.Collect(context.Background(), model.BoundingBox{South: 2, North: 1, West: 0, East: 1}, []string{"building"}, "")
	assert.Error(t, err)

	_, err = c.Collect(context.Background(), smallBox, nil, "")
	assert.ErrorContains(t, err, "feature key")
}

func TestCollectFetchErrorDegradesToEmpty(t *testing.T) {
	fake := &fakeQuerier{err: assert.AnError}
	c := testClient(fake)

	coll, err := c.Collect(context.Background(), smallBox, []string{"building"}, "")
	require.NoError(t, err)
	assert.True(t, coll.Empty())
}

func TestSampleCollection(t *testing.T) {
	coll := model.NewCollection()
	for i := int64(0); i < 100; i++ {
		coll.Append(&model.Feature{ID: i})
	}

	a := sampleCollection(coll, 0.3, 2020)
	b := sampleCollection(coll, 0.3, 2020)
	assert.Equal(t, 30, a.Len())

	// Same seed yields the same subset.
	require.Equal(t, a.Len(), b.Len())
	for i := range a.Features {
		assert.Equal(t, a.Features[i].ID, b.Features[i].ID)
	}

	// Different seed yields a different subset.
	c := sampleCollection(coll, 0.3, 2021)
	same := true
	for i := range a.Features {
		if a.Features[i].ID != c.Features[i].ID {
			same = false
			break
		}
	}
	assert.False(t, same)

	// Ratio >= 1 keeps everything.
	full := sampleCollection(coll, 1.0, 2020)
	assert.Equal(t, 100, full.Len())
}

func TestSyntheticSnapshots(t *testing.T) {
	res := overpassapi.Result{}
	ways := make(map[int64]*overpassapi.Way)
	for i := int64(1); i <= 50; i++ {
		ways[i] = newWay(i, map[string]string{"building": "yes"}, closedWayNodes()...)
	}
	res.Ways = ways
	c := testClient(&fakeQuerier{result: res})

	snaps, err := c.CollectSnapshots(context.Background(), smallBox, []string{"building"}, []int{2015, 2020, 2025}, true)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.Equal(t, 50, snaps[2025].Len())
	assert.Equal(t, 15, snaps[2015].Len()) // ratio 0.3
	assert.Equal(t, 32, snaps[2020].Len()) // ratio 0.65
	assert.Less(t, snaps[2015].Len(), snaps[2020].Len())
}

func TestCollectSnapshotsNoYears(t *testing.T) {
	c := testClient(&fakeQuerier{})
	_, err := c.CollectSnapshots(context.Background(), smallBox, []string{"building"}, nil, false)
	assert.Error(t, err)
}
