package overpass

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	overpassapi "github.com/serjvanilla/go-overpass"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbanatlas/osmgrowth/internal/cache"
	"github.com/urbanatlas/osmgrowth/internal/model"
	"github.com/urbanatlas/osmgrowth/internal/resilience"
)

// Store is the slice of the cache the collector needs.
type Store interface {
	GetCollection(namespace, key string) (*model.Collection, bool)
	PutCollection(namespace, key string, c *model.Collection) error
}

// querier abstracts the Overpass API client for tests.
type querier interface {
	Query(query string) (overpassapi.Result, error)
}

// Config configures a Client.
type Config struct {
	// Endpoint is the Overpass interpreter URL.
	Endpoint string
	// Cache receives raw collection results; nil disables caching.
	Cache Store
}

// Client collects OSM features from the Overpass API. Requests are cached,
// throttled, retried on transient failures, and split into chunks when the
// estimated cost exceeds the server's comfort zone.
type Client struct {
	std      querier
	long     querier
	throttle *Throttle
	cache    Store
	retry    resilience.RetryConfig
	logger   *zap.Logger
}

// New builds a Client for the endpoint. Two API clients are kept so that
// heavy queries get a client-side HTTP timeout matching their 600s server
// timeout while ordinary queries fail faster.
func New(cfg Config) *Client {
	std := overpassapi.NewWithSettings(cfg.Endpoint, 1, &http.Client{Timeout: 310 * time.Second})
	long := overpassapi.NewWithSettings(cfg.Endpoint, 1, &http.Client{Timeout: 610 * time.Second})
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("overpass", "query")
	return &Client{
		std:      &std,
		long:     &long,
		throttle: NewThrottle(),
		cache:    cfg.Cache,
		retry:    retry,
		logger:   zap.L().With(zap.String("component", "overpass")),
	}
}

// Collect fetches all features matching the given tag keys inside bbox,
// optionally scoped to the historical map state at dateFilter. Results are
// served from cache when a fresh entry exists.
func (c *Client) Collect(ctx context.Context, bbox model.BoundingBox, features []string, dateFilter string) (*model.Collection, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, eris.New("overpass: at least one feature key is required")
	}

	sorted := make([]string, len(features))
	copy(sorted, features)
	sort.Strings(sorted)

	key := cache.Key(map[string]any{
		"bbox":        bbox.OverpassString(),
		"features":    sorted,
		"date_filter": dateFilter,
		"type":        "raw",
	})
	if c.cache != nil {
		if cached, ok := c.cache.GetCollection(cache.NamespaceOSMData, key); ok {
			c.logger.Debug("collection served from cache",
				zap.String("key", key),
				zap.Int("features", cached.Len()))
			return cached, nil
		}
	}

	var (
		result *model.Collection
		err    error
	)
	if NeedsChunking(bbox, sorted) {
		result, err = c.collectChunked(ctx, bbox, sorted, dateFilter)
	} else {
		result, err = c.collectSingle(ctx, bbox, sorted, dateFilter)
	}
	if err != nil {
		// Fetch failures degrade to an empty collection so one bad
		// snapshot never aborts a multi-year analysis. Input errors were
		// already rejected above.
		c.logger.Error("collection failed, returning empty collection",
			zap.Strings("features", sorted),
			zap.Error(err))
		return model.NewCollection(), nil
	}

	if c.cache != nil && !result.Empty() {
		if err := c.cache.PutCollection(cache.NamespaceOSMData, key, result); err != nil {
			c.logger.Warn("failed to cache collection", zap.Error(err))
		}
	}
	return result, nil
}

// CollectBuildings fetches building footprint polygons.
func (c *Client) CollectBuildings(ctx context.Context, bbox model.BoundingBox, dateFilter string) (*model.Collection, error) {
	coll, err := c.Collect(ctx, bbox, []string{"building"}, dateFilter)
	if err != nil {
		return nil, err
	}
	return coll.ByKind(model.KindBuilding), nil
}

// CollectRoads fetches the road network linestrings.
func (c *Client) CollectRoads(ctx context.Context, bbox model.BoundingBox, dateFilter string) (*model.Collection, error) {
	coll, err := c.Collect(ctx, bbox, []string{"highway"}, dateFilter)
	if err != nil {
		return nil, err
	}
	return coll.ByKind(model.KindRoad), nil
}

// CollectLanduse fetches landuse and amenity polygons.
func (c *Client) CollectLanduse(ctx context.Context, bbox model.BoundingBox, dateFilter string) (*model.Collection, error) {
	coll, err := c.Collect(ctx, bbox, []string{"landuse", "amenity"}, dateFilter)
	if err != nil {
		return nil, err
	}
	return coll.ByKind(model.KindLanduse), nil
}

// CollectSnapshots fetches one collection per year using end-of-year date
// filters. When synthetic is set, only the latest year is fetched from the
// API; earlier years are deterministic samples of it, for demos against
// endpoints that reject attic data queries.
func (c *Client) CollectSnapshots(ctx context.Context, bbox model.BoundingBox, features []string, years []int, synthetic bool) (map[int]*model.Collection, error) {
	if len(years) == 0 {
		return nil, eris.New("overpass: at least one snapshot year is required")
	}
	sortedYears := make([]int, len(years))
	copy(sortedYears, years)
	sort.Ints(sortedYears)

	if synthetic {
		return c.syntheticSnapshots(ctx, bbox, features, sortedYears)
	}

	out := make(map[int]*model.Collection, len(sortedYears))
	for _, year := range sortedYears {
		filter := fmt.Sprintf("%d-12-31T23:59:59Z", year)
		coll, err := c.Collect(ctx, bbox, features, filter)
		if err != nil {
			return nil, eris.Wrapf(err, "overpass: snapshot %d", year)
		}
		c.logger.Info("collected snapshot",
			zap.Int("year", year),
			zap.Int("features", coll.Len()))
		out[year] = coll
	}
	return out, nil
}

func (c *Client) syntheticSnapshots(ctx context.Context, bbox model.BoundingBox, features []string, years []int) (map[int]*model.Collection, error) {
	c.logger.Warn("synthetic history enabled: earlier years are sampled from current data, not real historical snapshots")

	latest, err := c.Collect(ctx, bbox, features, "")
	if err != nil {
		return nil, eris.Wrap(err, "overpass: synthetic base collection")
	}

	out := make(map[int]*model.Collection, len(years))
	n := len(years)
	for i, year := range years {
		if i == n-1 {
			out[year] = latest
			continue
		}
		ratio := 0.3
		if n > 1 {
			ratio = 0.3 + 0.7*float64(i)/float64(n-1)
		}
		out[year] = sampleCollection(latest, ratio, int64(year))
	}
	return out, nil
}

// sampleCollection keeps a deterministic fraction of features, seeded so
// the same year always yields the same subset, in original order.
func sampleCollection(c *model.Collection, ratio float64, seed int64) *model.Collection {
	count := int(float64(c.Len()) * ratio)
	if count >= c.Len() {
		return c.Clone()
	}
	rng := rand.New(rand.NewSource(seed))
	keep := make(map[int]bool, count)
	for _, idx := range rng.Perm(c.Len())[:count] {
		keep[idx] = true
	}
	out := model.NewCollection()
	for i, f := range c.Features {
		if keep[i] {
			out.Append(f.Clone())
		}
	}
	return out
}

func (c *Client) collectSingle(ctx context.Context, bbox model.BoundingBox, features []string, dateFilter string) (*model.Collection, error) {
	if err := c.throttle.Acquire(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: throttle wait")
	}
	return c.runQuery(ctx, bbox, features, dateFilter)
}

func (c *Client) collectChunked(ctx context.Context, bbox model.BoundingBox, features []string, dateFilter string) (*model.Collection, error) {
	chunks := Split(bbox, maxChunkAreaKm2)
	c.logger.Info("query exceeds complexity threshold, collecting in chunks",
		zap.Int("chunks", len(chunks)),
		zap.Float64("area_km2", bbox.AreaKm2()))

	merged := model.NewCollection()
	seen := make(map[string]bool)
	for i, chunk := range chunks {
		if err := c.throttle.AcquireChunk(ctx); err != nil {
			return nil, eris.Wrap(err, "overpass: chunk throttle wait")
		}
		coll, err := c.runQuery(ctx, chunk, features, dateFilter)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrapf(err, "overpass: chunk %d of %d", i+1, len(chunks))
			}
			// A failed chunk loses one tile of data, not the whole run.
			c.logger.Warn("chunk failed, skipping",
				zap.Int("chunk", i+1),
				zap.Int("chunks", len(chunks)),
				zap.Error(err))
			continue
		}
		// Features straddling chunk borders appear in multiple chunks;
		// keep the first occurrence.
		for _, f := range coll.Features {
			id := fmt.Sprintf("%s/%d", f.OSMType, f.ID)
			if !seen[id] {
				seen[id] = true
				merged.Append(f)
			}
		}
		c.logger.Debug("chunk collected",
			zap.Int("chunk", i+1),
			zap.Int("features", coll.Len()))
	}
	return merged, nil
}

func (c *Client) runQuery(ctx context.Context, bbox model.BoundingBox, features []string, dateFilter string) (*model.Collection, error) {
	query := BuildQuery(bbox, features, dateFilter)
	api := c.std
	if ServerTimeoutSec(Complexity(bbox, features)) > 300 {
		api = c.long
	}
	result, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (overpassapi.Result, error) {
		return api.Query(query)
	})
	if err != nil {
		return nil, eris.Wrap(err, "overpass: query")
	}
	return convertResult(&result), nil
}

// convertResult maps the Overpass response to the internal feature model.
// Closed ways become polygons, open ways linestrings, tagged nodes points.
// Untagged nodes only carry way geometry and produce no features of their
// own. Relations are skipped; multipolygon assembly is out of scope.
func convertResult(result *overpassapi.Result) *model.Collection {
	out := model.NewCollection()

	wayIDs := make([]int64, 0, len(result.Ways))
	for id := range result.Ways {
		wayIDs = append(wayIDs, id)
	}
	sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })
	for _, id := range wayIDs {
		way := result.Ways[id]
		if way == nil {
			continue
		}
		g := wayGeometry(way)
		if g == nil {
			continue
		}
		out.Append(&model.Feature{
			ID:       way.ID,
			OSMType:  "way",
			Geometry: g,
			Tags:     model.Tags(way.Tags),
		})
	}

	nodeIDs := make([]int64, 0, len(result.Nodes))
	for id := range result.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })
	for _, id := range nodeIDs {
		node := result.Nodes[id]
		if node == nil || len(node.Tags) == 0 {
			continue
		}
		out.Append(&model.Feature{
			ID:       node.ID,
			OSMType:  "node",
			Geometry: geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{node.Lon, node.Lat}),
			Tags:     model.Tags(node.Tags),
		})
	}
	return out
}

func wayGeometry(way *overpassapi.Way) geom.T {
	coords := make([]geom.Coord, 0, len(way.Nodes))
	for _, n := range way.Nodes {
		if n == nil {
			continue
		}
		coords = append(coords, geom.Coord{n.Lon, n.Lat})
	}
	if len(coords) < 2 {
		return nil
	}
	closed := coords[0][0] == coords[len(coords)-1][0] && coords[0][1] == coords[len(coords)-1][1]
	if closed && len(coords) >= 4 {
		return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{coords})
	}
	return geom.NewLineString(geom.XY).MustSetCoords(coords)
}
