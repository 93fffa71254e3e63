package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/urbanatlas/osmgrowth/internal/cache"
	"github.com/urbanatlas/osmgrowth/internal/model"
	"github.com/urbanatlas/osmgrowth/internal/overpass"
)

// parseBBox parses a "south,west,north,east" string into a validated box.
func parseBBox(s string) (model.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.BoundingBox{}, eris.Errorf("bbox must be south,west,north,east, got %q", s)
	}
	var vals [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return model.BoundingBox{}, eris.Wrapf(err, "bbox coordinate %d", i+1)
		}
		vals[i] = v
	}
	bbox := model.BoundingBox{South: vals[0], West: vals[1], North: vals[2], East: vals[3]}
	if err := bbox.Validate(); err != nil {
		return model.BoundingBox{}, err
	}
	return bbox, nil
}

// initCache opens the filesystem cache, or returns nil when caching is
// disabled in config.
func initCache() (*cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	return cache.New(cfg.Cache.Dir, time.Duration(cfg.Cache.TTLHours)*time.Hour)
}

// newCollector builds the Overpass client, wiring the cache only when one
// is open so the collector's nil check stays meaningful.
func newCollector(store *cache.Store) *overpass.Client {
	occfg := overpass.Config{Endpoint: cfg.Overpass.URL}
	if store != nil {
		occfg.Cache = store
	}
	return overpass.New(occfg)
}
