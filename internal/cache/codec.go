package cache

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/urbanatlas/osmgrowth/internal/model"
)

// featureRecord is the gob-friendly form of a model.Feature: geometry is
// carried as EWKB bytes since geom.T is an interface gob cannot encode.
type featureRecord struct {
	ID              int64
	OSMType         string
	Geometry        []byte
	Tags            map[string]string
	AreaM2          float64
	LengthM         float64
	Levels          float64
	FloorAreaM2     float64
	BuildingType    string
	RoadClass       string
	LanduseCategory string
	ClusterID       int
	DistanceToRoadM float64
	Accessible      bool
}

// EncodeCollection serializes a feature collection to a gob blob.
func EncodeCollection(c *model.Collection) ([]byte, error) {
	records := make([]featureRecord, 0, c.Len())
	for _, f := range c.Features {
		rec := featureRecord{
			ID:              f.ID,
			OSMType:         f.OSMType,
			Tags:            f.Tags,
			AreaM2:          f.AreaM2,
			LengthM:         f.LengthM,
			Levels:          f.Levels,
			FloorAreaM2:     f.FloorAreaM2,
			BuildingType:    f.BuildingType,
			RoadClass:       f.RoadClass,
			LanduseCategory: f.LanduseCategory,
			ClusterID:       f.ClusterID,
			DistanceToRoadM: f.DistanceToRoadM,
			Accessible:      f.Accessible,
		}
		if f.Geometry != nil {
			data, err := ewkb.Marshal(f.Geometry, ewkb.NDR)
			if err != nil {
				return nil, eris.Wrapf(err, "cache: encode geometry of feature %d", f.ID)
			}
			rec.Geometry = data
		}
		records = append(records, rec)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return nil, eris.Wrap(err, "cache: encode collection")
	}
	return buf.Bytes(), nil
}

// DecodeCollection deserializes a gob blob back into a collection.
func DecodeCollection(data []byte) (*model.Collection, error) {
	var records []featureRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "cache: decode collection")
	}
	out := model.NewCollection()
	for _, rec := range records {
		f := &model.Feature{
			ID:              rec.ID,
			OSMType:         rec.OSMType,
			Tags:            rec.Tags,
			AreaM2:          rec.AreaM2,
			LengthM:         rec.LengthM,
			Levels:          rec.Levels,
			FloorAreaM2:     rec.FloorAreaM2,
			BuildingType:    rec.BuildingType,
			RoadClass:       rec.RoadClass,
			LanduseCategory: rec.LanduseCategory,
			ClusterID:       rec.ClusterID,
			DistanceToRoadM: rec.DistanceToRoadM,
			Accessible:      rec.Accessible,
		}
		if len(rec.Geometry) > 0 {
			g, err := ewkb.Unmarshal(rec.Geometry)
			if err != nil {
				return nil, eris.Wrapf(err, "cache: decode geometry of feature %d", rec.ID)
			}
			f.Geometry = g
		}
		out.Append(f)
	}
	return out, nil
}

// GetCollection loads a cached feature collection. Corrupt entries are
// deleted and reported as misses.
func (s *Store) GetCollection(namespace, key string) (*model.Collection, bool) {
	data, ok := s.Get(namespace, key)
	if !ok {
		return nil, false
	}
	c, err := DecodeCollection(data)
	if err != nil {
		s.logger.Warn("cache entry corrupt, removing",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err))
		_ = os.Remove(s.path(namespace, key))
		return nil, false
	}
	return c, true
}

// PutCollection stores a feature collection.
func (s *Store) PutCollection(namespace, key string, c *model.Collection) error {
	data, err := EncodeCollection(c)
	if err != nil {
		return err
	}
	return s.Put(namespace, key, data)
}
