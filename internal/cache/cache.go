// Package cache is a filesystem cache for collected OSM data, processed
// feature collections, and analysis results. Entries live under one of four
// namespace directories and expire by file modification time.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache namespaces. Each is a directory under the cache root.
const (
	NamespaceOSMData   = "osm_data"
	NamespaceProcessed = "processed_data"
	NamespaceResults   = "analysis_results"
	NamespaceMetadata  = "metadata"
)

var namespaces = []string{
	NamespaceOSMData, NamespaceProcessed, NamespaceResults, NamespaceMetadata,
}

// DefaultTTL is the entry lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Store is a TTL file cache rooted at a directory. Safe for concurrent use
// by independent keys; concurrent writers of the same key last-write-win.
type Store struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger
}

// New creates the cache directory tree and returns a Store. A non-positive
// ttl falls back to DefaultTTL.
func New(dir string, ttl time.Duration) (*Store, error) {
	if dir == "" {
		return nil, eris.New("cache: directory must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	for _, ns := range namespaces {
		if err := os.MkdirAll(filepath.Join(dir, ns), 0o755); err != nil {
			return nil, eris.Wrapf(err, "cache: create namespace %s", ns)
		}
	}
	return &Store{
		dir:    dir,
		ttl:    ttl,
		logger: zap.L().With(zap.String("component", "cache")),
	}, nil
}

// Key derives a deterministic cache key from request parameters: the MD5
// hex digest of the parameters' canonical JSON form. json.Marshal writes
// map keys in sorted order, so key stability only requires callers to
// pre-sort slice values.
func Key(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Parameters are plain strings, numbers, and slices; marshal
		// failures indicate a programming error.
		panic(err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the raw entry bytes, or ok=false on a miss. Expired and
// unreadable entries are deleted and reported as misses.
func (s *Store) Get(namespace, key string) ([]byte, bool) {
	path := s.path(namespace, key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > s.ttl {
		s.logger.Debug("cache entry expired",
			zap.String("namespace", namespace),
			zap.String("key", key))
		_ = os.Remove(path)
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("cache entry unreadable, removing",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err))
		_ = os.Remove(path)
		return nil, false
	}
	return data, true
}

// Put writes an entry, resetting its TTL.
func (s *Store) Put(namespace, key string, data []byte) error {
	path := s.path(namespace, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "cache: write %s/%s", namespace, key)
	}
	return nil
}

// GetJSON unmarshals a cached JSON entry into out. A corrupt entry is
// deleted and reported as a miss.
func (s *Store) GetJSON(namespace, key string, out any) bool {
	data, ok := s.Get(namespace, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("cache entry corrupt, removing",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err))
		_ = os.Remove(s.path(namespace, key))
		return false
	}
	return true
}

// PutJSON stores v as a JSON entry.
func (s *Store) PutJSON(namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: marshal %s/%s", namespace, key)
	}
	return s.Put(namespace, key, data)
}

// Clear removes all entries in the namespace, or in every namespace when
// namespace is empty. Returns the number of entries removed.
func (s *Store) Clear(namespace string) (int, error) {
	targets := namespaces
	if namespace != "" {
		if !validNamespace(namespace) {
			return 0, eris.Errorf("cache: unknown namespace %q", namespace)
		}
		targets = []string{namespace}
	}
	removed := 0
	for _, ns := range targets {
		entries, err := os.ReadDir(filepath.Join(s.dir, ns))
		if err != nil {
			return removed, eris.Wrapf(err, "cache: read namespace %s", ns)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(s.dir, ns, e.Name())); err != nil {
				return removed, eris.Wrapf(err, "cache: remove %s/%s", ns, e.Name())
			}
			removed++
		}
	}
	return removed, nil
}

// NamespaceStats summarizes one namespace directory.
type NamespaceStats struct {
	Entries    int   `json:"entries"`
	SizeBytes  int64 `json:"size_bytes"`
	ExpiredNow int   `json:"expired"`
}

// Stats reports entry counts and sizes per namespace.
func (s *Store) Stats() (map[string]NamespaceStats, error) {
	out := make(map[string]NamespaceStats, len(namespaces))
	now := time.Now()
	for _, ns := range namespaces {
		entries, err := os.ReadDir(filepath.Join(s.dir, ns))
		if err != nil {
			return nil, eris.Wrapf(err, "cache: read namespace %s", ns)
		}
		var st NamespaceStats
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			st.Entries++
			st.SizeBytes += info.Size()
			if now.Sub(info.ModTime()) > s.ttl {
				st.ExpiredNow++
			}
		}
		out[ns] = st
	}
	return out, nil
}

// CleanupExpired removes every entry older than the TTL across all
// namespaces. Returns the number removed.
func (s *Store) CleanupExpired() (int, error) {
	removed := 0
	now := time.Now()
	for _, ns := range namespaces {
		dir := filepath.Join(s.dir, ns)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, eris.Wrapf(err, "cache: read namespace %s", ns)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) > s.ttl {
				if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
					removed++
				}
			}
		}
	}
	if removed > 0 {
		s.logger.Info("removed expired cache entries", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *Store) path(namespace, key string) string {
	return filepath.Join(s.dir, namespace, key+".bin")
}

func validNamespace(ns string) bool {
	for _, n := range namespaces {
		if n == ns {
			return true
		}
	}
	return false
}
