// Package config loads application configuration from an optional
// config.yaml and OSMGROWTH_-prefixed environment variables, and installs
// the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig configures the default analysis run.
type AnalysisConfig struct {
	// BBox is the default extent as "south,west,north,east".
	BBox string `yaml:"bbox" mapstructure:"bbox"`
	// Years are the snapshot years to compare, ascending.
	Years []int `yaml:"years" mapstructure:"years"`
	// Features are the Overpass tag selectors to collect.
	Features []string `yaml:"features" mapstructure:"features"`
	// GridKm is the hotspot grid cell size in kilometers.
	GridKm float64 `yaml:"grid_km" mapstructure:"grid_km"`
	// ClusterEpsM and ClusterMinSamples parameterize building clustering.
	ClusterEpsM       float64 `yaml:"cluster_eps_m" mapstructure:"cluster_eps_m"`
	ClusterMinSamples int     `yaml:"cluster_min_samples" mapstructure:"cluster_min_samples"`
	// AccessDistanceM is the road accessibility threshold in meters.
	AccessDistanceM float64 `yaml:"access_distance_m" mapstructure:"access_distance_m"`
}

// OverpassConfig configures the Overpass API client.
type OverpassConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
	// SyntheticHistory replaces historical snapshots with deterministic
	// samples of current data. Demo mode for endpoints without attic
	// data; a warning is logged when enabled.
	SyntheticHistory bool `yaml:"synthetic_history" mapstructure:"synthetic_history"`
}

// CacheConfig configures the filesystem cache.
type CacheConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
}

// ExportConfig configures result output.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OSMGROWTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.bbox", "40.70,-74.02,40.75,-73.97")
	v.SetDefault("analysis.years", []int{2015, 2020, 2025})
	v.SetDefault("analysis.features", []string{"building", "highway", "landuse", "amenity"})
	v.SetDefault("analysis.grid_km", 1.0)
	v.SetDefault("analysis.cluster_eps_m", 100.0)
	v.SetDefault("analysis.cluster_min_samples", 5)
	v.SetDefault("analysis.access_distance_m", 500.0)
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.synthetic_history", false)
	v.SetDefault("cache.dir", ".osmgrowth-cache")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("export.dir", "output")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
