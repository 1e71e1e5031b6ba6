// Package config assembles runtime configuration from defaults, an optional
// YAML file and PHARMA_-prefixed environment variables. Every tuned
// threshold in the pipeline is exposed here so retrieval bands and grouping
// bars can be adjusted without a rebuild.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pharmagician/pharma-engine/internal/grouper"
	"github.com/pharmagician/pharma-engine/internal/matcher"
)

type MeiliConfig struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	IndexName string `mapstructure:"index_name"`
}

func (m MeiliConfig) Enabled() bool { return m.URL != "" }

type CacheConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	Capacity int           `mapstructure:"capacity"`
}

type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type Config struct {
	Environment  string `mapstructure:"environment"`
	LogLevel     string `mapstructure:"log_level"`
	HTTPAddr     string `mapstructure:"http_addr"`
	DatabaseURL  string `mapstructure:"database_url"`
	SnapshotPath string `mapstructure:"snapshot_path"`
	SynonymsPath string `mapstructure:"synonyms_path"`

	Meili  MeiliConfig    `mapstructure:"meili"`
	Match  matcher.Config `mapstructure:"match"`
	Group  grouper.Config `mapstructure:"group"`
	Cache  CacheConfig    `mapstructure:"cache"`
	Search SearchConfig   `mapstructure:"search"`
}

func Default() Config {
	return Config{
		Environment: "local",
		LogLevel:    "info",
		HTTPAddr:    ":50051",
		Meili:       MeiliConfig{IndexName: "products"},
		Match:       matcher.DefaultConfig(),
		Group:       grouper.DefaultConfig(),
		Cache:       CacheConfig{TTL: 5 * time.Minute, Capacity: 1000},
		Search:      SearchConfig{DefaultLimit: 20, MaxLimit: 100},
	}
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("PHARMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits invalid: default %d, max %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Cache.TTL <= 0 || c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache config invalid: ttl %s, capacity %d", c.Cache.TTL, c.Cache.Capacity)
	}
	for _, band := range []matcher.Band{c.Match.ShortBand, c.Match.MediumBand, c.Match.LongBand} {
		if band.Threshold < 0 || band.Threshold > 1 || band.Pool <= 0 {
			return fmt.Errorf("match band invalid: threshold %v, pool %d", band.Threshold, band.Pool)
		}
	}
	if c.Group.CoreThreshold <= 0 || c.Group.CoreThresholdStrict < c.Group.CoreThreshold {
		return fmt.Errorf("group thresholds invalid: %v strict %v", c.Group.CoreThreshold, c.Group.CoreThresholdStrict)
	}
	return nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("environment", def.Environment)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("database_url", def.DatabaseURL)
	v.SetDefault("snapshot_path", def.SnapshotPath)
	v.SetDefault("synonyms_path", def.SynonymsPath)

	v.SetDefault("meili.url", def.Meili.URL)
	v.SetDefault("meili.api_key", def.Meili.APIKey)
	v.SetDefault("meili.index_name", def.Meili.IndexName)

	v.SetDefault("match.shortband.threshold", def.Match.ShortBand.Threshold)
	v.SetDefault("match.shortband.pool", def.Match.ShortBand.Pool)
	v.SetDefault("match.shortband.semanticfloor", def.Match.ShortBand.SemanticFloor)
	v.SetDefault("match.mediumband.threshold", def.Match.MediumBand.Threshold)
	v.SetDefault("match.mediumband.pool", def.Match.MediumBand.Pool)
	v.SetDefault("match.mediumband.semanticfloor", def.Match.MediumBand.SemanticFloor)
	v.SetDefault("match.longband.threshold", def.Match.LongBand.Threshold)
	v.SetDefault("match.longband.pool", def.Match.LongBand.Pool)
	v.SetDefault("match.longband.semanticfloor", def.Match.LongBand.SemanticFloor)
	v.SetDefault("match.fuzzypoolcap", def.Match.FuzzyPoolCap)
	v.SetDefault("match.exacttrust", def.Match.ExactTrust)
	v.SetDefault("match.trustedpool", def.Match.TrustedPool)
	v.SetDefault("match.semantick", def.Match.SemanticK)

	v.SetDefault("group.corethreshold", def.Group.CoreThreshold)
	v.SetDefault("group.corethresholdstrict", def.Group.CoreThresholdStrict)
	v.SetDefault("group.bucketpenalty", def.Group.BucketPenalty)
	v.SetDefault("group.maxgroups", def.Group.MaxGroups)

	v.SetDefault("cache.ttl", def.Cache.TTL)
	v.SetDefault("cache.capacity", def.Cache.Capacity)

	v.SetDefault("search.default_limit", def.Search.DefaultLimit)
	v.SetDefault("search.max_limit", def.Search.MaxLimit)
}
