// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by db.provider and documents.provider.
const (
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Documents DocumentsConfig `mapstructure:"documents"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls access to the record store.
type DBConfig struct {
	Provider               string `mapstructure:"provider"`
	DSN                    string `mapstructure:"dsn"`
	Schema                 string `mapstructure:"schema"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// HTTPConfig configures the feed and document client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`

	// RequestsPerSecond throttles each host; zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// FeedsConfig points at the open data service.
type FeedsConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CrawlerConfig governs batching and stage behavior.
type CrawlerConfig struct {
	ChunkSize             int  `mapstructure:"chunk_size"`
	DocumentChunkSize     int  `mapstructure:"document_chunk_size"`
	SkipPopulatedSessions bool `mapstructure:"skip_populated_sessions"`
}

// DocumentsConfig sets where documents are fetched from, converted and stored.
type DocumentsConfig struct {
	Provider              string `mapstructure:"provider"`
	Dir                   string `mapstructure:"dir"`
	GCSBucket             string `mapstructure:"gcs_bucket"`
	Prefix                string `mapstructure:"prefix"`
	SourceURL             string `mapstructure:"source_url"`
	ScratchDir            string `mapstructure:"scratch_dir"`
	Converter             string `mapstructure:"converter"`
	ConvertTimeoutSeconds int    `mapstructure:"convert_timeout_seconds"`
}

// PubSubConfig holds metadata for stage notifications. An empty project keeps
// reports in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEIMAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.provider", ProviderPostgres)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.schema", "")
	v.SetDefault("db.max_conns", 20)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("http.timeout_seconds", 60)
	v.SetDefault("http.user_agent", "seimas-scraper/0.1")
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("feeds.base_url", "https://apps.lrs.lt/sip/")
	v.SetDefault("crawler.chunk_size", 16)
	v.SetDefault("crawler.document_chunk_size", 8)
	v.SetDefault("crawler.skip_populated_sessions", true)
	v.SetDefault("documents.provider", ProviderLocal)
	v.SetDefault("documents.dir", "documents")
	v.SetDefault("documents.gcs_bucket", "")
	v.SetDefault("documents.prefix", "")
	v.SetDefault("documents.source_url", "https://e-seimas.lrs.lt/rs/legalact/TAK/%s/format/OO3_ODT/")
	v.SetDefault("documents.scratch_dir", "")
	v.SetDefault("documents.converter", "libreoffice")
	v.SetDefault("documents.convert_timeout_seconds", 120)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.DB.Provider {
	case ProviderPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is %q", ProviderPostgres)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("db.provider must be %q or %q, got %q", ProviderPostgres, ProviderMemory, c.DB.Provider)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Feeds.BaseURL == "" {
		return fmt.Errorf("feeds.base_url must be set")
	}
	if c.Crawler.ChunkSize <= 0 {
		return fmt.Errorf("crawler.chunk_size must be > 0")
	}
	if c.Crawler.DocumentChunkSize <= 0 {
		return fmt.Errorf("crawler.document_chunk_size must be > 0")
	}
	switch c.Documents.Provider {
	case ProviderLocal:
		if c.Documents.Dir == "" {
			return fmt.Errorf("documents.dir must be set when documents.provider is %q", ProviderLocal)
		}
	case ProviderGCS:
		if c.Documents.GCSBucket == "" {
			return fmt.Errorf("documents.gcs_bucket must be set when documents.provider is %q", ProviderGCS)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("documents.provider must be one of local, gcs, memory; got %q", c.Documents.Provider)
	}
	if !strings.Contains(c.Documents.SourceURL, "%s") {
		return fmt.Errorf("documents.source_url must contain a %%s placeholder for the document id")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// FetchTimeout is the per-request HTTP budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ConvertTimeout bounds one document conversion; zero means no bound.
func (c Config) ConvertTimeout() time.Duration {
	return time.Duration(c.Documents.ConvertTimeoutSeconds) * time.Second
}

// ConnLifetime is the maximum age of a pooled connection.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeMinutes) * time.Minute
}
