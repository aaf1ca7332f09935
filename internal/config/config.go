// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage and database backends.
const (
	BackendGCS      = "gcs"
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int      `mapstructure:"port"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	CaptureRatePerSecond  float64  `mapstructure:"capture_rate_per_second"`
	CaptureBurst          int      `mapstructure:"capture_burst"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HeadlessConfig configures the browser session. When disabled, captures fall back to the
// static metadata session and carry no screenshot.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	NetworkIdleMs int    `mapstructure:"network_idle_ms"`
	UserAgent     string `mapstructure:"user_agent"`
	ExecPath      string `mapstructure:"exec_path"`
	NoSandbox     bool   `mapstructure:"no_sandbox"`
}

// CaptureConfig governs the capture pipeline and the async job pool.
type CaptureConfig struct {
	Folder           string `mapstructure:"folder"`
	Workers          int    `mapstructure:"workers"`
	QueueDepth       int    `mapstructure:"queue_depth"`
	JobTimeoutSec    int    `mapstructure:"job_timeout_seconds"`
	JobRetention     int    `mapstructure:"job_retention"`
	StaticTimeoutSec int    `mapstructure:"static_timeout_seconds"`
}

// StorageConfig selects the asset backend and the CDN coordinates used to address it.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"`
	CDNHost      string `mapstructure:"cdn_host"`
	CDNNamespace string `mapstructure:"cdn_namespace"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	CacheControl string `mapstructure:"cache_control"`
	LocalDir     string `mapstructure:"local_dir"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Backend                string `mapstructure:"backend"`
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	RemoveTagConcurrency   int    `mapstructure:"remove_tag_concurrency"`
}

// PubSubConfig holds metadata for lifecycle notifications. An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ResolverConfig tunes rendition URL resolution.
type ResolverConfig struct {
	DebounceMs         int `mapstructure:"debounce_ms"`
	CacheSize          int `mapstructure:"cache_size"`
	TransformTimeoutMs int `mapstructure:"transform_timeout_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CORNELL")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 90)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.capture_rate_per_second", 2.0)
	v.SetDefault("server.capture_burst", 4)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 60)
	v.SetDefault("headless.network_idle_ms", 500)
	v.SetDefault("headless.user_agent", "")
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.no_sandbox", false)
	v.SetDefault("capture.folder", "cornell")
	v.SetDefault("capture.workers", 2)
	v.SetDefault("capture.queue_depth", 32)
	v.SetDefault("capture.job_timeout_seconds", 120)
	v.SetDefault("capture.job_retention", 1024)
	v.SetDefault("capture.static_timeout_seconds", 15)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.cdn_host", "http://localhost:8080")
	v.SetDefault("storage.cdn_namespace", "cornell")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.cache_control", "public, max-age=31536000")
	v.SetDefault("storage.local_dir", "data/assets")
	v.SetDefault("db.backend", BackendMemory)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "cornell")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("db.remove_tag_concurrency", 8)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("resolver.debounce_ms", 500)
	v.SetDefault("resolver.cache_size", 4096)
	v.SetDefault("resolver.transform_timeout_ms", 2000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.CaptureRatePerSecond < 0 {
		return fmt.Errorf("server.capture_rate_per_second must be >= 0")
	}
	if c.Server.CaptureRatePerSecond > 0 && c.Server.CaptureBurst <= 0 {
		return fmt.Errorf("server.capture_burst must be > 0 when rate limiting is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Capture.Workers <= 0 {
		return fmt.Errorf("capture.workers must be > 0")
	}
	if c.Capture.QueueDepth <= 0 {
		return fmt.Errorf("capture.queue_depth must be > 0")
	}
	if strings.Contains(c.Capture.Folder, "..") {
		return fmt.Errorf("capture.folder must not contain '..'")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.DB.validate(); err != nil {
		return err
	}
	if c.Resolver.DebounceMs < 0 {
		return fmt.Errorf("resolver.debounce_ms must be >= 0")
	}
	return nil
}

func (s StorageConfig) validate() error {
	if s.CDNHost == "" || s.CDNNamespace == "" {
		return fmt.Errorf("storage.cdn_host and storage.cdn_namespace are required")
	}
	switch s.Backend {
	case BackendGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case BackendLocal:
		if s.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not one of gcs, local, memory", s.Backend)
	}
	return nil
}

func (d DBConfig) validate() error {
	switch d.Backend {
	case BackendPostgres:
		if d.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("db.backend %q is not one of postgres, memory", d.Backend)
	}
	if d.MaxConns < 0 || d.MinConns < 0 || (d.MaxConns > 0 && d.MinConns > d.MaxConns) {
		return fmt.Errorf("db.min_conns must be between 0 and db.max_conns")
	}
	if d.RemoveTagConcurrency <= 0 {
		return fmt.Errorf("db.remove_tag_concurrency must be > 0")
	}
	return nil
}

// NavTimeout returns the browser navigation budget.
func (h HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(h.NavTimeoutSec) * time.Second
}

// NetworkIdle returns the quiet period that counts as network idle.
func (h HeadlessConfig) NetworkIdle() time.Duration {
	return time.Duration(h.NetworkIdleMs) * time.Millisecond
}

// JobTimeout bounds one asynchronous capture.
func (c CaptureConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSec) * time.Second
}

// StaticTimeout bounds one static metadata fetch.
func (c CaptureConfig) StaticTimeout() time.Duration {
	return time.Duration(c.StaticTimeoutSec) * time.Second
}

// MaxConnLifetime converts the configured minutes to a duration.
func (d DBConfig) MaxConnLifetime() time.Duration {
	return time.Duration(d.MaxConnLifetimeMinutes) * time.Minute
}

// RequestTimeout bounds a single API request.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// Debounce returns the layout-change quiet period before a rendition request.
func (r ResolverConfig) Debounce() time.Duration {
	return time.Duration(r.DebounceMs) * time.Millisecond
}

// TransformTimeout bounds one rendition lookup.
func (r ResolverConfig) TransformTimeout() time.Duration {
	return time.Duration(r.TransformTimeoutMs) * time.Millisecond
}
