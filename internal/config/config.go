// Package config loads and validates portal configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/subsidy-portal/internal/crawl"
	"github.com/JakeFAU/subsidy-portal/internal/fetcher"
	"github.com/JakeFAU/subsidy-portal/internal/matching"
	"github.com/JakeFAU/subsidy-portal/internal/policy/ratelimit"
	"github.com/JakeFAU/subsidy-portal/internal/procurement"
	"github.com/JakeFAU/subsidy-portal/internal/progress"
	"github.com/JakeFAU/subsidy-portal/internal/storage/postgres"
	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

// EnvPrefix prefixes every environment override, e.g. PORTAL_SERVER_PORT.
const EnvPrefix = "PORTAL"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Progress  progress.Config `mapstructure:"progress"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures the upstream HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout is the per-attempt upstream timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// RetryConfig holds one backoff policy per upstream.
type RetryConfig struct {
	Partner    fetcher.Policy `mapstructure:"partner"`
	PublicData fetcher.Policy `mapstructure:"public_data"`
}

// RateLimitConfig throttles upstream attempts per host.
type RateLimitConfig struct {
	DefaultRPS   float64                        `mapstructure:"default_rps"`
	DefaultBurst int                            `mapstructure:"default_burst"`
	Hosts        map[string]ratelimit.HostLimit `mapstructure:"hosts"`
}

// Limiter converts the section into limiter settings.
func (r RateLimitConfig) Limiter() ratelimit.Config {
	return ratelimit.Config{DefaultRPS: r.DefaultRPS, DefaultBurst: r.DefaultBurst, Hosts: r.Hosts}
}

// UpstreamConfig locates the partner API and the public data portal.
type UpstreamConfig struct {
	Partner    PartnerConfig      `mapstructure:"partner"`
	PublicData procurement.Config `mapstructure:"public_data"`
}

// PartnerConfig locates the partner subsidy API. An empty key serves mocks.
type PartnerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlConfig paces batch crawls.
type CrawlConfig struct {
	ListSize        int           `mapstructure:"list_size"`
	DetailBatchSize int           `mapstructure:"detail_batch_size"`
	BatchDelay      time.Duration `mapstructure:"batch_delay"`
	PageDelay       time.Duration `mapstructure:"page_delay"`
	MaxPages        int           `mapstructure:"max_pages"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// CrawlService merges partner access and pacing into the crawl settings.
func (c Config) CrawlService() crawl.Config {
	return crawl.Config{
		BaseURL:         c.Upstream.Partner.BaseURL,
		APIKey:          c.Upstream.Partner.APIKey,
		ListSize:        c.Crawl.ListSize,
		DetailBatchSize: c.Crawl.DetailBatchSize,
		BatchDelay:      c.Crawl.BatchDelay,
		PageDelay:       c.Crawl.PageDelay,
		MaxPages:        c.Crawl.MaxPages,
		Concurrency:     c.Crawl.Concurrency,
	}
}

// WorkflowConfig sizes the execution pool.
type WorkflowConfig struct {
	Workers     int                      `mapstructure:"workers"`
	QueueDepth  int                      `mapstructure:"queue_depth"`
	StepTimeout time.Duration            `mapstructure:"step_timeout"`
	BaseURL     string                   `mapstructure:"base_url"`
	Retention   workflow.RetentionConfig `mapstructure:"retention"`
}

// StepBaseURL is where step endpoints are called. It defaults to this
// server's own loopback address.
func (c Config) StepBaseURL() string {
	if c.Workflow.BaseURL != "" {
		return c.Workflow.BaseURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
}

// DatabaseConfig enables the Postgres execution store when DSN is set.
type DatabaseConfig struct {
	postgres.Config `mapstructure:",squash"`
	AutoMigrate     bool `mapstructure:"auto_migrate"`
}

// RulesConfig points at optional rule files loaded at start.
type RulesConfig struct {
	NormalizeFile string `mapstructure:"normalize_file"`
}

// MatchingConfig tunes the recommendation scorer.
type MatchingConfig struct {
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

var searchPaths = []string{".", "/etc/portal", "$HOME/.portal"}

// Load builds a Config from disk and environment. With an empty path a
// "portal" config file is looked up in the working directory, /etc/portal
// and $HOME/.portal; a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("portal")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	partnerPolicy := fetcher.ExponentialPolicy()
	publicPolicy := fetcher.LinearPolicy()
	crawlDefaults := crawl.DefaultConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 10*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("http.timeout_seconds", 30)

	v.SetDefault("retry.partner.strategy", string(partnerPolicy.Strategy))
	v.SetDefault("retry.partner.base", partnerPolicy.Base)
	v.SetDefault("retry.partner.max_attempts", partnerPolicy.MaxAttempts)
	v.SetDefault("retry.partner.max_delay", partnerPolicy.MaxDelay)
	v.SetDefault("retry.public_data.strategy", string(publicPolicy.Strategy))
	v.SetDefault("retry.public_data.base", publicPolicy.Base)
	v.SetDefault("retry.public_data.max_attempts", publicPolicy.MaxAttempts)
	v.SetDefault("retry.public_data.max_delay", publicPolicy.MaxDelay)

	v.SetDefault("rate_limit.default_rps", 0)
	v.SetDefault("rate_limit.default_burst", 1)

	v.SetDefault("upstream.partner.base_url", crawl.DefaultBaseURL)
	v.SetDefault("upstream.partner.api_key", "")
	v.SetDefault("upstream.public_data.notice_url", procurement.DefaultNoticeURL)
	v.SetDefault("upstream.public_data.result_url", procurement.DefaultResultURL)
	v.SetDefault("upstream.public_data.service_key", "")

	v.SetDefault("crawl.list_size", crawlDefaults.ListSize)
	v.SetDefault("crawl.detail_batch_size", crawlDefaults.DetailBatchSize)
	v.SetDefault("crawl.batch_delay", crawlDefaults.BatchDelay)
	v.SetDefault("crawl.page_delay", crawlDefaults.PageDelay)
	v.SetDefault("crawl.max_pages", crawlDefaults.MaxPages)
	v.SetDefault("crawl.concurrency", crawlDefaults.Concurrency)

	v.SetDefault("workflow.workers", 4)
	v.SetDefault("workflow.queue_depth", 64)
	v.SetDefault("workflow.step_timeout", workflow.DefaultStepTimeout)
	v.SetDefault("workflow.base_url", "")
	v.SetDefault("workflow.retention.ttl", 0)
	v.SetDefault("workflow.retention.max_count", 0)
	v.SetDefault("workflow.retention.interval", time.Minute)

	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("progress.sink_timeout", 5*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "workflow_executions")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("rules.normalize_file", "")
	v.SetDefault("matching.fuzzy_threshold", matching.DefaultFuzzyThreshold)

	v.SetDefault("telemetry.service_name", "subsidy-portal")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if err := c.Retry.Partner.Validate(); err != nil {
		return fmt.Errorf("retry.partner: %w", err)
	}
	if err := c.Retry.PublicData.Validate(); err != nil {
		return fmt.Errorf("retry.public_data: %w", err)
	}
	if c.RateLimit.DefaultRPS < 0 {
		return fmt.Errorf("rate_limit.default_rps must not be negative")
	}
	if c.Crawl.DetailBatchSize <= 0 || c.Crawl.Concurrency <= 0 || c.Crawl.ListSize <= 0 {
		return fmt.Errorf("crawl.list_size, crawl.detail_batch_size and crawl.concurrency must be > 0")
	}
	if c.Workflow.Workers <= 0 {
		return fmt.Errorf("workflow.workers must be > 0")
	}
	if c.Workflow.QueueDepth < 0 {
		return fmt.Errorf("workflow.queue_depth must not be negative")
	}
	if c.Workflow.Retention.TTL < 0 || c.Workflow.Retention.MaxCount < 0 {
		return fmt.Errorf("workflow.retention limits must not be negative")
	}
	if c.Matching.FuzzyThreshold < 0 || c.Matching.FuzzyThreshold > 1 {
		return fmt.Errorf("matching.fuzzy_threshold must be within [0,1]")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1]")
	}
	return nil
}
