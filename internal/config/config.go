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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Embed      EmbedConfig      `yaml:"embed" mapstructure:"embed"`
	Briefing   BriefingConfig   `yaml:"briefing" mapstructure:"briefing"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FirecrawlConfig holds Firecrawl API settings. Firecrawl is the crawl service.
type FirecrawlConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// EmbeddingConfig holds settings for the OpenAI-compatible embedding service.
type EmbeddingConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
}

// CrawlConfig configures how a single seed is expanded into pages.
type CrawlConfig struct {
	MaxPages                int `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth                int `yaml:"max_depth" mapstructure:"max_depth"`
	PollTimeoutSecs         int `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetSecs        int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	// ExcludePaths are glob patterns for pages never stored, e.g. "/careers/*".
	ExcludePaths []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// IngestConfig configures the portfolio-wide ingestion run.
type IngestConfig struct {
	PaceMillis  int `yaml:"pace_ms" mapstructure:"pace_ms"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// NewsConfig configures unattributed news ingestion.
type NewsConfig struct {
	Queries    []string `yaml:"queries" mapstructure:"queries"`
	MaxResults int      `yaml:"max_results" mapstructure:"max_results"`
	ReadFull   bool     `yaml:"read_full" mapstructure:"read_full"`
}

// ClassifyConfig configures the unattributed-news classification pass.
type ClassifyConfig struct {
	Limit        int `yaml:"limit" mapstructure:"limit"`
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// EmbedConfig configures the embedding backfill.
type EmbedConfig struct {
	BatchSize    int `yaml:"batch_size" mapstructure:"batch_size"`
	MaxBatches   int `yaml:"max_batches" mapstructure:"max_batches"`
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// BriefingConfig configures narrative briefing generation.
type BriefingConfig struct {
	LookbackHours int `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	MaxDocuments  int `yaml:"max_documents" mapstructure:"max_documents"`
	PaceMillis    int `yaml:"pace_ms" mapstructure:"pace_ms"`
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ScheduleConfig holds cron expressions for the job runner. An empty
// expression disables the job.
type ScheduleConfig struct {
	Ingest   string `yaml:"ingest" mapstructure:"ingest"`
	News     string `yaml:"news" mapstructure:"news"`
	Classify string `yaml:"classify" mapstructure:"classify"`
	Embed    string `yaml:"embed" mapstructure:"embed"`
	Briefing string `yaml:"briefing" mapstructure:"briefing"`
}

// ServerConfig configures the trigger server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run health alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackHours        int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	BacklogThreshold     int     `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
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
	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("firecrawl.max_pages", 25)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("crawl.max_pages", 25)
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.poll_timeout_secs", 300)
	v.SetDefault("crawl.breaker_failure_threshold", 5)
	v.SetDefault("crawl.breaker_reset_secs", 60)
	v.SetDefault("ingest.pace_ms", 2000)
	v.SetDefault("ingest.concurrency", 1)
	v.SetDefault("news.max_results", 10)
	v.SetDefault("news.read_full", true)
	v.SetDefault("classify.limit", 200)
	v.SetDefault("classify.max_text_chars", 4000)
	v.SetDefault("embed.batch_size", 64)
	v.SetDefault("embed.max_batches", 20)
	v.SetDefault("embed.max_text_chars", 8000)
	v.SetDefault("briefing.lookback_hours", 168)
	v.SetDefault("briefing.max_documents", 40)
	v.SetDefault("briefing.pace_ms", 1000)
	v.SetDefault("briefing.concurrency", 1)
	v.SetDefault("schedule.ingest", "0 2 * * *")
	v.SetDefault("schedule.news", "30 2 * * *")
	v.SetDefault("schedule.classify", "0 4 * * *")
	v.SetDefault("schedule.embed", "30 4 * * *")
	v.SetDefault("schedule.briefing", "0 6 * * *")
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.backlog_threshold", 5000)
	v.SetDefault("monitoring.check_interval_secs", 300)

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

// Validate checks the settings required by the given command mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	checkWidth := func(name string, n int) {
		if n < 1 || n > 16 {
			errs = append(errs, name+" must be between 1 and 16")
		}
	}

	switch mode {
	case "ingest":
		needStore()
		checkWidth("ingest.concurrency", c.Ingest.Concurrency)
		if c.Ingest.PaceMillis < 0 {
			errs = append(errs, "ingest.pace_ms must be >= 0")
		}
	case "news":
		needStore()
		if c.Jina.Key == "" {
			errs = append(errs, "jina.key is required")
		}
		if len(c.News.Queries) == 0 {
			errs = append(errs, "news.queries must not be empty")
		}
	case "classify":
		needStore()
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "embed":
		needStore()
		if c.Embedding.Key == "" {
			errs = append(errs, "embedding.key is required")
		}
		if c.Embed.BatchSize <= 0 {
			errs = append(errs, "embed.batch_size must be > 0")
		}
	case "briefing":
		needStore()
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		checkWidth("briefing.concurrency", c.Briefing.Concurrency)
	case "schedule":
		needStore()
		checkWidth("ingest.concurrency", c.Ingest.Concurrency)
		checkWidth("briefing.concurrency", c.Briefing.Concurrency)
	case "serve":
		needStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
		needStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
