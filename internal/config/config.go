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
	Relay     RelayConfig     `yaml:"relay" mapstructure:"relay"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Archive   ArchiveConfig   `yaml:"archive" mapstructure:"archive"`
	Job       JobConfig       `yaml:"job" mapstructure:"job"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RelayConfig holds mail relay credentials and rate limits.
type RelayConfig struct {
	Token         string  `yaml:"token" mapstructure:"token"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
}

// AnthropicConfig holds Anthropic API settings for order extraction.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// CatalogConfig points at an optional supplier catalog override file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ArchiveConfig configures the local order archive.
type ArchiveConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// JobConfig configures ingestion job behavior.
type JobConfig struct {
	MaxCandidates     int `yaml:"max_candidates" mapstructure:"max_candidates"`
	FallbackThreshold int `yaml:"fallback_threshold" mapstructure:"fallback_threshold"`
	RetentionMins     int `yaml:"retention_mins" mapstructure:"retention_mins"`
	SweepIntervalMins int `yaml:"sweep_interval_mins" mapstructure:"sweep_interval_mins"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("REORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("relay.base_url", "https://relay.arda.app/v1")
	v.SetDefault("relay.rate_per_second", 5)
	v.SetDefault("relay.burst", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("archive.path", "orders.db")
	v.SetDefault("job.max_candidates", 50)
	v.SetDefault("job.fallback_threshold", 5)
	v.SetDefault("job.retention_mins", 60)
	v.SetDefault("job.sweep_interval_mins", 10)

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

// Validate checks that the configuration is usable for the given command
// mode. Modes: "ingest", "suppliers", "serve", "report".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkUpstreams := func() {
		if c.Relay.Token == "" {
			problems = append(problems, "relay.token is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	}

	switch mode {
	case "ingest", "suppliers":
		checkUpstreams()
	case "serve":
		checkUpstreams()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "report":
		if c.Archive.Path == "" {
			problems = append(problems, "archive.path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Job.MaxCandidates < 1 || c.Job.MaxCandidates > 500 {
		problems = append(problems, "job.max_candidates must be between 1 and 500")
	}
	if c.Job.RetentionMins < 1 {
		problems = append(problems, "job.retention_mins must be >= 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
