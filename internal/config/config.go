package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Harvest    HarvestConfig    `yaml:"harvest" mapstructure:"harvest"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	RunLog     RunLogConfig     `yaml:"runlog" mapstructure:"runlog"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig describes the leaderboard API and the parameter space to harvest.
type SourceConfig struct {
	BaseURL           string            `yaml:"base_url" mapstructure:"base_url"`
	PageSize          int               `yaml:"page_size" mapstructure:"page_size"`
	OrderBy           string            `yaml:"order_by" mapstructure:"order_by"`
	Periods           []string          `yaml:"periods" mapstructure:"periods"`
	MaxPage           int               `yaml:"max_page" mapstructure:"max_page"`
	Headers           map[string]string `yaml:"headers" mapstructure:"headers"`
	CompaniesFile     string            `yaml:"companies_file" mapstructure:"companies_file"`
	DiscoveryAttempts int               `yaml:"discovery_attempts" mapstructure:"discovery_attempts"`
}

// HarvestConfig configures the worker pool and the final flush.
type HarvestConfig struct {
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	FlushTimeoutSecs int `yaml:"flush_timeout_secs" mapstructure:"flush_timeout_secs"`
}

// FetchConfig configures the HTTP transport.
type FetchConfig struct {
	TimeoutSecs             int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts             int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec              float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"` // 0 disables pacing
	Burst                   int     `yaml:"burst" mapstructure:"burst"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// StoreConfig configures the durable record store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// RunLogConfig configures the SQLite run history.
type RunLogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures harvest health checks and webhook alerts.
type MonitoringConfig struct {
	Enabled                  bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL               string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs        int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours      int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold     float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	TaskFailureRateThreshold float64 `yaml:"task_failure_rate_threshold" mapstructure:"task_failure_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FlushTimeout is the harvest flush deadline.
func (h HarvestConfig) FlushTimeout() time.Duration {
	return time.Duration(h.FlushTimeoutSecs) * time.Second
}

// Timeout is the per-request deadline.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// CircuitReset is how long an open breaker waits before probing.
func (f FetchConfig) CircuitReset() time.Duration {
	return time.Duration(f.CircuitResetSecs) * time.Second
}

// ParsedPeriods converts the configured period labels.
func (s SourceConfig) ParsedPeriods() ([]model.Period, error) {
	out := make([]model.Period, 0, len(s.Periods))
	for _, p := range s.Periods {
		period := model.Period(strings.TrimSpace(p))
		if !period.Valid() {
			return nil, eris.Errorf("config: unknown period %q", p)
		}
		out = append(out, period)
	}
	return out, nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MINDSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.base_url", "https://api.wallchain.xyz/voices")
	v.SetDefault("source.page_size", 20)
	v.SetDefault("source.order_by", "position")
	v.SetDefault("source.periods", []string{"30d", "7d", "epoch-1", "epoch-2"})
	v.SetDefault("source.max_page", 50)
	v.SetDefault("source.headers", map[string]string{
		"accept":             "application/json, text/plain, */*",
		"sec-ch-ua-platform": "Linux",
	})
	v.SetDefault("source.discovery_attempts", 3)
	v.SetDefault("harvest.concurrency", 40)
	v.SetDefault("harvest.flush_timeout_secs", 30)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_attempts", 1)
	v.SetDefault("fetch.rate_per_sec", 0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.circuit_failure_threshold", 0)
	v.SetDefault("fetch.circuit_reset_secs", 30)
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.path", "mindshare_leaderboard.csv")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("runlog.path", "mindshare.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.task_failure_rate_threshold", 0.10)
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

// Validate checks the settings a command needs. mode is the command name:
// "harvest", "serve", "export" or "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "harvest":
		if c.Harvest.Concurrency < 1 || c.Harvest.Concurrency > 200 {
			errs = append(errs, "harvest.concurrency must be between 1 and 200")
		}
		if c.Source.MaxPage < 1 {
			errs = append(errs, "source.max_page must be >= 1")
		}
		if c.Source.PageSize < 1 {
			errs = append(errs, "source.page_size must be >= 1")
		}
		if len(c.Source.Periods) == 0 {
			errs = append(errs, "source.periods must not be empty")
		} else if _, err := c.Source.ParsedPeriods(); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Fetch.MaxAttempts < 1 {
			errs = append(errs, "fetch.max_attempts must be >= 1")
		}
		if c.Fetch.CircuitFailureThreshold < 0 {
			errs = append(errs, "fetch.circuit_failure_threshold must be >= 0")
		}
		errs = append(errs, c.validateStore()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateStore()...)
	case "export":
		errs = append(errs, c.validateStore()...)
	case "runs":
		if c.RunLog.Path == "" {
			errs = append(errs, "runlog.path is required")
		}
		if c.Monitoring.LookbackWindowHours < 1 {
			errs = append(errs, "monitoring.lookback_window_hours must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "csv", "sqlite":
		if c.Store.Path == "" {
			return []string{"store.path is required for driver " + c.Store.Driver}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for driver postgres"}
		}
	default:
		return []string{"store.driver must be one of csv, sqlite, postgres"}
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
