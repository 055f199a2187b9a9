package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Attom  AttomConfig  `yaml:"attom" mapstructure:"attom"`
	County CountyConfig `yaml:"county" mapstructure:"county"`
	Retry  RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Report ReportConfig `yaml:"report" mapstructure:"report"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port             int    `yaml:"port" mapstructure:"port"`
	StaticDir        string `yaml:"static_dir" mapstructure:"static_dir"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AttomConfig configures the ATTOM property API.
type AttomConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CountyConfig configures the appraisal district adapters.
type CountyConfig struct {
	TimeoutSecs   int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinIntervalMs int           `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	HCAD          CADSiteConfig `yaml:"hcad" mapstructure:"hcad"`
	FBCAD         CADSiteConfig `yaml:"fbcad" mapstructure:"fbcad"`
}

// CADSiteConfig configures one appraisal district site.
type CADSiteConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RetryConfig configures retries of transient upstream API failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ReportConfig configures report assembly.
type ReportConfig struct {
	// SchemaPath overrides the embedded field schema when set.
	SchemaPath string `yaml:"schema_path" mapstructure:"schema_path"`
}

// AttomTimeout returns the ATTOM adapter deadline.
func (c *Config) AttomTimeout() time.Duration {
	return time.Duration(c.Attom.TimeoutSecs) * time.Second
}

// CountyTimeout returns the county adapter deadline.
func (c *Config) CountyTimeout() time.Duration {
	return time.Duration(c.County.TimeoutSecs) * time.Second
}

// CountyMinInterval returns the minimum spacing between requests to one county site.
func (c *Config) CountyMinInterval() time.Duration {
	return time.Duration(c.County.MinIntervalMs) * time.Millisecond
}

// Validate checks the settings a command depends on. mode is "serve" for
// the HTTP server or "cli" for one-shot commands.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 {
			errs = append(errs, "server timeouts must be >= 0")
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Attom.TimeoutSecs <= 0 {
		errs = append(errs, "attom.timeout_secs must be > 0")
	}
	if c.County.TimeoutSecs <= 0 {
		errs = append(errs, "county.timeout_secs must be > 0")
	}
	if c.County.MinIntervalMs < 0 {
		errs = append(errs, "county.min_interval_ms must be >= 0")
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, "retry.max_attempts must be >= 0")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		errs = append(errs, "retry.jitter_fraction must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPERTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("attom.api_key", "PROPERTY_ATTOM_API_KEY", "ATTOM_API_KEY")
	_ = v.BindEnv("server.port", "PROPERTY_SERVER_PORT", "PORT")

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("server.write_timeout_secs", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("attom.api_key", "")
	v.SetDefault("attom.base_url", "https://api.gateway.attomdata.com")
	v.SetDefault("attom.timeout_secs", 20)
	v.SetDefault("county.timeout_secs", 45)
	v.SetDefault("county.min_interval_ms", 2000)
	v.SetDefault("county.user_agent", "")
	v.SetDefault("county.hcad.base_url", "https://hcad.org")
	v.SetDefault("county.fbcad.base_url", "https://esearch.fbcad.org")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("report.schema_path", "")

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
