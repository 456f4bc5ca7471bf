// Package config defines the server configuration: defaults, an optional
// config file, environment overrides and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `mapstructure:"burst" env:"RATE_LIMIT_BURST"`
	RefillInterval time.Duration `mapstructure:"refill_interval" env:"RATE_LIMIT_REFILL_INTERVAL"`
}

// SessionConfig controls identifier sizes and idle session reaping.
type SessionConfig struct {
	// IDLength is the length of generated session, item and client ids.
	IDLength int `mapstructure:"id_length" env:"SESSION_ID_LENGTH"`
	// IdleTTL is how long a session without clients survives. Zero disables reaping.
	IdleTTL time.Duration `mapstructure:"idle_ttl" env:"SESSION_IDLE_TTL"`
	// ReapInterval is how often idle sessions are swept.
	ReapInterval time.Duration `mapstructure:"reap_interval" env:"SESSION_REAP_INTERVAL"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level" env:"LOG_LEVEL"`
	Format string `mapstructure:"format" env:"LOG_FORMAT"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint string `mapstructure:"endpoint" env:"OTEL_ENDPOINT"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string          `mapstructure:"port" env:"SERVER_PORT"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxMessageSize  int64           `mapstructure:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	Session         SessionConfig   `mapstructure:"session"`
	Log             LogConfig       `mapstructure:"log"`
	Telemetry       TelemetryConfig `mapstructure:"telemetry"`
}

// Default returns a Config populated with default values for all settings.
func Default() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  4096,
		ShutdownTimeout: 10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
		Session: SessionConfig{
			IDLength:     8,
			IdleTTL:      time.Hour,
			ReapInterval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// Load builds the effective configuration: defaults, then the config file at
// path (if any), then environment variables. The result is sanitized.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return Sanitize(cfg), nil
}

// ApplyEnv overrides cfg with every recognized environment variable that is set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)
	return nil
}

func mergeFile(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	// Lists in the file replace the defaults instead of overlaying them.
	if v.IsSet("allowed_origins") {
		cfg.AllowedOrigins = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

// Sanitize replaces invalid values with defaults and normalizes lists.
func Sanitize(cfg Config) Config {
	def := Default()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.Session.IDLength < 4 || cfg.Session.IDLength > 32 {
		cfg.Session.IDLength = def.Session.IDLength
	}
	if cfg.Session.IdleTTL < 0 {
		cfg.Session.IdleTTL = 0
	}
	if cfg.Session.ReapInterval <= 0 {
		cfg.Session.ReapInterval = def.Session.ReapInterval
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}

	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)
	return cfg
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
