// Package config loads application settings from environment variables.
//
// Settings are explicitly constructed and passed down; there is no package
// level singleton. APP_ENV selects an environment tier whose defaults apply
// unless overridden by a specific variable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment tier the server runs in
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// Default tunables. The channel capacity and idle timeout are deliberately
// conservative; validate under load before raising them.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 5001
	DefaultChannelCapacity   = 64
	DefaultSessionIdleLimit  = 5 * time.Minute
	DefaultSweepInterval     = 30 * time.Second
	DefaultKeepAliveInterval = 15 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
)

// Config holds all application settings
type Config struct {
	Environment Environment
	AppName     string
	Version     string

	Host string
	Port int

	AllowedOrigins []string

	LogLevel  string
	LogFormat string // "json" or "text"

	// ChannelCapacity bounds each session's outbound queue
	ChannelCapacity int
	// SessionIdleLimit is how long an unattached session may stay registered
	SessionIdleLimit time.Duration
	// SweepInterval is how often idle sessions are evicted
	SweepInterval time.Duration
	// KeepAliveInterval is the SSE comment-frame cadence
	KeepAliveInterval time.Duration
	// ShutdownTimeout bounds graceful HTTP shutdown
	ShutdownTimeout time.Duration

	// MetricsEnabled exposes /metrics when set
	MetricsEnabled bool
	// TracingEndpoint is the OTLP HTTP collector address; empty disables tracing
	TracingEndpoint string
}

// FromEnv builds a Config from the process environment
func FromEnv() (*Config, error) {
	env := parseEnvironment(os.Getenv("APP_ENV"))

	cfg := &Config{
		Environment:       env,
		AppName:           getEnv("APP_NAME", "sse-mcp-server"),
		Version:           getEnv("VERSION", "1.0.0"),
		Host:              getEnv("APP_HOST", DefaultHost),
		Port:              DefaultPort,
		AllowedOrigins:    parseList(os.Getenv("ALLOWED_ORIGINS"), defaultOrigins(env)),
		LogLevel:          getEnv("LOG_LEVEL", defaultLogLevel(env)),
		LogFormat:         getEnv("LOG_FORMAT", defaultLogFormat(env)),
		ChannelCapacity:   DefaultChannelCapacity,
		SessionIdleLimit:  DefaultSessionIdleLimit,
		SweepInterval:     DefaultSweepInterval,
		KeepAliveInterval: DefaultKeepAliveInterval,
		ShutdownTimeout:   DefaultShutdownTimeout,
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		TracingEndpoint:   os.Getenv("OTLP_ENDPOINT"),
	}

	var err error
	if cfg.Port, err = getEnvInt("APP_PORT", DefaultPort); err != nil {
		return nil, err
	}
	if cfg.ChannelCapacity, err = getEnvInt("SSE_CHANNEL_CAPACITY", DefaultChannelCapacity); err != nil {
		return nil, err
	}
	if cfg.SessionIdleLimit, err = getEnvDuration("SESSION_IDLE_TIMEOUT", DefaultSessionIdleLimit); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("SESSION_SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.KeepAliveInterval, err = getEnvDuration("SSE_KEEPALIVE_INTERVAL", DefaultKeepAliveInterval); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ChannelCapacity < 1 {
		return fmt.Errorf("channel capacity must be positive, got %d", c.ChannelCapacity)
	}
	if c.SessionIdleLimit <= 0 {
		return fmt.Errorf("session idle timeout must be positive, got %v", c.SessionIdleLimit)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", c.SweepInterval)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment reports whether the server runs in the development tier
func (c *Config) IsDevelopment() bool { return c.Environment == EnvDevelopment }

// IsProduction reports whether the server runs in the production tier
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

func parseEnvironment(raw string) Environment {
	switch strings.ToLower(raw) {
	case "production", "prod":
		return EnvProduction
	case "staging", "stage":
		return EnvStaging
	case "test":
		return EnvTest
	default:
		return EnvDevelopment
	}
}

func defaultLogLevel(env Environment) string {
	switch env {
	case EnvProduction:
		return "warn"
	case EnvStaging:
		return "info"
	default:
		return "debug"
	}
}

func defaultLogFormat(env Environment) string {
	switch env {
	case EnvDevelopment, EnvTest:
		return "text"
	default:
		return "json"
	}
}

func defaultOrigins(env Environment) []string {
	if env == EnvProduction {
		return []string{"http://localhost", "https://localhost"}
	}
	return []string{"*"}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return raw == "true" || raw == "1" || raw == "yes"
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseList(raw string, fallback []string) []string {
	raw = strings.Trim(raw, `"'`)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
