package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Proxy     ProxyConfig
	Session   SessionConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`

	// PublicBaseURL is what the snippet endpoint advertises as the
	// recorder script origin; empty means relative URLs.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"" yaml:"public_base_url"`
}

// ProxyConfig holds upstream fetch configuration.
type ProxyConfig struct {
	Timeout      time.Duration `envconfig:"PROXY_TIMEOUT" default:"20s" yaml:"timeout"`
	MaxRetries   int           `envconfig:"PROXY_MAX_RETRIES" default:"2" yaml:"max_retries"`
	UpstreamRPS  int           `envconfig:"PROXY_UPSTREAM_RPS" default:"50" yaml:"upstream_rps"`
	AllowPrivate bool          `envconfig:"PROXY_ALLOW_PRIVATE" default:"false" yaml:"allow_private"`
	UserAgent    string        `envconfig:"PROXY_USER_AGENT" default:"" yaml:"user_agent"`
}

// SessionConfig holds recording session configuration.
type SessionConfig struct {
	MaxSteps       int           `envconfig:"SESSION_MAX_STEPS" default:"500" yaml:"max_steps"`
	IdleGrace      time.Duration `envconfig:"SESSION_IDLE_GRACE" default:"30m" yaml:"idle_grace"`
	ListenerBuffer int           `envconfig:"SESSION_LISTENER_BUFFER" default:"64" yaml:"listener_buffer"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables, then applies an
// optional YAML overlay when OTW_CONFIG_FILE names one. File values win
// over environment values; keys absent from the file keep theirs.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if path := os.Getenv("OTW_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Proxy: ProxyConfig{
			Timeout:     20 * time.Second,
			MaxRetries:  2,
			UpstreamRPS: 50,
		},
		Session: SessionConfig{
			MaxSteps:       500,
			IdleGrace:      30 * time.Minute,
			ListenerBuffer: 64,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
