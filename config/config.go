package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Transport names accepted by Config.Transport.
const (
	TransportNative = "native"
	TransportH2C    = "h2c"
	TransportStd    = "std"
)

// Config holds all application configuration.
type Config struct {
	Host           string        `env:"HOST" envDefault:""`
	Port           int           `env:"PORT" envDefault:"8080"`
	Env            string        `env:"APP_ENV" envDefault:"development"`
	Transport      string        `env:"TRANSPORT" envDefault:"native"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" envDefault:"5s"`
	MaxConnections int           `env:"MAX_CONNECTIONS" envDefault:"100000"`
	Workers        int           `env:"WORKERS" envDefault:"0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	CaseSensitiveRouting bool `env:"CASE_SENSITIVE_ROUTING" envDefault:"true"`
	StrictRouting        bool `env:"STRICT_ROUTING" envDefault:"false"`

	// MetricsAddr is the listen address of the Prometheus endpoint. Empty disables it.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:""`
	GCPercent   int    `env:"GC_PERCENT" envDefault:"300"`
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the application runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks values that env parsing cannot.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	switch c.Transport {
	case TransportNative, TransportH2C, TransportStd:
	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	return nil
}

var dotenvOnce sync.Once

// Load reads an optional .env file once, then parses the environment into cfg.
func Load(cfg *Config) error {
	var dotenvErr error
	dotenvOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			dotenvErr = fmt.Errorf("config: load .env: %w", err)
		}
	})
	if dotenvErr != nil {
		return dotenvErr
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg.Validate()
}

// New loads configuration from the environment and panics on failure.
func New() *Config {
	cfg := &Config{}
	if err := Load(cfg); err != nil {
		panic(err)
	}
	return cfg
}
