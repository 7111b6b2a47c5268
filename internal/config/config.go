package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config defines all environment-driven runtime options.
type Config struct {
	DataDir          string        `env:"NWL_DATA_DIR" envDefault:"./data"`
	LogLevel         string        `env:"NWL_LOG_LEVEL" envDefault:"info"`
	AuthURL          string        `env:"NWL_AUTH_URL" envDefault:"https://nation-wars.worldofentaria.eu"`
	ProviderTimeout  time.Duration `env:"NWL_PROVIDER_TIMEOUT" envDefault:"30s"`
	ValidateInterval time.Duration `env:"NWL_VALIDATE_INTERVAL" envDefault:"30m"`
	MicrosoftClient  string        `env:"NWL_MICROSOFT_CLIENT_ID"`
	MicrosoftTenant  string        `env:"NWL_MICROSOFT_TENANT" envDefault:"consumers"`
	KeyringBackend   string        `env:"NWL_KEYRING_BACKEND"`
	KeyringPassword  string        `env:"NWL_KEYRING_PASSWORD"`
	Proxy            string        `env:"NWL_UPSTREAM_PROXY"`
}

// Load reads .env (if present) and parses environment variables into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("parse env config: NWL_PROVIDER_TIMEOUT must be positive")
	}
	if cfg.ValidateInterval <= 0 {
		return nil, fmt.Errorf("parse env config: NWL_VALIDATE_INTERVAL must be positive")
	}

	return cfg, nil
}

// KeyringDir is where the file keyring backend keeps its encrypted items.
func (c *Config) KeyringDir() string {
	return filepath.Join(c.DataDir, "keyring")
}
