// Package config loads endpoint configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the two endpoint base addresses plus client tuning knobs.
type Config struct {
	APIBaseURL     string        `env:"PYRAMID_API_URL" envDefault:"http://localhost:8080"`
	ChannelURL     string        `env:"PYRAMID_WS_URL" envDefault:"ws://localhost:8080/ws"`
	HTTPTimeout    time.Duration `env:"PYRAMID_HTTP_TIMEOUT" envDefault:"10s"`
	ReconnectDelay time.Duration `env:"PYRAMID_RECONNECT_DELAY" envDefault:"5s"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// Missing .env is fine; explicit env vars win either way.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
