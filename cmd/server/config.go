package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// serverConfig is loaded from the environment with the RATELIMITER_ prefix,
// e.g. RATELIMITER_ADDR=:9090.
type serverConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	Mode            string        `envconfig:"MODE" default:"release"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// LegacyTokenCap switches the token bucket to the historical
	// max(rate*60, capacity) clamp. See ratelimiter.WithLegacyTokenCap.
	LegacyTokenCap bool `envconfig:"LEGACY_TOKEN_CAP" default:"false"`
}

func loadConfig() (serverConfig, error) {
	var cfg serverConfig
	if err := envconfig.Process("ratelimiter", &cfg); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}
