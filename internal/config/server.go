package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	TurnTimeout      time.Duration `env:"TURN_TIMEOUT" envDefault:"15s"`
	ReconnectGrace   time.Duration `env:"RECONNECT_GRACE" envDefault:"60s"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	InactivityWindow time.Duration `env:"INACTIVITY_WINDOW" envDefault:"30m"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"60s"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
