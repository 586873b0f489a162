package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const prefix = "imagegen"

// Settings holds the process configuration. None of it is a credential; the
// generation API key always comes with the request.
type Settings struct {
	ListenAddr      string        `envconfig:"LISTEN_ADDR" default:":7860"`
	BaseURL         string        `envconfig:"BASE_URL" default:"https://api.navy/v1"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"1h"`
}

// Load reads an optional .env file and then the IMAGEGEN_* environment.
func Load(envFiles ...string) (*Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var s Settings
	if err := envconfig.Process(prefix, &s); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if s.SessionTTL <= 0 {
		return nil, fmt.Errorf("loading configuration: session ttl must be positive, got %s", s.SessionTTL)
	}
	return &s, nil
}
