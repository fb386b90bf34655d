// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net"

	"github.com/caarlos0/env/v11"
)

// Config is shared by the game, SSH and web commands. Each reads the fields it needs.
type Config struct {
	SSHHost        string `env:"SSH_HOST" envDefault:"::"`
	SSHPort        string `env:"SSH_PORT" envDefault:"2222"`
	SSHHostKey     string `env:"SSH_HOST_KEY" envDefault:"/app/keys/host_key"`
	SSHDisplayHost string `env:"SSH_DISPLAY_HOST" envDefault:"your-server.com"`

	WebHost string `env:"WEB_HOST" envDefault:"0.0.0.0"`
	WebPort string `env:"WEB_PORT" envDefault:"8080"`

	// EyeTrackerURL is the websocket the game subscribes to for gaze samples.
	// Empty leaves eye tracking unavailable; auto mode then uses the pointer.
	EyeTrackerURL string `env:"EYE_TRACKER_URL"`

	// DBPath enables SQLite persistence. Empty keeps records in memory.
	DBPath string `env:"DB_PATH"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	// Seed fixes spawn randomness when non-zero.
	Seed int64 `env:"SEED"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SSHAddr returns the SSH listen address.
func (c Config) SSHAddr() string {
	return net.JoinHostPort(c.SSHHost, c.SSHPort)
}

// WebAddr returns the HTTP listen address.
func (c Config) WebAddr() string {
	return net.JoinHostPort(c.WebHost, c.WebPort)
}
