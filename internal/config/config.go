package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the engine configuration (~/.snapsync/config.toml).
type Config struct {
	// APIURL is the base URL of the backend REST API.
	APIURL string `toml:"api_url"`
	// RealtimeURL is the websocket endpoint for push events.
	RealtimeURL string `toml:"realtime_url"`
	// AnonKey is the public API key sent with every request.
	AnonKey string `toml:"anon_key"`
	// UserID identifies the local user; messages from it are "own".
	UserID string `toml:"user_id"`

	MaxMessageLength int      `toml:"max_message_length"`
	FetchLimit       int      `toml:"fetch_limit"`
	BusBufferSize    int      `toml:"bus_buffer_size"`
	UnreadReconcile  duration `toml:"unread_reconcile_interval"`
	LogPath          string   `toml:"log_path"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a config with usable defaults for everything that does
// not require credentials.
func Default() *Config {
	return &Config{
		MaxMessageLength: 4096,
		FetchLimit:       50,
		BusBufferSize:    256,
		UnreadReconcile:  duration{5 * time.Minute},
	}
}

// UnreadReconcileInterval returns the reconcile interval as a time.Duration.
func (c *Config) UnreadReconcileInterval() time.Duration {
	return c.UnreadReconcile.Duration
}

// Load reads config from the given path. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
