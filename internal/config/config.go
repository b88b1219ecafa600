package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// HTTPAddr is the listen address for the HTTP/WebSocket surface.
	HTTPAddr string `json:"httpAddr"`
	// DataDir holds the Pebble store; empty means the OS default location.
	DataDir string `json:"dataDir"`
	// ArchiveDir is the root of the local blob store for overflow batches;
	// empty means {DataDir}/archive.
	ArchiveDir string `json:"archiveDir"`
	// RetentionLimit is the maximum messages kept per conversation before
	// overflow is archived.
	RetentionLimit int `json:"retentionLimit"`
	// RateLimitIntervalMs is the minimum spacing between accepted requests
	// per rate-limit subject.
	RateLimitIntervalMs int `json:"rateLimitIntervalMs"`
	// ActorIdleTTLMs is how long an idle actor worker stays resident.
	ActorIdleTTLMs int    `json:"actorIdleTtlMs"`
	LogLevel       string `json:"logLevel"`
	LogFormat      string `json:"logFormat"` // "console" or "json"
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		RetentionLimit:      500,
		RateLimitIntervalMs: 1000,
		ActorIdleTTLMs:      int(5 * time.Minute / time.Millisecond),
		LogLevel:            "info",
		LogFormat:           "json",
	}
}

// RateLimitInterval returns the configured interval as a Duration.
func (c Config) RateLimitInterval() time.Duration {
	return time.Duration(c.RateLimitIntervalMs) * time.Millisecond
}

// ActorIdleTTL returns the configured idle TTL as a Duration.
func (c Config) ActorIdleTTL() time.Duration {
	return time.Duration(c.ActorIdleTTLMs) * time.Millisecond
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
