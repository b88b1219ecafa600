package config

import (
	"os"
	"strconv"
)

// FromEnv overlays BAYKUS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("BAYKUS_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("BAYKUS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BAYKUS_ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}
	if v := os.Getenv("BAYKUS_RETENTION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetentionLimit = n
		}
	}
	if v := os.Getenv("BAYKUS_RATE_LIMIT_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitIntervalMs = n
		}
	}
	if v := os.Getenv("BAYKUS_ACTOR_IDLE_TTL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ActorIdleTTLMs = n
		}
	}
	if v := os.Getenv("BAYKUS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BAYKUS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
