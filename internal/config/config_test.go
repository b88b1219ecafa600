package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.RetentionLimit != 500 {
		t.Fatalf("retention = %d, want 500", cfg.RetentionLimit)
	}
	if cfg.RateLimitInterval() != time.Second {
		t.Fatalf("rate interval = %v, want 1s", cfg.RateLimitInterval())
	}
	if cfg.HTTPAddr == "" {
		t.Fatal("empty default http addr")
	}
}

func TestLoadJSONOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"retentionLimit": 10, "httpAddr": ":9999"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RetentionLimit != 10 || cfg.HTTPAddr != ":9999" {
		t.Fatalf("cfg = %+v", cfg)
	}
	// Untouched fields keep defaults.
	if cfg.RateLimitIntervalMs != 1000 {
		t.Fatalf("rate interval = %d, want default", cfg.RateLimitIntervalMs)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadBadJSONFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{nope`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("BAYKUS_RETENTION_LIMIT", "25")
	t.Setenv("BAYKUS_HTTP_ADDR", ":7070")
	t.Setenv("BAYKUS_RATE_LIMIT_INTERVAL_MS", "250")
	cfg := Default()
	FromEnv(&cfg)
	if cfg.RetentionLimit != 25 || cfg.HTTPAddr != ":7070" || cfg.RateLimitIntervalMs != 250 {
		t.Fatalf("cfg = %+v", cfg)
	}
}
