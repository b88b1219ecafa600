package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDGOverride(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	got := DefaultDataDir()
	if got != filepath.Join("/xdg/data", "baykus") {
		t.Fatalf("data dir = %s", got)
	}
}

func TestDefaultDataDirNeverEmpty(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	got := DefaultDataDir()
	if got == "" {
		t.Fatal("empty data dir")
	}
	if !strings.Contains(strings.ToLower(got), "baykus") && got != "./data" {
		t.Fatalf("unexpected data dir %s", got)
	}
}
