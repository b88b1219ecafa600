package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir picks the data directory for the host. XDG_DATA_HOME wins
// when set; otherwise the first conventional location that exists is used,
// with a dotdir in the home directory as the fallback.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "baykus")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	candidates := []struct {
		marker string
		dir    string
	}{
		{"/var/lib", "/var/lib/baykus"},
		{filepath.Join(home, "Library"), filepath.Join(home, "Library", "Application Support", "Baykus")},
		{filepath.Join(home, "AppData"), filepath.Join(home, "AppData", "Local", "Baykus")},
	}
	for _, c := range candidates {
		if info, err := os.Stat(c.marker); err == nil && info.IsDir() {
			return c.dir
		}
	}
	return filepath.Join(home, ".baykus")
}
