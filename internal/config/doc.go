// Package config loads server configuration from a JSON file with BAYKUS_*
// environment overrides.
package config
