// Package pebblestore wraps Pebble with the durability policy shared by all
// actors: atomic batches, configurable WAL fsync, and an optional metrics
// hook for storage latencies.
package pebblestore
