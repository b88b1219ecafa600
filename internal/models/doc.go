// Package models holds the wire/storage types shared across actors and the
// transport layer.
package models
