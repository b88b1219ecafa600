// Package controllers contains the HTTP and WebSocket handlers, grouped per
// API surface and wired up through the Registry.
package controllers
