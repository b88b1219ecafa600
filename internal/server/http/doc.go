// Package httpserver exposes the chat runtime over HTTP and WebSockets.
package httpserver
