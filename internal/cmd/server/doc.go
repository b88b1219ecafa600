// Package serverrun boots and supervises a server process.
package serverrun
