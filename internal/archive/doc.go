// Package archive implements the cold-storage handoff: overflow trimmed
// from a conversation's retained history is written to a blob store keyed by
// source and time, asynchronously and without delivery guarantees.
package archive
