// Package runtime assembles the storage engine, the key dispatcher, the
// archiver, and the actor facades into a single-node instance.
package runtime
