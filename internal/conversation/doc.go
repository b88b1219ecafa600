// Package conversation implements the stateful actor behind every chat room
// and direct-message pair: a bounded, durable message history with overflow
// archival and fan-out to live sessions. One actor per key; all mutation is
// serialized by the key dispatcher.
package conversation
