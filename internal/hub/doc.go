// Package hub implements the platform-wide notification actor: best-effort
// fan-out of presence and structural events to all subscribed sessions,
// plus a small durable tracking counter. One singleton per deployment,
// addressed by a fixed key.
package hub
