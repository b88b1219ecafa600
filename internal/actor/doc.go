// Package actor provides key-addressed single-flight dispatch: every logical
// key (a room, a DM pair, the notification hub, a rate-limit subject) gets a
// mailbox drained by one goroutine, so state owned by that key needs no
// locking of its own.
package actor
