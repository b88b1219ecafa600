// Package session defines the live-connection handle actors fan out to and
// the ephemeral registry each actor embeds.
package session
