package models

import "encoding/json"

// Event types fanned out by the notification hub. The list is open-ended;
// publishers may use any type string, these are the ones the platform emits.
const (
	EventPresenceUpdate     = "PRESENCE_UPDATE"
	EventFriendStatusUpdate = "FRIEND_STATUS_UPDATE"
	EventChannelUpdate      = "CHANNEL_UPDATE"
	EventServerUpdate       = "SERVER_UPDATE"
)

// Event is a hub notification. Data is opaque to the hub; it is delivered
// verbatim to every live session and never persisted.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	// Ts is the publish time in Unix milliseconds, assigned by the hub.
	Ts int64 `json:"ts"`
}
