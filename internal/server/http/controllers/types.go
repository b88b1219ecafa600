package controllers

import "encoding/json"

// Common request/response types for HTTP controllers

// sendMessageReq represents a message send, over REST or a chat socket.
type sendMessageReq struct {
	Content       string `json:"content"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
}

// publishEventReq represents an event published to the notification hub.
type publishEventReq struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// setStatusReq represents a presence update for the calling user.
type setStatusReq struct {
	Status string `json:"status"`
}

// socketError is pushed down a chat socket when a client frame is rejected.
type socketError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
