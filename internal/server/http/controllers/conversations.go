package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/conversation"
	"github.com/Trust-in-depth/BAYKUS/internal/models"
	"github.com/Trust-in-depth/BAYKUS/internal/runtime"
)

// ConversationsController handles room and direct-message endpoints: bounded
// history reads, sends, and the live chat sockets.
type ConversationsController struct {
	rt     *runtime.Runtime
	logger zerolog.Logger
}

// NewConversationsController creates a new conversations controller.
func NewConversationsController(rt *runtime.Runtime, logger zerolog.Logger) *ConversationsController {
	return &ConversationsController{
		rt:     rt,
		logger: logger.With().Str("component", "conversations-http").Logger(),
	}
}

// RegisterRoutes registers conversation routes with the router.
//
// Rooms and DMs share one implementation; only the actor key derivation
// differs. DM keys order the participant pair so both sides land on the same
// actor.
func (c *ConversationsController) RegisterRoutes(r chi.Router) {
	r.Get("/v1/rooms/{roomID}/messages", c.handleRoomHistory)
	r.Post("/v1/rooms/{roomID}/messages", c.handleRoomSend)
	r.Get("/v1/rooms/{roomID}/sessions", c.handleRoomSessions)
	r.Get("/ws/chat/{roomID}", c.handleRoomSocket)

	r.Get("/v1/dms/{peerID}/messages", c.handleDMHistory)
	r.Post("/v1/dms/{peerID}/messages", c.handleDMSend)
	r.Get("/ws/dm/{peerID}", c.handleDMSocket)
}

func (c *ConversationsController) roomKey(r *http.Request) string {
	return conversation.RoomKey(chi.URLParam(r, "roomID"))
}

func (c *ConversationsController) dmKey(r *http.Request) string {
	id := identityFrom(r.Context())
	return conversation.DMKey(id.UserID, chi.URLParam(r, "peerID"))
}

func (c *ConversationsController) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	c.serveHistory(w, r, c.roomKey(r))
}

func (c *ConversationsController) handleDMHistory(w http.ResponseWriter, r *http.Request) {
	c.serveHistory(w, r, c.dmKey(r))
}

// serveHistory returns the retained window in append order. Older messages
// live only in the archive.
func (c *ConversationsController) serveHistory(w http.ResponseWriter, r *http.Request, key string) {
	msgs, err := c.rt.Conversation(key).History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, map[string]any{"messages": msgs})
}

func (c *ConversationsController) handleRoomSend(w http.ResponseWriter, r *http.Request) {
	c.serveSend(w, r, c.roomKey(r))
}

func (c *ConversationsController) handleDMSend(w http.ResponseWriter, r *http.Request) {
	c.serveSend(w, r, c.dmKey(r))
}

func (c *ConversationsController) serveSend(w http.ResponseWriter, r *http.Request, key string) {
	id := identityFrom(r.Context())
	var req sendMessageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ok, err := c.rt.RateLimiter().Admit(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check rate limit")
		return
	}
	if !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(c.rt.Config().RateLimitInterval().Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "Sending too fast")
		return
	}

	msg, err := c.rt.Conversation(key).Send(r.Context(), conversation.Sender{
		UserID:   id.UserID,
		Username: id.Username,
	}, req.Content, req.AttachmentRef)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyContent) {
			writeError(w, http.StatusBadRequest, "Empty message")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	_ = c.rt.Status().Touch(r.Context(), id.UserID)
	writeStatusJSON(w, http.StatusCreated, msg)
}

func (c *ConversationsController) handleRoomSessions(w http.ResponseWriter, r *http.Request) {
	n, err := c.rt.Conversation(c.roomKey(r)).Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count sessions")
		return
	}
	writeJSON(w, map[string]int{"sessions": n})
}

func (c *ConversationsController) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	c.serveSocket(w, r, c.roomKey(r))
}

func (c *ConversationsController) handleDMSocket(w http.ResponseWriter, r *http.Request) {
	c.serveSocket(w, r, c.dmKey(r))
}

// serveSocket upgrades to a websocket, attaches the session to the
// conversation actor, and pumps client frames as sends until the peer goes
// away. The session sees only messages persisted after it attached; callers
// wanting history fetch it over REST first.
func (c *ConversationsController) serveSocket(w http.ResponseWriter, r *http.Request, key string) {
	id := identityFrom(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	conv := c.rt.Conversation(key)
	sess := newWSSession(conn)
	if err := conv.Connect(r.Context(), sess); err != nil {
		c.logger.Warn().Str("key", key).Err(err).Msg("socket attach failed")
		sess.Close()
		return
	}
	_ = c.rt.Status().Touch(r.Context(), id.UserID)
	defer func() {
		conv.Disconnect(sess.ID())
		sess.Close()
	}()

	sender := conversation.Sender{UserID: id.UserID, Username: id.Username}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req sendMessageReq
		if err := json.Unmarshal(data, &req); err != nil {
			c.pushError(sess, "invalid frame")
			continue
		}
		ok, err := c.rt.RateLimiter().Admit(r.Context(), id.UserID)
		if err != nil {
			c.pushError(sess, "rate limit unavailable")
			continue
		}
		if !ok {
			c.pushError(sess, "sending too fast")
			continue
		}
		if _, err := conv.Send(r.Context(), sender, req.Content, req.AttachmentRef); err != nil {
			if errors.Is(err, conversation.ErrEmptyContent) {
				c.pushError(sess, "empty message")
				continue
			}
			c.logger.Error().Str("key", key).Err(err).Msg("socket send failed")
			c.pushError(sess, "send failed")
		}
	}
}

func (c *ConversationsController) pushError(sess *wsSession, msg string) {
	payload, err := json.Marshal(socketError{Type: "error", Error: msg})
	if err != nil {
		return
	}
	_ = sess.Deliver(payload)
}
