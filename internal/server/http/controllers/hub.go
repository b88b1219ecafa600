package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/hub"
	"github.com/Trust-in-depth/BAYKUS/internal/models"
	"github.com/Trust-in-depth/BAYKUS/internal/runtime"
)

// HubController handles the notification hub: publishing events, the
// subscriber socket, and the auxiliary track counter.
type HubController struct {
	rt     *runtime.Runtime
	logger zerolog.Logger
}

// NewHubController creates a new hub controller.
func NewHubController(rt *runtime.Runtime, logger zerolog.Logger) *HubController {
	return &HubController{
		rt:     rt,
		logger: logger.With().Str("component", "hub-http").Logger(),
	}
}

// RegisterRoutes registers hub routes with the router.
func (c *HubController) RegisterRoutes(r chi.Router) {
	r.Post("/v1/notify/publish", c.handlePublish)
	r.Post("/v1/notify/track", c.handleTrack)
	r.Get("/v1/notify/count", c.handleCount)
	r.Get("/v1/notify/sessions", c.handleSessions)
	r.Get("/ws/notify", c.handleSocket)
}

// handlePublish fans an event out to subscribed sessions.
//
// Delivery is fire-and-forget, so a 202 means accepted for fan-out, not
// delivered.
func (c *HubController) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishEventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "Missing event type")
		return
	}
	c.rt.Hub().Publish(models.Event{Type: req.Type, Data: req.Data})
	w.WriteHeader(http.StatusAccepted)
}

func (c *HubController) handleTrack(w http.ResponseWriter, r *http.Request) {
	n, err := c.rt.Hub().Track(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to track")
		return
	}
	writeJSON(w, map[string]uint64{"count": n})
}

func (c *HubController) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := c.rt.Hub().Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read count")
		return
	}
	writeJSON(w, map[string]uint64{"count": n})
}

func (c *HubController) handleSessions(w http.ResponseWriter, r *http.Request) {
	n, err := c.rt.Hub().Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count sessions")
		return
	}
	writeJSON(w, map[string]int{"sessions": n})
}

// handleSocket attaches a notification subscriber. The optional filter query
// parameter is a CEL expression over the event envelope; a bad expression
// rejects the attach before the upgrade.
func (c *HubController) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	filter := r.URL.Query().Get("filter")
	if err := hub.ValidateFilter(filter); err != nil {
		c.logger.Warn().Str("user", id.UserID).Err(err).Msg("hub attach rejected")
		writeError(w, http.StatusBadRequest, "Invalid filter expression")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := newWSSession(conn)
	if err := c.rt.Hub().Connect(r.Context(), sess, filter); err != nil {
		c.logger.Warn().Str("user", id.UserID).Err(err).Msg("hub attach failed")
		sess.Close()
		return
	}
	_ = c.rt.Status().Touch(r.Context(), id.UserID)
	defer func() {
		c.rt.Hub().Disconnect(sess.ID())
		sess.Close()
	}()

	// Subscribers only listen; the read loop just detects the peer leaving.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
