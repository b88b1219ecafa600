package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Trust-in-depth/BAYKUS/internal/runtime"
)

// StatusController handles presence endpoints: users set their own status,
// anyone can read another user's status and last-seen stamp.
type StatusController struct {
	rt *runtime.Runtime
}

// NewStatusController creates a new status controller.
func NewStatusController(rt *runtime.Runtime) *StatusController {
	return &StatusController{rt: rt}
}

// RegisterRoutes registers status routes with the router.
func (c *StatusController) RegisterRoutes(r chi.Router) {
	r.Put("/v1/status", c.handleSetStatus)
	r.Get("/v1/users/{userID}/status", c.handleGetStatus)
}

func (c *StatusController) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := c.rt.Status().SetStatus(r.Context(), id.UserID, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set status")
		return
	}
	if err := c.rt.Status().Touch(r.Context(), id.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update last seen")
		return
	}
	writeNoContent(w)
}

func (c *StatusController) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	info, err := c.rt.Status().Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read status")
		return
	}
	writeJSON(w, info)
}
