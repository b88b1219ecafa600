package controllers

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/runtime"
)

// Registry manages all HTTP controllers.
//
// It provides a centralized way to register controller routes and holds the
// controllers' lifecycle.
type Registry struct {
	general       *GeneralController
	conversations *ConversationsController
	hub           *HubController
	status        *StatusController
}

// NewRegistry creates a controller registry backed by the runtime.
func NewRegistry(rt *runtime.Runtime, logger zerolog.Logger) *Registry {
	return &Registry{
		general:       NewGeneralController(rt),
		conversations: NewConversationsController(rt, logger),
		hub:           NewHubController(rt, logger),
		status:        NewStatusController(rt),
	}
}

// RegisterRoutes registers all controller routes with the router.
//
// Health and metrics stay public; everything else requires a verified
// identity forwarded by the gateway.
func (reg *Registry) RegisterRoutes(r chi.Router) {
	reg.general.RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity)
		reg.conversations.RegisterRoutes(r)
		reg.hub.RegisterRoutes(r)
		reg.status.RegisterRoutes(r)
	})
}
