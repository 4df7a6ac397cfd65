package prospects

import (
	"github.com/go-chi/chi/v5"

	"github.com/gescom-app/gescom/internal/auth"
)

// MountRoutes registers prospect routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermProspectView))
		r.Get("/prospects", h.List)
		r.Get("/prospects/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermProspectEdit))
		r.Post("/prospects", h.Create)
		r.Patch("/prospects/{id}", h.Update)
		r.Post("/prospects/{id}/status", h.UpdateStatus)
		r.Post("/prospects/{id}/convert", h.Convert)
	})
}
