package clients

import (
	"github.com/go-chi/chi/v5"

	"github.com/gescom-app/gescom/internal/auth"
)

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermClientView))
		r.Get("/clients", h.List)
		r.Get("/clients/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermClientEdit))
		r.Post("/clients", h.Create)
		r.Patch("/clients/{id}", h.Update)
	})
}
