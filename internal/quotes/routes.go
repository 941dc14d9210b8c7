package quotes

import (
	"github.com/go-chi/chi/v5"

	"github.com/layerworks/layerworks/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/quotes", h.Create)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuoteView))
		r.Get("/quotes", h.List)
		r.Get("/quotes/{id}", h.Show)
		r.Get("/quotes/{id}/pdf", h.PDF)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuoteConvert))
		r.Post("/quotes/{id}/convert", h.Convert)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuoteEdit))
		r.Post("/quotes/{id}/cancel", h.Cancel)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesView))
		r.Get("/sales/summary", h.Summary)
	})
}
