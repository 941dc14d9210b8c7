package rbac

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/layerworks/layerworks/internal/platform/httpx"
	"github.com/layerworks/layerworks/internal/shared"
)

// MenuItem is one entry of the admin console navigation.
type MenuItem struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Path       string `json:"path"`
	Permission string `json:"-"`
}

// AdminMenu lists every console entry with the permission that unlocks it.
var AdminMenu = []MenuItem{
	{Key: "dashboard", Label: "Dashboard", Path: "/admin", Permission: shared.PermQuoteView},
	{Key: "orders", Label: "Orders", Path: "/admin/orders", Permission: shared.PermQuoteView},
	{Key: "inventory", Label: "Inventory", Path: "/admin/inventory", Permission: shared.PermInventoryView},
	{Key: "providers", Label: "Providers", Path: "/admin/providers", Permission: shared.PermInventoryEdit},
	{Key: "sales", Label: "Sales", Path: "/admin/sales", Permission: shared.PermSalesView},
}

// MenuFor filters items down to what principal may open.
func (s *Service) MenuFor(ctx context.Context, principal Principal, items []MenuItem) []MenuItem {
	granted, err := s.EffectivePermissions(ctx, principal)
	if err != nil {
		return []MenuItem{}
	}
	visible := make([]MenuItem, 0, len(items))
	for _, item := range items {
		if item.Permission == "" || hasAllPermissions(granted, normalizePermissions([]string{item.Permission})) {
			visible = append(visible, item)
		}
	}
	return visible
}

// MenuHandler serves the role filtered admin navigation.
type MenuHandler struct {
	rbac Middleware
}

// NewMenuHandler constructs a MenuHandler.
func NewMenuHandler(rbac Middleware) *MenuHandler {
	return &MenuHandler{rbac: rbac}
}

// MountRoutes attaches the menu route.
func (h *MenuHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAuthenticated).Get("/", h.menu)
}

func (h *MenuHandler) menu(w http.ResponseWriter, r *http.Request) {
	principal, _ := h.rbac.currentPrincipal(r)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":  principal.Role,
		"items": h.rbac.Service.MenuFor(r.Context(), principal, AdminMenu),
	})
}
