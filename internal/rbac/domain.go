package rbac

import (
	"sort"
	"strings"

	"github.com/layerworks/layerworks/internal/shared"
)

// Principal is the authenticated actor captured in the session at login.
type Principal struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// RoleTable maps roles to their granted permissions.
type RoleTable map[string][]string

// DefaultRoles is the permission table used by the console.
func DefaultRoles() RoleTable {
	return RoleTable{
		shared.RoleAdmin: append(append(append([]string{}, shared.QuoteScopes()...), shared.InventoryScopes()...),
			shared.PermSalesView, shared.PermJobsView),
		shared.RoleStaff: {
			shared.PermQuoteView,
			shared.PermQuoteEdit,
			shared.PermQuoteConvert,
			shared.PermInventoryView,
		},
		shared.RoleCustomer: {},
	}
}

// Permissions returns the sorted permission list for role. Unknown roles get none.
func (t RoleTable) Permissions(role string) []string {
	perms := t[strings.ToLower(strings.TrimSpace(role))]
	out := append([]string(nil), perms...)
	sort.Strings(out)
	return out
}

// Known reports whether role exists in the table.
func (t RoleTable) Known(role string) bool {
	_, ok := t[strings.ToLower(strings.TrimSpace(role))]
	return ok
}
