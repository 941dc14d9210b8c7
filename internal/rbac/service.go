package rbac

import (
	"context"
	"errors"
	"strings"
)

// ErrUnknownRole indicates a role missing from the table.
var ErrUnknownRole = errors.New("rbac: unknown role")

// Service resolves effective permissions for a principal.
type Service struct {
	roles RoleTable
}

// NewService constructs a Service backed by the provided role table.
func NewService(roles RoleTable) *Service {
	if roles == nil {
		roles = DefaultRoles()
	}
	return &Service{roles: roles}
}

// EffectivePermissions returns the permissions granted to principal.
func (s *Service) EffectivePermissions(_ context.Context, principal Principal) ([]string, error) {
	if s == nil {
		return nil, errors.New("rbac: service not configured")
	}
	if !s.roles.Known(principal.Role) {
		return nil, ErrUnknownRole
	}
	return s.roles.Permissions(principal.Role), nil
}

// Allowed reports whether principal holds perm.
func (s *Service) Allowed(ctx context.Context, principal Principal, perm string) bool {
	granted, err := s.EffectivePermissions(ctx, principal)
	if err != nil {
		return false
	}
	return hasAllPermissions(granted, []string{strings.ToLower(perm)})
}
