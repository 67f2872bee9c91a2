package access

import (
	"context"
	"sort"
)

// Union computes the deduplicated permission codes reachable through the
// supplied roles and permission groups. There is no precedence between
// sources; duplicates collapse by code equality. The result is sorted
// ascending so callers observe a stable order.
func Union(roles []Role, groups []PermissionGroup) []string {
	set := make(map[string]struct{})
	for _, role := range roles {
		for _, p := range role.Permissions {
			set[p.Code()] = struct{}{}
		}
	}
	for _, g := range groups {
		for _, p := range g.Permissions {
			set[p.Code()] = struct{}{}
		}
	}
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Resolver computes effective permission sets. It is stateless and performs
// no caching: every call reads the current role and group attachments.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// EffectivePermissions returns the union of permission codes from every role
// of the employee's user and every permission group of the employee. A
// super-admin user resolves to the empty set regardless of role permissions;
// super-admin authority is checked structurally, not via codes.
func (r *Resolver) EffectivePermissions(ctx context.Context, employeeID string) ([]string, error) {
	emp, err := r.store.Employees(ctx).Find(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	user, err := r.store.Users(ctx).Find(ctx, emp.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin() {
		return []string{}, nil
	}
	roles, err := r.store.Users(ctx).RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	groups, err := r.store.Employees(ctx).GroupsForEmployee(ctx, emp.ID)
	if err != nil {
		return nil, err
	}
	return Union(roles, groups), nil
}

// Has reports whether code is a member of the employee's effective
// permission set. Codes absent from the catalog are simply never present.
func (r *Resolver) Has(ctx context.Context, employeeID, code string) (bool, error) {
	codes, err := r.EffectivePermissions(ctx, employeeID)
	if err != nil {
		return false, err
	}
	for _, c := range codes {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}
