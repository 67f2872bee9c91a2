package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service provides role and permission-group management scoped to one
// organization per call.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("access store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureBuiltins reconciles the system permission catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions(ctx).Ensure(ctx, BuiltinPermissions)
}

// ListPermissions returns the catalog visible to orgID: the system-wide set
// plus the organization's own permissions.
func (s *Service) ListPermissions(ctx context.Context, orgID string) ([]Permission, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).List(ctx, orgID)
}

// CreateRole creates a custom role owned by orgID. The name check is a
// case-sensitive exact match within the organization, and additionally
// against the global system-role namespace. Each permission id must resolve
// to a catalog row visible to the organization.
func (s *Service) CreateRole(ctx context.Context, orgID, name, description string, permissionIDs []string) (*Role, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}

	if err := s.checkNameFree(ctx, orgID, name); err != nil {
		return nil, err
	}

	perms, err := s.resolvePermissions(ctx, orgID, permissionIDs)
	if err != nil {
		return nil, err
	}

	role := &Role{
		OrganizationID: orgID,
		Name:           name,
		Description:    strings.TrimSpace(description),
		IsSystem:       false,
		Permissions:    perms,
	}
	if err := s.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// UpdateRole modifies a custom role owned by orgID. A role belonging to a
// different organization reads as not found so tenants cannot probe each
// other's role ids. System roles are immutable. A non-nil permissionIDs
// slice fully replaces the role's permission set.
func (s *Service) UpdateRole(ctx context.Context, roleID, orgID, name, description string, permissionIDs []string) (*Role, error) {
	role, err := s.ownedRole(ctx, roleID, orgID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, ErrImmutableRole
	}
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}

	if name != role.Name {
		if err := s.checkNameFree(ctx, orgID, name); err != nil {
			return nil, err
		}
	}

	role.Name = name
	role.Description = strings.TrimSpace(description)
	if permissionIDs != nil {
		perms, err := s.resolvePermissions(ctx, orgID, permissionIDs)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	role.UpdatedAt = s.now().UTC()

	if err := s.store.Roles(ctx).Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole hard-deletes a custom role. There is deliberately no in-use
// check: users still holding the role silently lose its permissions going
// forward. The returned count reports how many users held the role at
// delete time so callers can record it in the audit trail.
func (s *Service) DeleteRole(ctx context.Context, roleID, orgID string) (*Role, int, error) {
	role, err := s.ownedRole(ctx, roleID, orgID)
	if err != nil {
		return nil, 0, err
	}
	if role.IsSystem {
		return nil, 0, ErrImmutableRole
	}
	held, err := s.store.Roles(ctx).AssignmentCount(ctx, roleID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.store.Roles(ctx).Delete(ctx, roleID); err != nil {
		return nil, 0, err
	}
	return role, held, nil
}

// GetRole returns a role visible to orgID: one of its own or a system role.
func (s *Service) GetRole(ctx context.Context, roleID, orgID string) (*Role, error) {
	role, err := s.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.OrganizationID != "" && role.OrganizationID != strings.TrimSpace(orgID) {
		return nil, ErrNotFound
	}
	return role, nil
}

// AvailableRoles returns all system roles plus the organization's custom
// roles, ordered by name ascending.
func (s *Service) AvailableRoles(ctx context.Context, orgID string) ([]Role, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).ListAvailable(ctx, orgID)
}

// SetEmployeeGroups replaces, not merges, the employee's entire
// permission-group assignment. Every supplied id must resolve to a group
// owned by orgID.
func (s *Service) SetEmployeeGroups(ctx context.Context, orgID, employeeID string, groupIDs []string) error {
	orgID = strings.TrimSpace(orgID)
	emp, err := s.store.Employees(ctx).Find(ctx, employeeID)
	if err != nil {
		return err
	}
	if emp.OrganizationID != orgID {
		return ErrNotFound
	}

	ids := dedupeIDs(groupIDs)
	if len(ids) > 0 {
		groups, err := s.store.Groups(ctx).FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		found := make(map[string]bool, len(groups))
		for _, g := range groups {
			if g.OrganizationID != orgID {
				return fmt.Errorf("%w: permission group %s not found", ErrNotFound, g.ID)
			}
			found[g.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return fmt.Errorf("%w: permission group %s not found", ErrNotFound, id)
			}
		}
	}
	return s.store.Employees(ctx).SetGroups(ctx, emp.ID, ids)
}

// CreateGroup creates a permission group owned by orgID.
func (s *Service) CreateGroup(ctx context.Context, orgID, name, description string, permissionIDs []string) (*PermissionGroup, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	perms, err := s.resolvePermissions(ctx, orgID, permissionIDs)
	if err != nil {
		return nil, err
	}
	group := &PermissionGroup{
		OrganizationID: orgID,
		Name:           name,
		Description:    strings.TrimSpace(description),
		Permissions:    perms,
	}
	if err := s.store.Groups(ctx).Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateGroup modifies a group owned by orgID; a non-nil permissionIDs
// slice fully replaces the group's permission set.
func (s *Service) UpdateGroup(ctx context.Context, groupID, orgID, name, description string, permissionIDs []string) (*PermissionGroup, error) {
	group, err := s.ownedGroup(ctx, groupID, orgID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	group.Name = name
	group.Description = strings.TrimSpace(description)
	if permissionIDs != nil {
		perms, err := s.resolvePermissions(ctx, orgID, permissionIDs)
		if err != nil {
			return nil, err
		}
		group.Permissions = perms
	}
	group.UpdatedAt = s.now().UTC()
	if err := s.store.Groups(ctx).Update(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteGroup hard-deletes a group owned by orgID.
func (s *Service) DeleteGroup(ctx context.Context, groupID, orgID string) error {
	if _, err := s.ownedGroup(ctx, groupID, orgID); err != nil {
		return err
	}
	return s.store.Groups(ctx).Delete(ctx, groupID)
}

// ListGroups returns the organization's permission groups.
func (s *Service) ListGroups(ctx context.Context, orgID string) ([]PermissionGroup, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Groups(ctx).ListByOrg(ctx, orgID)
}

func (s *Service) ownedRole(ctx context.Context, roleID, orgID string) (*Role, error) {
	role, err := s.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.OrganizationID != strings.TrimSpace(orgID) {
		if role.IsSystem {
			return role, nil
		}
		return nil, ErrNotFound
	}
	return role, nil
}

func (s *Service) ownedGroup(ctx context.Context, groupID, orgID string) (*PermissionGroup, error) {
	group, err := s.store.Groups(ctx).Find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.OrganizationID != strings.TrimSpace(orgID) {
		return nil, ErrNotFound
	}
	return group, nil
}

// checkNameFree verifies the name is unused within the organization and not
// taken by a system role. The match is deliberately case-sensitive with no
// whitespace normalization, mirroring the uniqueness constraint enforced by
// the store.
func (s *Service) checkNameFree(ctx context.Context, orgID, name string) error {
	if _, err := s.store.Roles(ctx).FindByName(ctx, orgID, name); err == nil {
		return fmt.Errorf("%w: role %q already exists", ErrConflict, name)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := s.store.Roles(ctx).FindByName(ctx, "", name); err == nil {
		return fmt.Errorf("%w: %q is a reserved system role name", ErrConflict, name)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) resolvePermissions(ctx context.Context, orgID string, permissionIDs []string) ([]Permission, error) {
	ids := dedupeIDs(permissionIDs)
	if len(ids) == 0 {
		return []Permission{}, nil
	}
	perms, err := s.store.Permissions(ctx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Permission, len(perms))
	for _, p := range perms {
		if p.OrganizationID != "" && p.OrganizationID != orgID {
			continue
		}
		byID[p.ID] = p
	}
	resolved := make([]Permission, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: permission %s not found", ErrNotFound, id)
		}
		resolved = append(resolved, p)
	}
	return resolved, nil
}

func dedupeIDs(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
