package access

import "context"

// Store describes persistence operations required by the access subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Employees(ctx context.Context) EmployeeStore
	Roles(ctx context.Context) RoleStore
	Groups(ctx context.Context) GroupStore
	Permissions(ctx context.Context) PermissionStore
}

// UserStore manages authentication accounts and their role attachments.
type UserStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// RolesForUser returns the user's roles with permissions populated.
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
}

// EmployeeStore manages employee records and their direct group grants.
type EmployeeStore interface {
	Find(ctx context.Context, id string) (*Employee, error)
	FindByUserID(ctx context.Context, userID string) (*Employee, error)
	// GroupsForEmployee returns the employee's permission groups with
	// permissions populated.
	GroupsForEmployee(ctx context.Context, employeeID string) ([]PermissionGroup, error)
	// SetGroups replaces the employee's entire group assignment.
	SetGroups(ctx context.Context, employeeID string, groupIDs []string) error
}

// RoleStore manages system and organization roles.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	// FindByName looks a role up within one scope: orgID empty searches the
	// system roles.
	FindByName(ctx context.Context, orgID, name string) (*Role, error)
	// ListAvailable returns the union of system roles and roles owned by
	// orgID, ordered by name ascending.
	ListAvailable(ctx context.Context, orgID string) ([]Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id string) error
	// AssignmentCount reports how many users currently hold the role.
	AssignmentCount(ctx context.Context, roleID string) (int, error)
}

// GroupStore manages permission groups.
type GroupStore interface {
	Create(ctx context.Context, group *PermissionGroup) error
	Find(ctx context.Context, id string) (*PermissionGroup, error)
	FindByIDs(ctx context.Context, ids []string) ([]PermissionGroup, error)
	ListByOrg(ctx context.Context, orgID string) ([]PermissionGroup, error)
	Update(ctx context.Context, group *PermissionGroup) error
	Delete(ctx context.Context, id string) error
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	// Ensure inserts any catalog rows that do not exist yet.
	Ensure(ctx context.Context, perms []Permission) error
	// List returns system permissions plus permissions scoped to orgID.
	List(ctx context.Context, orgID string) ([]Permission, error)
	FindByIDs(ctx context.Context, ids []string) ([]Permission, error)
}
