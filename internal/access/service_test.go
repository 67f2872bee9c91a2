package access

import (
	"context"
	"errors"
	"testing"
)

func seededService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.EnsureBuiltins(context.Background()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return svc, store
}

func permIDByCode(t *testing.T, store *memStore, code string) string {
	t.Helper()
	for id, p := range store.permissions {
		if p.Code() == code {
			return id
		}
	}
	t.Fatalf("permission %s not seeded", code)
	return ""
}

func TestCreateRole(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	pid := permIDByCode(t, store, PermEmployeesViewOwn)
	role, err := svc.CreateRole(ctx, "org1", "Recruiter", "hiring staff", []string{pid, pid})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.IsSystem {
		t.Fatal("custom roles must not be system roles")
	}
	if len(role.Permissions) != 1 || role.Permissions[0].Code() != PermEmployeesViewOwn {
		t.Fatalf("unexpected permissions: %+v", role.Permissions)
	}
}

func TestCreateRoleDuplicateNameSameOrg(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	if _, err := svc.CreateRole(ctx, "org1", "Recruiter", "", nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.CreateRole(ctx, "org1", "Recruiter", "", nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateRoleSameNameSiblingOrg(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	if _, err := svc.CreateRole(ctx, "org1", "Recruiter", "", nil); err != nil {
		t.Fatalf("org1 create: %v", err)
	}
	if _, err := svc.CreateRole(ctx, "org2", "Recruiter", "", nil); err != nil {
		t.Fatalf("sibling org must be able to reuse the name: %v", err)
	}
}

func TestCreateRoleSystemNameReserved(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()
	store.roles["sys-hr"] = &Role{ID: "sys-hr", Name: RoleHR, IsSystem: true}

	_, err := svc.CreateRole(ctx, "org1", RoleHR, "", nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for system role name, got %v", err)
	}
}

func TestCreateRoleNameIsCaseSensitive(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	if _, err := svc.CreateRole(ctx, "org1", "Recruiter", "", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateRole(ctx, "org1", "recruiter", "", nil); err != nil {
		t.Fatalf("names differing only by case are distinct: %v", err)
	}
}

func TestCreateRoleUnknownPermission(t *testing.T) {
	svc, _ := seededService(t)
	_, err := svc.CreateRole(context.Background(), "org1", "Recruiter", "", []string{"nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRoleForeignOrgPermission(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()
	store.permissions["theirs"] = &Permission{ID: "theirs", OrganizationID: "org2", Resource: "custom", Action: "use", Scope: "org"}

	_, err := svc.CreateRole(ctx, "org1", "Recruiter", "", []string{"theirs"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("another tenant's permission must read as not found, got %v", err)
	}
}

func TestUpdateRoleReplacesPermissions(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	p1 := permIDByCode(t, store, PermEmployeesViewOwn)
	p2 := permIDByCode(t, store, PermEmployeesViewOrg)
	role, err := svc.CreateRole(ctx, "org1", "Recruiter", "", []string{p1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateRole(ctx, role.ID, "org1", "Recruiter", "", []string{p2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Permissions) != 1 || updated.Permissions[0].Code() != PermEmployeesViewOrg {
		t.Fatalf("permission set must be fully replaced, got %+v", updated.Permissions)
	}
}

func TestUpdateRoleForeignOrgReadsNotFound(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "org1", "Recruiter", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.UpdateRole(ctx, role.ID, "org2", "Stolen", "", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant update must read as not found, got %v", err)
	}
}

func TestUpdateSystemRoleImmutable(t *testing.T) {
	svc, store := seededService(t)
	store.roles["sys-hr"] = &Role{ID: "sys-hr", Name: RoleHR, IsSystem: true}

	_, err := svc.UpdateRole(context.Background(), "sys-hr", "org1", "Renamed", "", nil)
	if !errors.Is(err, ErrImmutableRole) {
		t.Fatalf("expected ErrImmutableRole, got %v", err)
	}
}

func TestDeleteRoleReportsHolders(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "org1", "Recruiter", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	store.roleHolders[role.ID] = 3

	_, held, err := svc.DeleteRole(ctx, role.ID, "org1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if held != 3 {
		t.Fatalf("expected 3 holders reported, got %d", held)
	}
	if _, err := svc.GetRole(ctx, role.ID, "org1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("role should be gone, got %v", err)
	}
}

func TestDeleteSystemRoleImmutable(t *testing.T) {
	svc, store := seededService(t)
	store.roles["sys-hr"] = &Role{ID: "sys-hr", Name: RoleHR, IsSystem: true}

	_, _, err := svc.DeleteRole(context.Background(), "sys-hr", "org1")
	if !errors.Is(err, ErrImmutableRole) {
		t.Fatalf("expected ErrImmutableRole, got %v", err)
	}
}

func TestAvailableRolesIncludesSystemAndOwn(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()
	store.roles["sys-hr"] = &Role{ID: "sys-hr", Name: RoleHR, IsSystem: true}
	if _, err := svc.CreateRole(ctx, "org1", "Analyst", "", nil); err != nil {
		t.Fatalf("org1 create: %v", err)
	}
	if _, err := svc.CreateRole(ctx, "org2", "Outsider", "", nil); err != nil {
		t.Fatalf("org2 create: %v", err)
	}

	roles, err := svc.AvailableRoles(ctx, "org1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	if len(names) != 2 || names[0] != "Analyst" || names[1] != RoleHR {
		t.Fatalf("expected [Analyst HR] ordered by name, got %v", names)
	}
}

func TestSetEmployeeGroupsReplaces(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()
	store.employees["e1"] = &Employee{ID: "e1", OrganizationID: "org1", UserID: "u1"}
	store.groups["g1"] = &PermissionGroup{ID: "g1", OrganizationID: "org1", Name: "Payroll"}
	store.groups["g2"] = &PermissionGroup{ID: "g2", OrganizationID: "org1", Name: "Benefits"}
	store.employeeGroups["e1"] = []string{"g1"}

	if err := svc.SetEmployeeGroups(ctx, "org1", "e1", []string{"g2"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := store.employeeGroups["e1"]
	if len(got) != 1 || got[0] != "g2" {
		t.Fatalf("assignment must be fully replaced, got %v", got)
	}
}

func TestSetEmployeeGroupsClear(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()
	store.employees["e1"] = &Employee{ID: "e1", OrganizationID: "org1", UserID: "u1"}
	store.employeeGroups["e1"] = []string{"g1"}

	if err := svc.SetEmployeeGroups(ctx, "org1", "e1", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := store.employeeGroups["e1"]; len(got) != 0 {
		t.Fatalf("expected no groups, got %v", got)
	}
}

func TestSetEmployeeGroupsForeignGroup(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()
	store.employees["e1"] = &Employee{ID: "e1", OrganizationID: "org1", UserID: "u1"}
	store.groups["g1"] = &PermissionGroup{ID: "g1", OrganizationID: "org2", Name: "Theirs"}

	err := svc.SetEmployeeGroups(ctx, "org1", "e1", []string{"g1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("another tenant's group must read as not found, got %v", err)
	}
}

func TestSetEmployeeGroupsForeignEmployee(t *testing.T) {
	svc, store := seededService(t)
	store.employees["e1"] = &Employee{ID: "e1", OrganizationID: "org2", UserID: "u1"}

	err := svc.SetEmployeeGroups(context.Background(), "org1", "e1", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("another tenant's employee must read as not found, got %v", err)
	}
}

func TestGroupLifecycle(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()
	pid := permIDByCode(t, store, PermEmployeesViewOrg)

	group, err := svc.CreateGroup(ctx, "org1", "Payroll", "payroll staff", []string{pid})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(group.Permissions) != 1 {
		t.Fatalf("unexpected permissions: %+v", group.Permissions)
	}

	updated, err := svc.UpdateGroup(ctx, group.ID, "org1", "Payroll Core", "", []string{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Payroll Core" || len(updated.Permissions) != 0 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := svc.DeleteGroup(ctx, group.ID, "org2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant delete must read as not found, got %v", err)
	}
	if err := svc.DeleteGroup(ctx, group.ID, "org1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
