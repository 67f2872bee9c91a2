package httpapi

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stafflane/access/internal/access"
	"github.com/stafflane/access/internal/audit"
)

func TestCoarseGateRejectsEmployeeRole(t *testing.T) {
	env := newTestEnv(t)
	env.store.users["u1"] = &access.User{ID: "u1", OrganizationID: "org1", Status: access.UserStatusActive}
	env.store.employees["e1"] = &access.Employee{ID: "e1", OrganizationID: "org1", UserID: "u1"}
	token := env.token("u1", "org1", "e1", []string{access.RoleEmployee})

	resp := env.get("/v1/orgadmin/roles", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// Coarse gate denials are not written to the audit trail.
	env.recorder.Close()
	if got := env.auditLog.byAction(audit.ActionPrivilegeEscalated); len(got) != 0 {
		t.Fatalf("coarse denial must not be audited, got %d entries", len(got))
	}
}

func TestFineGateRejectsStaleRoleClaim(t *testing.T) {
	env := newTestEnv(t)
	// Token claims ORGADMIN but the database grants nothing: the coarse
	// gate passes on the stale claim, the fine gate must still deny.
	env.store.users["u1"] = &access.User{ID: "u1", OrganizationID: "org1", Status: access.UserStatusActive}
	env.store.employees["e1"] = &access.Employee{ID: "e1", OrganizationID: "org1", UserID: "u1"}
	token := env.token("u1", "org1", "e1", []string{access.RoleOrgAdmin})

	resp := env.do(http.MethodPost, "/v1/orgadmin/roles", token, roleRequest{Name: "Recruiter"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string]any](t, resp)
	if body["error"] != "forbidden" {
		t.Fatalf("denial body must not name the missing permission: %v", body)
	}

	env.recorder.Close()
	escalations := env.auditLog.byAction(audit.ActionPrivilegeEscalated)
	if len(escalations) != 1 {
		t.Fatalf("expected 1 escalation entry, got %d", len(escalations))
	}
	if escalations[0].Status != audit.StatusDenied || escalations[0].Metadata["severity"] != "HIGH" {
		t.Fatalf("unexpected escalation entry: %+v", escalations[0])
	}
}

func TestRoleCreateConflictAndSiblingOrg(t *testing.T) {
	env := newTestEnv(t)
	org1 := env.seedOrgAdmin("org1")
	org2 := env.seedOrgAdmin("org2")

	resp := env.do(http.MethodPost, "/v1/orgadmin/roles", org1, roleRequest{Name: "Recruiter"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeBody[access.Role](t, resp)
	if created.ID == "" || created.IsSystem {
		t.Fatalf("unexpected role: %+v", created)
	}

	resp = env.do(http.MethodPost, "/v1/orgadmin/roles", org1, roleRequest{Name: "Recruiter"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.StatusCode)
	}

	resp2 := env.do(http.MethodPost, "/v1/orgadmin/roles", org2, roleRequest{Name: "Recruiter"})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusCreated {
		t.Fatalf("sibling org: expected 201, got %d", resp2.StatusCode)
	}
}

func TestRoleUpdateCrossTenantIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	org1 := env.seedOrgAdmin("org1")
	org2 := env.seedOrgAdmin("org2")

	resp := env.do(http.MethodPost, "/v1/orgadmin/roles", org1, roleRequest{Name: "Recruiter"})
	created := decodeBody[access.Role](t, resp)

	resp = env.do(http.MethodPut, "/v1/orgadmin/roles/"+created.ID, org2, roleRequest{Name: "Stolen"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSystemRoleIsImmutableOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedOrgAdmin("org1")
	env.store.roles["sys-hr"] = &access.Role{ID: "sys-hr", Name: access.RoleHR, IsSystem: true}

	resp := env.do(http.MethodPut, "/v1/orgadmin/roles/sys-hr", token, roleRequest{Name: "Renamed"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("update: expected 403, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string]any](t, resp)
	if body["error"] != "forbidden" {
		t.Fatalf("immutability must not leak detail: %v", body)
	}

	resp2 := env.do(http.MethodDelete, "/v1/orgadmin/roles/sys-hr", token, nil)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusForbidden {
		t.Fatalf("delete: expected 403, got %d", resp2.StatusCode)
	}
}

func TestRoleDeleteRecordsHolderCount(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedOrgAdmin("org1")

	resp := env.do(http.MethodPost, "/v1/orgadmin/roles", token, roleRequest{Name: "Recruiter"})
	created := decodeBody[access.Role](t, resp)
	env.store.roleHolders[created.ID] = 4

	resp = env.do(http.MethodDelete, "/v1/orgadmin/roles/"+created.ID, token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	env.recorder.Close()
	deleted := env.auditLog.byAction(audit.ActionRoleDeleted)
	if len(deleted) != 1 {
		t.Fatalf("expected 1 delete entry, got %d", len(deleted))
	}
	if deleted[0].Metadata["held_by"] != 4 {
		t.Fatalf("holder count missing from audit metadata: %+v", deleted[0].Metadata)
	}
}

func TestMyPermissionsReflectsGrants(t *testing.T) {
	env := newTestEnv(t)
	env.store.users["u1"] = &access.User{ID: "u1", OrganizationID: "org1", Status: access.UserStatusActive}
	env.store.employees["e1"] = &access.Employee{ID: "e1", OrganizationID: "org1", UserID: "u1"}
	env.store.roles["r1"] = &access.Role{ID: "r1", OrganizationID: "org1", Name: "Viewer", Permissions: []access.Permission{
		{ID: "p1", Resource: "employees", Action: "view", Scope: "own"},
	}}
	env.store.userRoles["u1"] = []string{"r1"}
	token := env.token("u1", "org1", "e1", []string{access.RoleEmployee})

	resp := env.get("/v1/me/permissions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string][]string](t, resp)
	perms := body["permissions"]
	if len(perms) != 1 || perms[0] != "employees:view:own" {
		t.Fatalf("unexpected permissions: %v", perms)
	}
}

func TestMyPermissionsSuperAdminEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.store.users["root"] = &access.User{ID: "root", Status: access.UserStatusActive}
	token := env.token("root", "", "", []string{access.RoleSuperAdmin})

	resp := env.get("/v1/me/permissions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string][]string](t, resp)
	if len(body["permissions"]) != 0 {
		t.Fatalf("super-admin must resolve to the empty set: %v", body)
	}
}

func TestSetEmployeeGroupsFullReplace(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedOrgAdmin("org1")
	env.store.users["u9"] = &access.User{ID: "u9", OrganizationID: "org1", Status: access.UserStatusActive}
	env.store.employees["e9"] = &access.Employee{ID: "e9", OrganizationID: "org1", UserID: "u9"}
	env.store.groups["g1"] = &access.PermissionGroup{ID: "g1", OrganizationID: "org1", Name: "Payroll"}
	env.store.groups["g2"] = &access.PermissionGroup{ID: "g2", OrganizationID: "org1", Name: "Benefits"}
	env.store.employeeGroups["e9"] = []string{"g1"}

	resp := env.do(http.MethodPut, "/v1/orgadmin/employees/e9/permission-groups", token, assignGroupsRequest{GroupIDs: []string{"g2"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := env.store.employeeGroups["e9"]; len(got) != 1 || got[0] != "g2" {
		t.Fatalf("assignment must be fully replaced, got %v", got)
	}
}

func TestSetEmployeeGroupsUnknownGroup(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedOrgAdmin("org1")
	env.store.employees["e9"] = &access.Employee{ID: "e9", OrganizationID: "org1", UserID: "u9"}

	resp := env.do(http.MethodPut, "/v1/orgadmin/employees/e9/permission-groups", token, assignGroupsRequest{GroupIDs: []string{"nope"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAuditLogsScopedToTenant(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedOrgAdmin("org1")
	now := time.Now().UTC()
	env.auditLog.entries = append(env.auditLog.entries,
		audit.Entry{ID: "a1", OrganizationID: "org1", Action: audit.ActionRoleCreated, Status: audit.StatusSuccess, CreatedAt: now},
		audit.Entry{ID: "a2", OrganizationID: "org2", Action: audit.ActionRoleCreated, Status: audit.StatusSuccess, CreatedAt: now},
	)

	resp := env.get("/v1/admin/audit-logs", token, url.Values{"action_type": {audit.ActionRoleCreated}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[struct {
		Entries []audit.Entry `json:"entries"`
	}](t, resp)
	if len(body.Entries) != 1 || body.Entries[0].ID != "a1" {
		t.Fatalf("tenant admin must only see own entries: %+v", body.Entries)
	}
}

func TestAuditLogsSuperAdminSeesEverything(t *testing.T) {
	env := newTestEnv(t)
	env.store.users["root"] = &access.User{ID: "root", Status: access.UserStatusActive}
	token := env.token("root", "", "", []string{access.RoleSuperAdmin})
	now := time.Now().UTC()
	env.auditLog.entries = append(env.auditLog.entries,
		audit.Entry{ID: "a1", OrganizationID: "org1", Action: audit.ActionRoleCreated, CreatedAt: now},
		audit.Entry{ID: "a2", OrganizationID: "org2", Action: audit.ActionRoleCreated, CreatedAt: now},
	)

	resp := env.get("/v1/admin/audit-logs", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[struct {
		Entries []audit.Entry `json:"entries"`
	}](t, resp)
	if len(body.Entries) != 2 {
		t.Fatalf("super-admin should see both entries, got %d", len(body.Entries))
	}
}
