package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/stafflane/access/internal/access"
	"github.com/stafflane/access/internal/audit"
	"github.com/stafflane/access/internal/authn"
)

type roleRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids"`
}

type groupRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids"`
}

type assignGroupsRequest struct {
	GroupIDs []string `json:"group_ids"`
}

// callerOrg resolves the organization an orgadmin call operates on. Tenant
// admins are bound to their own organization; the super-admin names the
// target via the org_id query parameter.
func (a *API) callerOrg(w http.ResponseWriter, r *http.Request, id authn.Identity) (string, bool) {
	if !id.IsSuperAdmin() {
		return id.OrganizationID, true
	}
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, r, http.StatusBadRequest, "org_id query parameter is required")
		return "", false
	}
	return orgID, true
}

func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := authn.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if id.IsSuperAdmin() || id.EmployeeID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"permissions": []string{}})
		return
	}
	codes, err := a.resolver.EffectivePermissions(r.Context(), id.EmployeeID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": codes})
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := a.requireRole(w, r, access.RoleOrgAdmin, access.RoleSuperAdmin)
	if !ok {
		return
	}
	orgID, ok := a.callerOrg(w, r, id)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		roles, err := a.svc.AvailableRoles(r.Context(), orgID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		if !a.requirePermission(w, r, id, access.PermRolesCreateOrg) {
			return
		}
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.CreateRole(r.Context(), orgID, req.Name, req.Description, req.PermissionIDs)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			Action:     audit.ActionRoleCreated,
			Resource:   "role",
			ResourceID: role.ID,
			Metadata:   map[string]any{"role_name": role.Name},
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/orgadmin/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	roleID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/orgadmin/roles/"), "/")
	if roleID == "" || strings.Contains(roleID, "/") {
		http.NotFound(w, r)
		return
	}
	id, ok := a.requireRole(w, r, access.RoleOrgAdmin, access.RoleSuperAdmin)
	if !ok {
		return
	}
	orgID, ok := a.callerOrg(w, r, id)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		role, err := a.svc.GetRole(r.Context(), roleID, orgID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut:
		if !a.requirePermission(w, r, id, access.PermRolesEditOrg) {
			return
		}
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.UpdateRole(r.Context(), roleID, orgID, req.Name, req.Description, req.PermissionIDs)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			Action:     audit.ActionRoleUpdated,
			Resource:   "role",
			ResourceID: role.ID,
			Metadata:   map[string]any{"role_name": role.Name},
		})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if !a.requirePermission(w, r, id, access.PermRolesDeleteOrg) {
			return
		}
		role, held, err := a.svc.DeleteRole(r.Context(), roleID, orgID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		// Holders lose the role silently; the trail keeps the count.
		a.auditor.Record(r.Context(), audit.Entry{
			Action:     audit.ActionRoleDeleted,
			Resource:   "role",
			ResourceID: roleID,
			Metadata:   map[string]any{"role_name": role.Name, "held_by": held},
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.requireRole(w, r, access.RoleOrgAdmin, access.RoleSuperAdmin)
	if !ok {
		return
	}
	orgID, ok := a.callerOrg(w, r, id)
	if !ok {
		return
	}
	perms, err := a.svc.ListPermissions(r.Context(), orgID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (a *API) handleGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := a.requireRole(w, r, access.RoleOrgAdmin, access.RoleSuperAdmin)
	if !ok {
		return
	}
	orgID, ok := a.callerOrg(w, r, id)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		groups, err := a.svc.ListGroups(r.Context(), orgID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permission_groups": groups})
	case http.MethodPost:
		if !a.requirePermission(w, r, id, access.PermGroupsAssignOrg) {
			return
		}
		var req groupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		group, err := a.svc.CreateGroup(r.Context(), orgID, req.Name, req.Description, req.PermissionIDs)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			Action:     audit.ActionGroupCreated,
			Resource:   "permission_group",
			ResourceID: group.ID,
			Metadata:   map[string]any{"group_name": group.Name},
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/orgadmin/permission-groups/%s", group.ID))
		writeJSON(w, http.StatusCreated, group)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleGroupResource(w http.ResponseWriter, r *http.Request) {
	groupID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/orgadmin/permission-groups/"), "/")
	if groupID == "" || strings.Contains(groupID, "/") {
		http.NotFound(w, r)
		return
	}
	id, ok := a.requireRole(w, r, access.RoleOrgAdmin, access.RoleSuperAdmin)
	if !ok {
		return
	}
	orgID, ok := a.callerOrg(w, r, id)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPut:
		if !a.requirePermission(w, r, id, access.PermGroupsAssignOrg) {
			return
		}
		var req groupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		group, err := a.svc.UpdateGroup(r.Context(), groupID, orgID, req.Name, req.Description, req.PermissionIDs)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			Action:     audit.ActionGroupUpdated,
			Resource:   "permission_group",
			ResourceID: group.ID,
			Metadata:   map[string]any{"group_name": group.Name},
		})
		writeJSON(w, http.StatusOK, group)
	case http.MethodDelete:
		if !a.requirePermission(w, r, id, access.PermGroupsAssignOrg) {
			return
		}
		if err := a.svc.DeleteGroup(r.Context(), groupID, orgID); err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.auditor.Record(r.Context(), audit.Entry{
			Action:     audit.ActionGroupDeleted,
			Resource:   "permission_group",
			ResourceID: groupID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleEmployeeResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/orgadmin/employees/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "permission-groups" {
		http.NotFound(w, r)
		return
	}
	employeeID := parts[0]

	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	id, ok := a.requireRole(w, r, access.RoleOrgAdmin, access.RoleSuperAdmin)
	if !ok {
		return
	}
	orgID, ok := a.callerOrg(w, r, id)
	if !ok {
		return
	}
	if !a.requirePermission(w, r, id, access.PermGroupsAssignOrg) {
		return
	}

	var req assignGroupsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.SetEmployeeGroups(r.Context(), orgID, employeeID, req.GroupIDs); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.auditor.Record(r.Context(), audit.Entry{
		Action:     audit.ActionGroupsAssigned,
		Resource:   "employee",
		ResourceID: employeeID,
		Metadata:   map[string]any{"group_ids": req.GroupIDs},
	})
	writeJSON(w, http.StatusOK, map[string]any{"employee_id": employeeID, "group_ids": req.GroupIDs})
}
