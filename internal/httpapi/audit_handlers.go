package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/stafflane/access/internal/access"
	"github.com/stafflane/access/internal/audit"
)

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := a.requireRole(w, r, access.RoleOrgAdmin, access.RoleSuperAdmin)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   strings.TrimSpace(q.Get("action_type")),
		Resource: strings.TrimSpace(q.Get("entity_type")),
		Status:   strings.TrimSpace(q.Get("status")),
	}

	// Tenant admins only ever see their own organization's trail.
	if id.IsSuperAdmin() {
		filter.OrganizationID = strings.TrimSpace(q.Get("org_id"))
	} else {
		if !a.requirePermission(w, r, id, access.PermAuditViewOrg) {
			return
		}
		filter.OrganizationID = id.OrganizationID
	}

	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, err := parsePositiveInt(q.Get("page"), 1, 1, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = ts
	}
	if raw := strings.TrimSpace(q.Get("until")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		filter.Until = ts
	}

	entries, err := a.auditLog.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"page":    page,
		"limit":   limit,
	})
}
