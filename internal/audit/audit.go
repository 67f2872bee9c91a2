package audit

import (
	"context"
	"time"
)

// Entry is one append-only audit record. Entries are never updated or
// deleted individually; retention removes whole age bands.
type Entry struct {
	ID              string         `json:"id"`
	OrganizationID  string         `json:"organization_id,omitempty"`
	ActorUserID     string         `json:"actor_user_id,omitempty"`
	ActorEmployeeID string         `json:"actor_employee_id,omitempty"`
	Action          string         `json:"action"`
	Resource        string         `json:"resource,omitempty"`
	ResourceID      string         `json:"resource_id,omitempty"`
	Status          string         `json:"status"`
	IP              string         `json:"ip,omitempty"`
	UserAgent       string         `json:"user_agent,omitempty"`
	RequestID       string         `json:"request_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Entry status values.
const (
	StatusSuccess = "success"
	StatusDenied  = "denied"
	StatusFailure = "failure"
)

// Action names recorded by the service.
const (
	ActionLogin              = "auth.login"
	ActionLoginFailed        = "auth.login_failed"
	ActionPermissionDenied   = "access.permission_denied"
	ActionRoleCreated        = "roles.created"
	ActionRoleUpdated        = "roles.updated"
	ActionRoleDeleted        = "roles.deleted"
	ActionGroupCreated       = "permission_groups.created"
	ActionGroupUpdated       = "permission_groups.updated"
	ActionGroupDeleted       = "permission_groups.deleted"
	ActionGroupsAssigned     = "permission_groups.assigned"
	ActionPrivilegeEscalated = "access.privilege_escalation_attempt"
)

// Filter narrows audit queries. Zero values mean no constraint; Limit
// defaults to a store-chosen page size.
type Filter struct {
	OrganizationID string
	ActorUserID    string
	Action         string
	Resource       string
	Status         string
	Since          time.Time
	Until          time.Time
	Limit          int
	Offset         int
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	// DeleteOlderThan removes entries created before cutoff and reports
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
