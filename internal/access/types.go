package access

import (
	"fmt"
	"strings"
	"time"
)

// Organization represents a tenant of the platform.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability identified by a
// resource:action:scope code. OrganizationID is empty for system-wide
// permissions visible to every tenant.
type Permission struct {
	ID             string    `json:"id"`
	Resource       string    `json:"resource"`
	Action         string    `json:"action"`
	Scope          string    `json:"scope"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Code renders the permission as its canonical resource:action:scope form.
func (p Permission) Code() string {
	return p.Resource + ":" + p.Action + ":" + p.Scope
}

// ParseCode splits a resource:action:scope code into its parts.
func ParseCode(code string) (resource, action, scope string, err error) {
	parts := strings.Split(code, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: malformed permission code %q", ErrInvalidInput, code)
	}
	return parts[0], parts[1], parts[2], nil
}

// Role bundles permissions. OrganizationID is empty for system roles, which
// are seeded at startup and immutable through the API.
type Role struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id,omitempty"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	IsSystem       bool         `json:"is_system"`
	Permissions    []Permission `json:"permissions"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PermissionGroup is a coarser permission bundle assigned directly to
// employees, independent of the role system.
type PermissionGroup struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Permissions    []Permission `json:"permissions"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// User is an authentication account. A user without an organization is the
// platform super-admin; its authority is structural, not permission based.
type User struct {
	ID                 string    `json:"id"`
	OrganizationID     string    `json:"organization_id,omitempty"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	MustChangePassword bool      `json:"must_change_password"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IsSuperAdmin reports whether the user is the platform super-admin.
func (u User) IsSuperAdmin() bool {
	return u.OrganizationID == ""
}

// Employee is the HR-side identity, linked 1:1 to a User and carrying direct
// permission-group grants.
type Employee struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)
