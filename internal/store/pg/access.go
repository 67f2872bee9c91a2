package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/stafflane/access/internal/access"
	"github.com/stafflane/access/internal/ids"
)

type userStore Store

var _ access.UserStore = (*userStore)(nil)

const userColumns = `id, coalesce(organization_id, ''), email, password_hash, must_change_password, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*access.User, error) {
	var user access.User
	err := row.Scan(
		&user.ID,
		&user.OrganizationID,
		&user.Email,
		&user.PasswordHash,
		&user.MustChangePassword,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) Find(ctx context.Context, id string) (*access.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*access.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email)
	return scanUser(row)
}

func (s *userStore) RolesForUser(ctx context.Context, userID string) ([]access.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select r.id, coalesce(r.organization_id, ''), r.name, coalesce(r.description, ''), r.is_system, r.created_at, r.updated_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	if err := (*Store)(s).attachRolePermissions(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

type employeeStore Store

var _ access.EmployeeStore = (*employeeStore)(nil)

func scanEmployee(row interface{ Scan(...any) error }) (*access.Employee, error) {
	var emp access.Employee
	err := row.Scan(&emp.ID, &emp.OrganizationID, &emp.UserID, &emp.CreatedAt, &emp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *employeeStore) Find(ctx context.Context, id string) (*access.Employee, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select id, organization_id, user_id, created_at, updated_at
		from employees where id = $1
	`, id)
	return scanEmployee(row)
}

func (s *employeeStore) FindByUserID(ctx context.Context, userID string) (*access.Employee, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select id, organization_id, user_id, created_at, updated_at
		from employees where user_id = $1
	`, userID)
	return scanEmployee(row)
}

func (s *employeeStore) GroupsForEmployee(ctx context.Context, employeeID string) ([]access.PermissionGroup, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select g.id, g.organization_id, g.name, coalesce(g.description, ''), g.created_at, g.updated_at
		from permission_groups g
		join employee_groups eg on eg.group_id = g.id
		where eg.employee_id = $1
		order by g.name
	`, employeeID)
	if err != nil {
		return nil, err
	}
	groups, err := collectGroups(rows)
	if err != nil {
		return nil, err
	}
	if err := (*Store)(s).attachGroupPermissions(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *employeeStore) SetGroups(ctx context.Context, employeeID string, groupIDs []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from employee_groups where employee_id = $1`, employeeID); err != nil {
		return err
	}
	for _, groupID := range groupIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into employee_groups (employee_id, group_id) values ($1, $2)
		`, employeeID, groupID); err != nil {
			return mapWriteError(err)
		}
	}
	return tx.Commit()
}

type roleStore Store

var _ access.RoleStore = (*roleStore)(nil)

const roleColumns = `id, coalesce(organization_id, ''), name, coalesce(description, ''), is_system, created_at, updated_at`

func collectRoles(rows *sql.Rows) ([]access.Role, error) {
	defer rows.Close()
	var roles []access.Role
	for rows.Next() {
		var role access.Role
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = []access.Permission{}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *roleStore) Create(ctx context.Context, role *access.Role) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into roles (id, organization_id, name, description, is_system)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, role.ID, nullIfEmpty(role.OrganizationID), role.Name, nullIfEmpty(role.Description), role.IsSystem)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	if err := replaceRolePermissions(ctx, tx, role.ID, role.Permissions); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) Find(ctx context.Context, id string) (*access.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var role access.Role
	err := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1`, id).
		Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	roles := []access.Role{role}
	if err := (*Store)(s).attachRolePermissions(ctx, roles); err != nil {
		return nil, err
	}
	return &roles[0], nil
}

func (s *roleStore) FindByName(ctx context.Context, orgID, name string) (*access.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var role access.Role
	err := s.db.QueryRowContext(ctx, `
		select `+roleColumns+` from roles
		where coalesce(organization_id, '') = $1 and name = $2
	`, orgID, name).
		Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	roles := []access.Role{role}
	if err := (*Store)(s).attachRolePermissions(ctx, roles); err != nil {
		return nil, err
	}
	return &roles[0], nil
}

func (s *roleStore) ListAvailable(ctx context.Context, orgID string) ([]access.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+roleColumns+` from roles
		where organization_id is null or organization_id = $1
		order by name
	`, orgID)
	if err != nil {
		return nil, err
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	if err := (*Store)(s).attachRolePermissions(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *roleStore) Update(ctx context.Context, role *access.Role) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update roles set name = $2, description = $3, updated_at = now()
		where id = $1
	`, role.ID, role.Name, nullIfEmpty(role.Description))
	if err != nil {
		return mapWriteError(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return access.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, role.ID); err != nil {
		return err
	}
	if err := replaceRolePermissions(ctx, tx, role.ID, role.Permissions); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where role_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return access.ErrNotFound
	}
	return tx.Commit()
}

func (s *roleStore) AssignmentCount(ctx context.Context, roleID string) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `select count(*) from user_roles where role_id = $1`, roleID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func replaceRolePermissions(ctx context.Context, tx *sql.Tx, roleID string, perms []access.Permission) error {
	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id) values ($1, $2)
		`, roleID, p.ID); err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}

type groupStore Store

var _ access.GroupStore = (*groupStore)(nil)

const groupColumns = `id, organization_id, name, coalesce(description, ''), created_at, updated_at`

func collectGroups(rows *sql.Rows) ([]access.PermissionGroup, error) {
	defer rows.Close()
	var groups []access.PermissionGroup
	for rows.Next() {
		var g access.PermissionGroup
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Permissions = []access.Permission{}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *groupStore) Create(ctx context.Context, group *access.PermissionGroup) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if group.ID == "" {
		group.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into permission_groups (id, organization_id, name, description)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, group.ID, group.OrganizationID, group.Name, nullIfEmpty(group.Description))
	if err := row.Scan(&group.CreatedAt, &group.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	if err := replaceGroupPermissions(ctx, tx, group.ID, group.Permissions); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *groupStore) Find(ctx context.Context, id string) (*access.PermissionGroup, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var g access.PermissionGroup
	err := s.db.QueryRowContext(ctx, `select `+groupColumns+` from permission_groups where id = $1`, id).
		Scan(&g.ID, &g.OrganizationID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	groups := []access.PermissionGroup{g}
	if err := (*Store)(s).attachGroupPermissions(ctx, groups); err != nil {
		return nil, err
	}
	return &groups[0], nil
}

func (s *groupStore) FindByIDs(ctx context.Context, groupIDs []string) ([]access.PermissionGroup, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if len(groupIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(groupIDs))
	for i, id := range groupIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+groupColumns+` from permission_groups
		where id in (`+placeholders(len(groupIDs), 1)+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	groups, err := collectGroups(rows)
	if err != nil {
		return nil, err
	}
	if err := (*Store)(s).attachGroupPermissions(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *groupStore) ListByOrg(ctx context.Context, orgID string) ([]access.PermissionGroup, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+groupColumns+` from permission_groups
		where organization_id = $1
		order by name
	`, orgID)
	if err != nil {
		return nil, err
	}
	groups, err := collectGroups(rows)
	if err != nil {
		return nil, err
	}
	if err := (*Store)(s).attachGroupPermissions(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *groupStore) Update(ctx context.Context, group *access.PermissionGroup) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update permission_groups set name = $2, description = $3, updated_at = now()
		where id = $1
	`, group.ID, group.Name, nullIfEmpty(group.Description))
	if err != nil {
		return mapWriteError(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return access.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `delete from group_permissions where group_id = $1`, group.ID); err != nil {
		return err
	}
	if err := replaceGroupPermissions(ctx, tx, group.ID, group.Permissions); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *groupStore) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from employee_groups where group_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from group_permissions where group_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from permission_groups where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return access.ErrNotFound
	}
	return tx.Commit()
}

func replaceGroupPermissions(ctx context.Context, tx *sql.Tx, groupID string, perms []access.Permission) error {
	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into group_permissions (group_id, permission_id) values ($1, $2)
		`, groupID, p.ID); err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}

type permissionStore Store

var _ access.PermissionStore = (*permissionStore)(nil)

const permissionColumns = `id, coalesce(organization_id, ''), resource, action, scope, coalesce(description, ''), created_at`

func collectPermissions(rows *sql.Rows) ([]access.Permission, error) {
	defer rows.Close()
	var perms []access.Permission
	for rows.Next() {
		var p access.Permission
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Resource, &p.Action, &p.Scope, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *permissionStore) Ensure(ctx context.Context, perms []access.Permission) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	for _, p := range perms {
		if _, err := s.db.ExecContext(ctx, `
			insert into permissions (id, organization_id, resource, action, scope, description)
			values ($1, $2, $3, $4, $5, $6)
			on conflict ((coalesce(organization_id, '')), resource, action, scope) do nothing
		`, ids.New(), nullIfEmpty(p.OrganizationID), p.Resource, p.Action, p.Scope, nullIfEmpty(p.Description)); err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context, orgID string) ([]access.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+permissionColumns+` from permissions
		where organization_id is null or organization_id = $1
		order by resource, action, scope
	`, orgID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (s *permissionStore) FindByIDs(ctx context.Context, permIDs []string) ([]access.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if len(permIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(permIDs))
	for i, id := range permIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+permissionColumns+` from permissions
		where id in (`+placeholders(len(permIDs), 1)+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (s *Store) attachRolePermissions(ctx context.Context, roles []access.Role) error {
	if len(roles) == 0 {
		return nil
	}
	args := make([]any, len(roles))
	for i, r := range roles {
		args[i] = r.ID
	}
	rows, err := s.db.QueryContext(ctx, `
		select rp.role_id, p.id, coalesce(p.organization_id, ''), p.resource, p.action, p.scope, coalesce(p.description, ''), p.created_at
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id in (`+placeholders(len(roles), 1)+`)
		order by p.resource, p.action, p.scope
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	byRole := make(map[string][]access.Permission)
	for rows.Next() {
		var (
			roleID string
			p      access.Permission
		)
		if err := rows.Scan(&roleID, &p.ID, &p.OrganizationID, &p.Resource, &p.Action, &p.Scope, &p.Description, &p.CreatedAt); err != nil {
			return err
		}
		byRole[roleID] = append(byRole[roleID], p)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range roles {
		if perms, ok := byRole[roles[i].ID]; ok {
			roles[i].Permissions = perms
		}
	}
	return nil
}

func (s *Store) attachGroupPermissions(ctx context.Context, groups []access.PermissionGroup) error {
	if len(groups) == 0 {
		return nil
	}
	args := make([]any, len(groups))
	for i, g := range groups {
		args[i] = g.ID
	}
	rows, err := s.db.QueryContext(ctx, `
		select gp.group_id, p.id, coalesce(p.organization_id, ''), p.resource, p.action, p.scope, coalesce(p.description, ''), p.created_at
		from group_permissions gp
		join permissions p on p.id = gp.permission_id
		where gp.group_id in (`+placeholders(len(groups), 1)+`)
		order by p.resource, p.action, p.scope
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	byGroup := make(map[string][]access.Permission)
	for rows.Next() {
		var (
			groupID string
			p       access.Permission
		)
		if err := rows.Scan(&groupID, &p.ID, &p.OrganizationID, &p.Resource, &p.Action, &p.Scope, &p.Description, &p.CreatedAt); err != nil {
			return err
		}
		byGroup[groupID] = append(byGroup[groupID], p)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range groups {
		if perms, ok := byGroup[groups[i].ID]; ok {
			groups[i].Permissions = perms
		}
	}
	return nil
}

func placeholders(n, start int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", start+i)
	}
	return b.String()
}
