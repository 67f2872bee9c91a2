package access

// Permission codes used by the HTTP layer and seeded into the catalog.
const (
	PermEmployeesViewOwn  = "employees:view:own"
	PermEmployeesViewTeam = "employees:view:team"
	PermEmployeesViewOrg  = "employees:view:organization"
	PermEmployeesEditOrg  = "employees:edit:organization"

	PermDocumentsViewOwn     = "documents:view:own"
	PermDocumentsViewTeam    = "documents:view:team"
	PermDocumentsViewOrg     = "documents:view:organization"
	PermDocumentsUploadOwn   = "documents:upload:own"
	PermDocumentsUploadOrg   = "documents:upload:organization"
	PermDocumentsRequestOrg  = "documents:request:organization"
	PermLeaveViewTeam        = "leave:view:team"
	PermLeaveApproveTeam     = "leave:approve:team"
	PermTimesheetsViewOrg    = "timesheets:view:organization"
	PermPayrollViewOwn       = "payroll:view:own"
	PermPayrollViewOrg       = "payroll:view:organization"
	PermRolesCreateOrg       = "roles:create:organization"
	PermRolesEditOrg         = "roles:edit:organization"
	PermRolesDeleteOrg       = "roles:delete:organization"
	PermGroupsAssignOrg      = "permission-groups:assign:organization"
	PermAuditViewOrg         = "audit:view:organization"
)

// Role names recognized by the coarse endpoint gate.
const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleOrgAdmin   = "ORGADMIN"
	RoleHR         = "HR"
	RoleManager    = "MANAGER"
	RoleEmployee   = "EMPLOYEE"
)

// BuiltinPermissions is the system-wide permission catalog ensured at
// startup. Organization-scoped permissions are created by tenants and are
// not listed here.
var BuiltinPermissions = []Permission{
	{Resource: "employees", Action: "view", Scope: "own", Description: "View own employee record"},
	{Resource: "employees", Action: "view", Scope: "team", Description: "View employee records of direct reports"},
	{Resource: "employees", Action: "view", Scope: "organization", Description: "View every employee record in the organization"},
	{Resource: "employees", Action: "edit", Scope: "organization", Description: "Edit employee records across the organization"},
	{Resource: "documents", Action: "view", Scope: "own", Description: "View own documents"},
	{Resource: "documents", Action: "view", Scope: "team", Description: "View documents of direct reports"},
	{Resource: "documents", Action: "view", Scope: "organization", Description: "View all documents in the organization"},
	{Resource: "documents", Action: "upload", Scope: "own", Description: "Upload documents for self"},
	{Resource: "documents", Action: "upload", Scope: "organization", Description: "Upload documents on behalf of others"},
	{Resource: "documents", Action: "request", Scope: "organization", Description: "Request documents from employees"},
	{Resource: "leave", Action: "view", Scope: "team", Description: "View leave requests of direct reports"},
	{Resource: "leave", Action: "approve", Scope: "team", Description: "Approve leave requests of direct reports"},
	{Resource: "timesheets", Action: "view", Scope: "organization", Description: "View timesheets across the organization"},
	{Resource: "payroll", Action: "view", Scope: "own", Description: "View own payroll records"},
	{Resource: "payroll", Action: "view", Scope: "organization", Description: "View payroll records across the organization"},
	{Resource: "roles", Action: "create", Scope: "organization", Description: "Create custom roles"},
	{Resource: "roles", Action: "edit", Scope: "organization", Description: "Edit custom roles"},
	{Resource: "roles", Action: "delete", Scope: "organization", Description: "Delete custom roles"},
	{Resource: "permission-groups", Action: "assign", Scope: "organization", Description: "Assign permission groups to employees"},
	{Resource: "audit", Action: "view", Scope: "organization", Description: "View the organization audit trail"},
}

// SystemRolePermissions maps seeded system role names to permission codes.
// ORGADMIN receives every builtin code; SUPERADMIN carries none because
// super-admin authority is enforced structurally, not via codes.
var SystemRolePermissions = map[string][]string{
	RoleSuperAdmin: {},
	RoleOrgAdmin:   allBuiltinCodes(),
	RoleHR: {
		PermEmployeesViewOrg,
		PermEmployeesEditOrg,
		PermDocumentsViewOrg,
		PermDocumentsUploadOrg,
		PermDocumentsRequestOrg,
		PermTimesheetsViewOrg,
		PermPayrollViewOrg,
	},
	RoleManager: {
		PermEmployeesViewOwn,
		PermEmployeesViewTeam,
		PermDocumentsViewOwn,
		PermDocumentsViewTeam,
		PermDocumentsUploadOwn,
		PermLeaveViewTeam,
		PermLeaveApproveTeam,
		PermPayrollViewOwn,
	},
	RoleEmployee: {
		PermEmployeesViewOwn,
		PermDocumentsViewOwn,
		PermDocumentsUploadOwn,
		PermPayrollViewOwn,
	},
}

func allBuiltinCodes() []string {
	codes := make([]string, len(BuiltinPermissions))
	for i, p := range BuiltinPermissions {
		codes[i] = p.Code()
	}
	return codes
}
