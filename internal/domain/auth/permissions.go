package auth

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleDeptHead = "dept_head"
	RoleHR       = "hr"
)

const (
	PermLeaveRead    = "leave.read"
	PermLeaveWrite   = "leave.write"
	PermLeaveApprove = "leave.approve"
	PermLeaveAdjust  = "leave.adjust"
	PermPolicyWrite  = "leave.policy.write"
	PermReportsRead  = "reports.read"
	PermAdminOps     = "admin.operations"
)

var DefaultPermissions = []string{
	PermLeaveRead,
	PermLeaveWrite,
	PermLeaveApprove,
	PermLeaveAdjust,
	PermPolicyWrite,
	PermReportsRead,
	PermAdminOps,
}

var DefaultRoles = []string{
	RoleEmployee,
	RoleManager,
	RoleDeptHead,
	RoleHR,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermLeaveRead,
		PermLeaveWrite,
	},
	RoleManager: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermReportsRead,
	},
	RoleDeptHead: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermReportsRead,
	},
	RoleHR: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdjust,
		PermPolicyWrite,
		PermReportsRead,
		PermAdminOps,
	},
}
