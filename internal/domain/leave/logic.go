package leave

import (
	"errors"
	"time"

	"leavehub/internal/domain/auth"
)

// CalculateDays returns the inclusive day count between start and end.
func CalculateDays(start, end time.Time) (int, error) {
	if end.Before(start) {
		return 0, errors.New("end date before start date")
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}

// BuildWorkflow derives the ordered approval chain for a request of the given
// length. The employee's manager always signs off first; longer requests
// escalate to the department head and then HR, per the policy limits.
func BuildWorkflow(policy Policy, totalDays int) []WorkflowStep {
	steps := []WorkflowStep{{ApproverRole: auth.RoleManager, Status: StatusPending, Order: 1}}
	if policy.ManagerMaxDays > 0 && totalDays > policy.ManagerMaxDays {
		steps = append(steps, WorkflowStep{ApproverRole: auth.RoleDeptHead, Status: StatusPending, Order: 2})
	}
	if policy.DeptHeadMaxDays > 0 && totalDays > policy.DeptHeadMaxDays {
		steps = append(steps, WorkflowStep{ApproverRole: auth.RoleHR, Status: StatusPending, Order: len(steps) + 1})
	}
	return steps
}
