package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leavehub/internal/domain/auth"
)

// ErrPolicyViolation wraps user-facing policy rule failures on submission.
var ErrPolicyViolation = errors.New("policy violation")

// Directory resolves employee relationships for authorization decisions.
// Implemented by the core employee store.
type Directory interface {
	EmployeeDepartment(ctx context.Context, employeeID string) (string, error)
	IsManagerOf(ctx context.Context, managerEmployeeID, employeeID string) (bool, error)
	DirectReports(ctx context.Context, managerEmployeeID string) ([]string, error)
}

// Actor is the resolved caller identity for a leave operation.
type Actor struct {
	UserID     string
	EmployeeID string
	Role       string
	Department string
}

type Service struct {
	Requests  RequestStore
	Ledger    *Ledger
	Directory Directory
}

func NewService(requests RequestStore, ledger *Ledger, directory Directory) *Service {
	return &Service{Requests: requests, Ledger: ledger, Directory: directory}
}

type SubmitInput struct {
	LeaveType string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
	Priority  string
}

// Submit validates a request against the leave type's policy and current
// availability, then files it with its approval workflow. Balance is NOT
// reserved at submission; days are only consumed on final approval.
func (s *Service) Submit(ctx context.Context, actor Actor, input SubmitInput) (*Request, *AvailabilityResult, error) {
	if input.LeaveType == QuotaLeaveType {
		return nil, nil, ErrQuotaType
	}
	days, err := CalculateDays(input.StartDate, input.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPolicyViolation, err.Error())
	}

	policy, err := s.activePolicy(ctx, input.LeaveType)
	if err != nil {
		return nil, nil, err
	}
	if policy == nil {
		return nil, &AvailabilityResult{
			Required: days,
			NoPolicy: true,
			Message:  fmt.Sprintf("No active policy defines %s", input.LeaveType),
		}, nil
	}
	if err := validateAgainstPolicy(*policy, input.StartDate, days, time.Now()); err != nil {
		return nil, nil, err
	}

	year := input.StartDate.Year()
	availability, err := s.Ledger.CheckAvailability(ctx, actor.EmployeeID, input.LeaveType, days, year)
	if err != nil {
		return nil, nil, err
	}
	if !availability.HasBalance {
		return nil, &availability, nil
	}

	department, err := s.Directory.EmployeeDepartment(ctx, actor.EmployeeID)
	if err != nil {
		return nil, nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	req := &Request{
		EmployeeID: actor.EmployeeID,
		LeaveType:  input.LeaveType,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		TotalDays:  days,
		Reason:     input.Reason,
		Priority:   priority,
		Status:     StatusPending,
		Department: department,
		Workflow:   BuildWorkflow(*policy, days),
		IsActive:   true,
	}
	id, err := s.Requests.CreateRequest(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	req.ID = id
	return req, &availability, nil
}

func validateAgainstPolicy(policy Policy, start time.Time, days int, now time.Time) error {
	if policy.MaxConsecutiveDays > 0 && days > policy.MaxConsecutiveDays {
		return fmt.Errorf("%w: %s allows at most %d consecutive day(s)", ErrPolicyViolation, policy.LeaveType, policy.MaxConsecutiveDays)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if policy.MinAdvanceNoticeDays > 0 && start.Before(today.AddDate(0, 0, policy.MinAdvanceNoticeDays)) {
		return fmt.Errorf("%w: %s requires %d day(s) advance notice", ErrPolicyViolation, policy.LeaveType, policy.MinAdvanceNoticeDays)
	}
	if policy.MaxAdvanceBookingDays > 0 && start.After(today.AddDate(0, 0, policy.MaxAdvanceBookingDays)) {
		return fmt.Errorf("%w: %s cannot be booked more than %d day(s) ahead", ErrPolicyViolation, policy.LeaveType, policy.MaxAdvanceBookingDays)
	}
	return nil
}

// Approve records the caller's decision on the request's current workflow
// step. The final step's approval consumes balance through the ledger;
// earlier steps just advance the chain.
func (s *Service) Approve(ctx context.Context, actor Actor, requestID, comments string) (*Request, error) {
	req, step, err := s.pendingStep(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeStep(ctx, actor, req, step); err != nil {
		return nil, err
	}

	if err := s.Requests.DecideWorkflowStep(ctx, req.ID, step.Order, actor.EmployeeID, StatusApproved, comments, time.Now()); err != nil {
		return nil, err
	}

	final := step.Order == len(req.Workflow)
	if final {
		if err := s.Requests.UpdateRequestStatus(ctx, req.ID, StatusApproved); err != nil {
			return nil, err
		}
		if err := s.Ledger.RecordUsage(ctx, req.EmployeeID, req.LeaveType, req.TotalDays, req.StartDate.Year(), req.ID); err != nil {
			return nil, err
		}
	}
	return s.Requests.RequestByID(ctx, req.ID)
}

// Reject records a rejection on the current workflow step and closes the
// request. No balance changes: submission never reserved any days.
func (s *Service) Reject(ctx context.Context, actor Actor, requestID, comments string) (*Request, error) {
	req, step, err := s.pendingStep(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeStep(ctx, actor, req, step); err != nil {
		return nil, err
	}

	if err := s.Requests.DecideWorkflowStep(ctx, req.ID, step.Order, actor.EmployeeID, StatusRejected, comments, time.Now()); err != nil {
		return nil, err
	}
	if err := s.Requests.UpdateRequestStatus(ctx, req.ID, StatusRejected); err != nil {
		return nil, err
	}
	return s.Requests.RequestByID(ctx, req.ID)
}

// Cancel soft-deletes a pending request. Owners, their manager, and HR may
// cancel; approved and rejected requests are immutable.
func (s *Service) Cancel(ctx context.Context, actor Actor, requestID string) error {
	req, err := s.Requests.RequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.Status != StatusPending {
		return ErrInvalidState
	}

	allowed := actor.EmployeeID == req.EmployeeID || actor.Role == auth.RoleHR
	if !allowed && actor.Role == auth.RoleManager {
		allowed, err = s.Directory.IsManagerOf(ctx, actor.EmployeeID, req.EmployeeID)
		if err != nil {
			return err
		}
	}
	if !allowed {
		return ErrForbidden
	}
	return s.Requests.SoftDeleteRequest(ctx, requestID)
}

func (s *Service) Get(ctx context.Context, actor Actor, requestID string) (*Request, error) {
	req, err := s.Requests.RequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	ok, err := s.canView(ctx, actor, req.EmployeeID, req.Department)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return req, nil
}

// List scopes results to what the caller may see: employees their own
// requests, managers their reports plus their own, department heads their
// department, HR everything.
func (s *Service) List(ctx context.Context, actor Actor, status string, limit, offset int) ([]Request, int, error) {
	filter := RequestFilter{Status: status, Limit: limit, Offset: offset}
	switch actor.Role {
	case auth.RoleHR:
	case auth.RoleDeptHead:
		filter.Department = actor.Department
	case auth.RoleManager:
		reports, err := s.Directory.DirectReports(ctx, actor.EmployeeID)
		if err != nil {
			return nil, 0, err
		}
		filter.EmployeeIDs = append(reports, actor.EmployeeID)
	default:
		filter.EmployeeID = actor.EmployeeID
	}
	return s.Requests.ListRequests(ctx, filter)
}

// Balances lists an employee's balance rows for a year, initializing missing
// rows from the active policy set first. First reference creates the rows.
func (s *Service) Balances(ctx context.Context, actor Actor, employeeID string, year int) ([]Balance, error) {
	year = normalizeYear(year)
	ok, err := s.canView(ctx, actor, employeeID, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	if err := s.Ledger.InitializeEmployeeBalances(ctx, employeeID, year); err != nil {
		return nil, err
	}
	return s.Ledger.Store.Balances(ctx, employeeID, year)
}

// History returns the transaction log for one balance.
func (s *Service) History(ctx context.Context, actor Actor, employeeID, leaveType string, year, limit, offset int) ([]Entry, error) {
	year = normalizeYear(year)
	ok, err := s.canView(ctx, actor, employeeID, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	balance, err := s.Ledger.Store.Balance(ctx, employeeID, leaveType, year)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, ErrBalanceNotFound
	}
	return s.Ledger.Store.Entries(ctx, balance.ID, limit, offset)
}

func (s *Service) Availability(ctx context.Context, actor Actor, employeeID, leaveType string, days, year int) (AvailabilityResult, error) {
	ok, err := s.canView(ctx, actor, employeeID, "")
	if err != nil {
		return AvailabilityResult{}, err
	}
	if !ok {
		return AvailabilityResult{}, ErrForbidden
	}
	return s.Ledger.CheckAvailability(ctx, employeeID, leaveType, days, year)
}

func (s *Service) pendingStep(ctx context.Context, requestID string) (*Request, WorkflowStep, error) {
	req, err := s.Requests.RequestByID(ctx, requestID)
	if err != nil {
		return nil, WorkflowStep{}, err
	}
	if req == nil {
		return nil, WorkflowStep{}, ErrRequestNotFound
	}
	if req.Status != StatusPending {
		return nil, WorkflowStep{}, ErrInvalidState
	}
	for _, step := range req.Workflow {
		if step.Status == StatusPending {
			return req, step, nil
		}
	}
	return nil, WorkflowStep{}, ErrInvalidState
}

// authorizeStep checks the caller against the step's approver role. HR may
// act on any step; self-approval is never allowed.
func (s *Service) authorizeStep(ctx context.Context, actor Actor, req *Request, step WorkflowStep) error {
	if actor.EmployeeID == req.EmployeeID {
		return ErrNotApprover
	}
	if actor.Role == auth.RoleHR {
		return nil
	}
	switch step.ApproverRole {
	case auth.RoleManager:
		if actor.Role != auth.RoleManager {
			return ErrNotApprover
		}
		manages, err := s.Directory.IsManagerOf(ctx, actor.EmployeeID, req.EmployeeID)
		if err != nil {
			return err
		}
		if !manages {
			return ErrNotApprover
		}
		return nil
	case auth.RoleDeptHead:
		if actor.Role != auth.RoleDeptHead || actor.Department != req.Department {
			return ErrNotApprover
		}
		return nil
	default:
		return ErrNotApprover
	}
}

func (s *Service) canView(ctx context.Context, actor Actor, employeeID, department string) (bool, error) {
	if actor.EmployeeID == employeeID || actor.Role == auth.RoleHR {
		return true, nil
	}
	if actor.Role == auth.RoleManager {
		return s.Directory.IsManagerOf(ctx, actor.EmployeeID, employeeID)
	}
	if actor.Role == auth.RoleDeptHead {
		if department == "" {
			var err error
			department, err = s.Directory.EmployeeDepartment(ctx, employeeID)
			if err != nil {
				return false, err
			}
		}
		return actor.Department == department, nil
	}
	return false, nil
}

func (s *Service) activePolicy(ctx context.Context, leaveType string) (*Policy, error) {
	policies, err := s.Ledger.Store.ActivePolicies(ctx)
	if err != nil {
		return nil, err
	}
	for _, policy := range policies {
		if policy.LeaveType == leaveType {
			return &policy, nil
		}
	}
	return nil, nil
}

func (s *Service) ListPolicies(ctx context.Context) ([]Policy, error) {
	return s.Ledger.Store.ListPolicies(ctx)
}

func (s *Service) CreatePolicy(ctx context.Context, policy Policy) (string, error) {
	if policy.LeaveType == "" || policy.LeaveType == QuotaLeaveType {
		return "", fmt.Errorf("%w: invalid leave type", ErrPolicyViolation)
	}
	if policy.DefaultAllocation < 0 {
		return "", fmt.Errorf("%w: default allocation cannot be negative", ErrPolicyViolation)
	}
	return s.Ledger.Store.CreatePolicy(ctx, policy)
}

func (s *Service) UpdatePolicy(ctx context.Context, policy Policy) error {
	if policy.DefaultAllocation < 0 {
		return fmt.Errorf("%w: default allocation cannot be negative", ErrPolicyViolation)
	}
	return s.Ledger.Store.UpdatePolicy(ctx, policy)
}
