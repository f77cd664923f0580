package leave

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leavehub/internal/domain/auth"
)

var (
	employeeActor = Actor{UserID: "u-emp", EmployeeID: "emp-1", Role: auth.RoleEmployee, Department: "Engineering"}
	managerActor  = Actor{UserID: "u-mgr", EmployeeID: "mgr-1", Role: auth.RoleManager, Department: "Engineering"}
	deptHeadActor = Actor{UserID: "u-head", EmployeeID: "head-1", Role: auth.RoleDeptHead, Department: "Engineering"}
	hrActor       = Actor{UserID: "u-hr", EmployeeID: "hr-1", Role: auth.RoleHR, Department: "People"}
	outsiderActor = Actor{UserID: "u-out", EmployeeID: "emp-2", Role: auth.RoleEmployee, Department: "Sales"}
)

func newTestService(policies ...Policy) (*Service, *fakeStore) {
	store := newFakeStore(policies...)
	directory := &fakeDirectory{
		departments: map[string]string{
			"emp-1":  "Engineering",
			"mgr-1":  "Engineering",
			"head-1": "Engineering",
			"hr-1":   "People",
			"emp-2":  "Sales",
		},
		managers: map[string][]string{"mgr-1": {"emp-1"}},
	}
	return NewService(store, NewLedger(store), directory), store
}

func submitVacation(t *testing.T, svc *Service, days int) *Request {
	t.Helper()
	start := day(testYear, 6, 2)
	req, availability, err := svc.Submit(context.Background(), employeeActor, SubmitInput{
		LeaveType: "Vacation",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days-1),
		Reason:    "Family trip",
	})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if req == nil {
		t.Fatalf("submission refused: %+v", availability)
	}
	return req
}

func TestSubmitCreatesPendingRequestWithoutReserving(t *testing.T) {
	svc, store := newTestService(vacationPolicy())
	ctx := context.Background()

	req := submitVacation(t, svc, 2)
	if req.Status != StatusPending || req.TotalDays != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Department != "Engineering" {
		t.Fatalf("department not resolved: %+v", req)
	}
	if len(req.Workflow) != 1 || req.Workflow[0].ApproverRole != auth.RoleManager {
		t.Fatalf("short request needs only the manager: %+v", req.Workflow)
	}
	if req.Priority != PriorityNormal {
		t.Fatalf("priority should default to normal: %+v", req)
	}

	// Submission never reserves days.
	for _, leaveType := range []string{"Vacation", QuotaLeaveType} {
		b, _ := store.Balance(ctx, "emp-1", leaveType, testYear)
		if b.Pending != 0 || b.Used != 0 {
			t.Fatalf("%s balance touched at submission: %+v", leaveType, b)
		}
	}
}

func TestSubmitInsufficientBalance(t *testing.T) {
	svc, _ := newTestService(vacationPolicy())
	start := day(testYear, 6, 2)

	req, availability, err := svc.Submit(context.Background(), employeeActor, SubmitInput{
		LeaveType: "Vacation",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 12),
		Reason:    "Long trip",
	})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if req != nil {
		t.Fatalf("13-day request against 12 days must be refused: %+v", req)
	}
	if availability == nil || availability.HasBalance {
		t.Fatalf("expected availability refusal, got %+v", availability)
	}
	if !strings.Contains(availability.Message, "Insufficient Vacation balance") {
		t.Fatalf("unexpected message: %q", availability.Message)
	}
	if availability.NoPolicy {
		t.Fatalf("a shortfall under a defined policy must not be flagged as missing policy")
	}
}

func TestSubmitUnknownLeaveType(t *testing.T) {
	svc, _ := newTestService(vacationPolicy())
	start := day(testYear, 6, 2)

	req, availability, err := svc.Submit(context.Background(), employeeActor, SubmitInput{
		LeaveType: "Sabbatical",
		StartDate: start,
		EndDate:   start,
		Reason:    "Research",
	})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if req != nil || availability == nil {
		t.Fatalf("undefined type must be refused: req=%+v availability=%+v", req, availability)
	}
	if !strings.Contains(availability.Message, "No active policy") {
		t.Fatalf("unexpected message: %q", availability.Message)
	}
	if !availability.NoPolicy {
		t.Fatalf("missing policy must be flagged, got %+v", availability)
	}
}

func TestSubmitQuotaTypeRejected(t *testing.T) {
	svc, _ := newTestService(vacationPolicy())
	_, _, err := svc.Submit(context.Background(), employeeActor, SubmitInput{
		LeaveType: QuotaLeaveType,
		StartDate: day(testYear, 6, 2),
		EndDate:   day(testYear, 6, 2),
	})
	if !errors.Is(err, ErrQuotaType) {
		t.Fatalf("expected ErrQuotaType, got %v", err)
	}
}

func TestSubmitPolicyViolations(t *testing.T) {
	policy := vacationPolicy()
	policy.MaxConsecutiveDays = 5
	policy.MinAdvanceNoticeDays = 3
	svc, _ := newTestService(policy)
	ctx := context.Background()

	// Past dates can never satisfy an advance-notice rule.
	start := day(testYear, 6, 2)
	_, _, err := svc.Submit(ctx, employeeActor, SubmitInput{
		LeaveType: "Vacation",
		StartDate: start,
		EndDate:   start,
		Reason:    "Late filing",
	})
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected notice violation, got %v", err)
	}

	farOut := time.Now().AddDate(1, 0, 0)
	_, _, err = svc.Submit(ctx, employeeActor, SubmitInput{
		LeaveType: "Vacation",
		StartDate: farOut,
		EndDate:   farOut.AddDate(0, 0, 6),
		Reason:    "Too long",
	})
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected consecutive-days violation, got %v", err)
	}
}

func TestApproveFinalStepConsumesBalance(t *testing.T) {
	svc, store := newTestService(vacationPolicy())
	ctx := context.Background()

	req := submitVacation(t, svc, 2)
	approved, err := svc.Approve(ctx, managerActor, req.ID, "Enjoy")
	if err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("expected approved, got %+v", approved)
	}
	step := approved.Workflow[0]
	if step.Status != StatusApproved || step.ApproverID != "mgr-1" || step.Comments != "Enjoy" {
		t.Fatalf("step not recorded: %+v", step)
	}

	specific, _ := store.Balance(ctx, "emp-1", "Vacation", testYear)
	if specific.Used != 2 || specific.Remaining != 10 {
		t.Fatalf("vacation balance not debited: %+v", specific)
	}
	quota, _ := store.Balance(ctx, "emp-1", QuotaLeaveType, testYear)
	if quota.Used != 2 || quota.Remaining != 13 {
		t.Fatalf("quota not debited: %+v", quota)
	}
}

func TestApproveEscalationChain(t *testing.T) {
	svc, store := newTestService(vacationPolicy())
	ctx := context.Background()

	// 5 days exceeds the manager's 3-day limit, so the dept head signs too.
	req := submitVacation(t, svc, 5)
	if len(req.Workflow) != 2 {
		t.Fatalf("expected two approval steps: %+v", req.Workflow)
	}

	afterFirst, err := svc.Approve(ctx, managerActor, req.ID, "")
	if err != nil {
		t.Fatalf("manager approve error: %v", err)
	}
	if afterFirst.Status != StatusPending {
		t.Fatalf("request must stay pending mid-chain: %+v", afterFirst)
	}
	specific, _ := store.Balance(ctx, "emp-1", "Vacation", testYear)
	if specific.Used != 0 {
		t.Fatalf("balance consumed before final approval: %+v", specific)
	}

	// The dept head cannot be skipped by the manager approving again.
	if _, err := svc.Approve(ctx, managerActor, req.ID, ""); !errors.Is(err, ErrNotApprover) {
		t.Fatalf("expected ErrNotApprover, got %v", err)
	}

	final, err := svc.Approve(ctx, deptHeadActor, req.ID, "")
	if err != nil {
		t.Fatalf("dept head approve error: %v", err)
	}
	if final.Status != StatusApproved {
		t.Fatalf("expected approved, got %+v", final)
	}
	specific, _ = store.Balance(ctx, "emp-1", "Vacation", testYear)
	if specific.Used != 5 {
		t.Fatalf("balance not consumed on final approval: %+v", specific)
	}
}

func TestApproveAuthorization(t *testing.T) {
	svc, _ := newTestService(vacationPolicy())
	ctx := context.Background()
	req := submitVacation(t, svc, 2)

	// Self-approval, even by a manager-of-self fixture, is refused.
	if _, err := svc.Approve(ctx, employeeActor, req.ID, ""); !errors.Is(err, ErrNotApprover) {
		t.Fatalf("expected ErrNotApprover for self, got %v", err)
	}

	other := Actor{UserID: "u-other", EmployeeID: "mgr-2", Role: auth.RoleManager, Department: "Sales"}
	if _, err := svc.Approve(ctx, other, req.ID, ""); !errors.Is(err, ErrNotApprover) {
		t.Fatalf("expected ErrNotApprover for unrelated manager, got %v", err)
	}

	// HR can act on any step.
	approved, err := svc.Approve(ctx, hrActor, req.ID, "")
	if err != nil {
		t.Fatalf("HR approve error: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("expected approved, got %+v", approved)
	}
}

func TestRejectLeavesBalanceUntouched(t *testing.T) {
	svc, store := newTestService(vacationPolicy())
	ctx := context.Background()
	req := submitVacation(t, svc, 2)

	rejected, err := svc.Reject(ctx, managerActor, req.ID, "Coverage gap")
	if err != nil {
		t.Fatalf("reject error: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Fatalf("expected rejected, got %+v", rejected)
	}
	if rejected.Workflow[0].Status != StatusRejected || rejected.Workflow[0].Comments != "Coverage gap" {
		t.Fatalf("step not recorded: %+v", rejected.Workflow[0])
	}

	specific, _ := store.Balance(ctx, "emp-1", "Vacation", testYear)
	if specific.Used != 0 || specific.Pending != 0 {
		t.Fatalf("rejection must not touch balance: %+v", specific)
	}

	// Decided requests are immutable.
	if _, err := svc.Approve(ctx, managerActor, req.ID, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	svc, _ := newTestService(vacationPolicy())
	ctx := context.Background()

	req := submitVacation(t, svc, 2)
	if err := svc.Cancel(ctx, outsiderActor, req.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Cancel(ctx, employeeActor, req.ID); err != nil {
		t.Fatalf("owner cancel error: %v", err)
	}
	if _, err := svc.Get(ctx, hrActor, req.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("cancelled request should be gone, got %v", err)
	}

	// Approved requests are immutable.
	req = submitVacation(t, svc, 2)
	if _, err := svc.Approve(ctx, managerActor, req.ID, ""); err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if err := svc.Cancel(ctx, employeeActor, req.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestGetVisibility(t *testing.T) {
	svc, _ := newTestService(vacationPolicy())
	ctx := context.Background()
	req := submitVacation(t, svc, 2)

	for _, actor := range []Actor{employeeActor, managerActor, deptHeadActor, hrActor} {
		if _, err := svc.Get(ctx, actor, req.ID); err != nil {
			t.Fatalf("%s should see the request: %v", actor.Role, err)
		}
	}
	if _, err := svc.Get(ctx, outsiderActor, req.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
}

func TestListScoping(t *testing.T) {
	svc, store := newTestService(vacationPolicy())
	ctx := context.Background()

	submitVacation(t, svc, 2)
	// A second request from an employee outside the manager's reports.
	_, err := store.CreateRequest(ctx, &Request{
		EmployeeID: "emp-2",
		LeaveType:  "Vacation",
		StartDate:  day(testYear, 7, 1),
		EndDate:    day(testYear, 7, 2),
		TotalDays:  2,
		Status:     StatusPending,
		Department: "Sales",
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}

	cases := []struct {
		actor Actor
		want  int
	}{
		{employeeActor, 1},
		{managerActor, 1},
		{deptHeadActor, 1},
		{hrActor, 2},
	}
	for _, tc := range cases {
		requests, total, err := svc.List(ctx, tc.actor, "", 50, 0)
		if err != nil {
			t.Fatalf("%s list error: %v", tc.actor.Role, err)
		}
		if len(requests) != tc.want || total != tc.want {
			t.Fatalf("%s expected %d requests, got %d", tc.actor.Role, tc.want, len(requests))
		}
	}
}

func TestBalancesInitializesAndScopes(t *testing.T) {
	svc, _ := newTestService(vacationPolicy(), sickPolicy())
	ctx := context.Background()

	balances, err := svc.Balances(ctx, hrActor, "emp-1", testYear)
	if err != nil {
		t.Fatalf("balances error: %v", err)
	}
	if len(balances) != 3 {
		t.Fatalf("expected 2 policy balances + quota, got %d", len(balances))
	}

	if _, err := svc.Balances(ctx, outsiderActor, "emp-1", testYear); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	svc, _ := newTestService(vacationPolicy())
	ctx := context.Background()

	req := submitVacation(t, svc, 2)
	if _, err := svc.Approve(ctx, managerActor, req.ID, ""); err != nil {
		t.Fatalf("approve error: %v", err)
	}

	entries, err := svc.History(ctx, employeeActor, "emp-1", "Vacation", testYear, 50, 0)
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected allocation + usage entries, got %+v", entries)
	}
	if entries[1].Type != EntryUsed || entries[1].LeaveRequestID != req.ID {
		t.Fatalf("usage entry must reference the request: %+v", entries[1])
	}

	if _, err := svc.History(ctx, employeeActor, "emp-1", "Sabbatical", testYear, 50, 0); !errors.Is(err, ErrBalanceNotFound) {
		t.Fatalf("expected ErrBalanceNotFound, got %v", err)
	}
}

func TestPolicyManagement(t *testing.T) {
	svc, _ := newTestService(vacationPolicy())
	ctx := context.Background()

	id, err := svc.CreatePolicy(ctx, Policy{LeaveType: "Study Leave", DefaultAllocation: 5, IsActive: true})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if id == "" {
		t.Fatal("expected policy id")
	}

	if _, err := svc.CreatePolicy(ctx, Policy{LeaveType: "Vacation", DefaultAllocation: 10}); !errors.Is(err, ErrPolicyExists) {
		t.Fatalf("expected ErrPolicyExists, got %v", err)
	}
	if _, err := svc.CreatePolicy(ctx, Policy{LeaveType: QuotaLeaveType}); !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("quota bucket must not be a policy, got %v", err)
	}
	if _, err := svc.CreatePolicy(ctx, Policy{LeaveType: "Bad", DefaultAllocation: -1}); !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}

	if err := svc.UpdatePolicy(ctx, Policy{ID: "missing", LeaveType: "Ghost"}); !errors.Is(err, ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}
