package leave

import (
	"context"
	"fmt"
	"time"
)

// fakeStore is an in-memory BalanceStore and RequestStore.
type fakeStore struct {
	balances  map[string]*Balance
	entries   map[string][]Entry
	policies  []Policy
	carryRuns map[string]bool
	requests  map[string]*Request
	nextID    int
}

func newFakeStore(policies ...Policy) *fakeStore {
	return &fakeStore{
		balances:  make(map[string]*Balance),
		entries:   make(map[string][]Entry),
		policies:  policies,
		carryRuns: make(map[string]bool),
		requests:  make(map[string]*Request),
	}
}

func balanceKey(employeeID, leaveType string, year int) string {
	return fmt.Sprintf("%s|%s|%d", employeeID, leaveType, year)
}

func (f *fakeStore) newID() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) Balance(_ context.Context, employeeID, leaveType string, year int) (*Balance, error) {
	b, ok := f.balances[balanceKey(employeeID, leaveType, year)]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) Balances(_ context.Context, employeeID string, year int) ([]Balance, error) {
	var out []Balance
	for _, b := range f.balances {
		if b.EmployeeID == employeeID && b.Year == year {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) BalancesForYear(_ context.Context, year int) ([]Balance, error) {
	var out []Balance
	for _, b := range f.balances {
		if b.Year == year {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) Entries(_ context.Context, balanceID string, limit, offset int) ([]Entry, error) {
	entries := f.entries[balanceID]
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeStore) CreateBalance(_ context.Context, balance Balance, entry Entry) (bool, error) {
	key := balanceKey(balance.EmployeeID, balance.LeaveType, balance.Year)
	if _, ok := f.balances[key]; ok {
		return false, nil
	}
	balance.ID = f.newID()
	balance.LastUpdated = time.Now()
	f.balances[key] = &balance
	if entry.Type != "" {
		f.appendEntry(balance.ID, entry)
	}
	return true, nil
}

func (f *fakeStore) ApplyChanges(_ context.Context, changes []Change) error {
	// Validate first so a missing row leaves every balance untouched.
	for _, change := range changes {
		if _, ok := f.balances[balanceKey(change.EmployeeID, change.LeaveType, change.Year)]; !ok {
			return ErrBalanceNotFound
		}
	}
	for _, change := range changes {
		f.applyChange(change)
	}
	return nil
}

func (f *fakeStore) ApplyCarryForward(_ context.Context, change Change, fromYear int) (bool, error) {
	runKey := balanceKey(change.EmployeeID, change.LeaveType, fromYear)
	if f.carryRuns[runKey] {
		return false, nil
	}
	if _, ok := f.balances[balanceKey(change.EmployeeID, change.LeaveType, change.Year)]; !ok {
		return false, ErrBalanceNotFound
	}
	f.carryRuns[runKey] = true
	f.applyChange(change)
	return true, nil
}

func (f *fakeStore) applyChange(change Change) {
	b := f.balances[balanceKey(change.EmployeeID, change.LeaveType, change.Year)]
	b.TotalAllocated += change.AllocatedDelta
	b.Used += change.UsedDelta
	b.Pending += change.PendingDelta
	b.CarriedForward += change.CarriedForwardDelta
	b.Remaining = b.TotalAllocated + b.CarriedForward - b.Used - b.Pending
	b.LastUpdated = time.Now()
	f.appendEntry(b.ID, change.Entry)
}

func (f *fakeStore) appendEntry(balanceID string, entry Entry) {
	entry.ID = f.newID()
	entry.BalanceID = balanceID
	entry.CreatedAt = time.Now()
	f.entries[balanceID] = append(f.entries[balanceID], entry)
}

func (f *fakeStore) ActivePolicies(_ context.Context) ([]Policy, error) {
	var out []Policy
	for _, p := range f.policies {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPolicies(_ context.Context) ([]Policy, error) {
	return f.policies, nil
}

func (f *fakeStore) CreatePolicy(_ context.Context, policy Policy) (string, error) {
	for _, p := range f.policies {
		if p.LeaveType == policy.LeaveType {
			return "", ErrPolicyExists
		}
	}
	policy.ID = f.newID()
	f.policies = append(f.policies, policy)
	return policy.ID, nil
}

func (f *fakeStore) UpdatePolicy(_ context.Context, policy Policy) error {
	for i, p := range f.policies {
		if p.ID == policy.ID {
			f.policies[i] = policy
			return nil
		}
	}
	return ErrPolicyNotFound
}

func (f *fakeStore) CreateRequest(_ context.Context, req *Request) (string, error) {
	id := f.newID()
	copied := *req
	copied.ID = id
	copied.Workflow = append([]WorkflowStep(nil), req.Workflow...)
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	f.requests[id] = &copied
	return id, nil
}

func (f *fakeStore) RequestByID(_ context.Context, id string) (*Request, error) {
	req, ok := f.requests[id]
	if !ok || !req.IsActive {
		return nil, nil
	}
	copied := *req
	copied.Workflow = append([]WorkflowStep(nil), req.Workflow...)
	return &copied, nil
}

func (f *fakeStore) ListRequests(_ context.Context, filter RequestFilter) ([]Request, int, error) {
	var out []Request
	for _, req := range f.requests {
		if !req.IsActive {
			continue
		}
		if filter.EmployeeID != "" && req.EmployeeID != filter.EmployeeID {
			continue
		}
		if len(filter.EmployeeIDs) > 0 {
			match := false
			for _, id := range filter.EmployeeIDs {
				if req.EmployeeID == id {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if filter.Department != "" && req.Department != filter.Department {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, *req)
	}
	return out, len(out), nil
}

func (f *fakeStore) UpdateRequestStatus(_ context.Context, id, status string) error {
	req, ok := f.requests[id]
	if !ok || !req.IsActive {
		return ErrRequestNotFound
	}
	req.Status = status
	req.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) DecideWorkflowStep(_ context.Context, requestID string, order int, approverID, status, comments string, at time.Time) error {
	req, ok := f.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	for i := range req.Workflow {
		if req.Workflow[i].Order == order {
			req.Workflow[i].ApproverID = approverID
			req.Workflow[i].Status = status
			req.Workflow[i].Comments = comments
			req.Workflow[i].ActionDate = &at
			return nil
		}
	}
	return ErrRequestNotFound
}

func (f *fakeStore) SoftDeleteRequest(_ context.Context, id string) error {
	req, ok := f.requests[id]
	if !ok || !req.IsActive {
		return ErrRequestNotFound
	}
	req.IsActive = false
	return nil
}

// fakeDirectory resolves departments and reporting lines from fixed maps.
type fakeDirectory struct {
	departments map[string]string
	managers    map[string][]string
}

func (f *fakeDirectory) EmployeeDepartment(_ context.Context, employeeID string) (string, error) {
	return f.departments[employeeID], nil
}

func (f *fakeDirectory) IsManagerOf(_ context.Context, managerEmployeeID, employeeID string) (bool, error) {
	for _, id := range f.managers[managerEmployeeID] {
		if id == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDirectory) DirectReports(_ context.Context, managerEmployeeID string) ([]string, error) {
	return f.managers[managerEmployeeID], nil
}
