package leave

import (
	"context"
	"time"
)

// Change mutates one balance row by the given deltas and appends Entry to its
// transaction log. Every change passed to ApplyChanges in a single call is
// applied in one database transaction; the stored remaining is recomputed from
// the updated fields inside the same statement.
type Change struct {
	EmployeeID          string
	LeaveType           string
	Year                int
	AllocatedDelta      int
	UsedDelta           int
	PendingDelta        int
	CarriedForwardDelta int
	Entry               Entry
}

type BalanceStore interface {
	// Balance returns nil without error when no row exists.
	Balance(ctx context.Context, employeeID, leaveType string, year int) (*Balance, error)
	Balances(ctx context.Context, employeeID string, year int) ([]Balance, error)
	BalancesForYear(ctx context.Context, year int) ([]Balance, error)
	Entries(ctx context.Context, balanceID string, limit, offset int) ([]Entry, error)

	// CreateBalance inserts the balance and its opening entry unless a row for
	// (employee, leaveType, year) already exists. Reports whether it inserted.
	// An entry with empty Type is not logged.
	CreateBalance(ctx context.Context, balance Balance, entry Entry) (bool, error)

	// ApplyChanges applies all changes atomically or none of them.
	ApplyChanges(ctx context.Context, changes []Change) error

	// ApplyCarryForward applies the change and records the carry-forward run
	// for (employee, leaveType, fromYear) in the same transaction. A repeat
	// call for the same key is a no-op and reports false.
	ApplyCarryForward(ctx context.Context, change Change, fromYear int) (bool, error)

	ActivePolicies(ctx context.Context) ([]Policy, error)
	ListPolicies(ctx context.Context) ([]Policy, error)
	CreatePolicy(ctx context.Context, policy Policy) (string, error)
	UpdatePolicy(ctx context.Context, policy Policy) error
}

type RequestFilter struct {
	EmployeeID  string
	EmployeeIDs []string
	Department  string
	Status      string
	Limit       int
	Offset      int
}

type RequestStore interface {
	CreateRequest(ctx context.Context, req *Request) (string, error)
	// RequestByID returns nil without error when no active row exists.
	RequestByID(ctx context.Context, id string) (*Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, int, error)
	UpdateRequestStatus(ctx context.Context, id, status string) error
	DecideWorkflowStep(ctx context.Context, requestID string, order int, approverID, status, comments string, at time.Time) error
	SoftDeleteRequest(ctx context.Context, id string) error
}
