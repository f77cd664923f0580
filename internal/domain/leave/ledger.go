package leave

import (
	"context"
	"fmt"
	"time"
)

// Ledger maintains per-employee, per-type, per-year balance accounts and is
// the only code path that mutates them. Non-exempt leave draws against both
// its own account and the shared annual quota bucket; the two writes always
// land in one store transaction.
type Ledger struct {
	Store BalanceStore
}

func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{Store: store}
}

func normalizeYear(year int) int {
	if year <= 0 {
		return time.Now().Year()
	}
	return year
}

// ensureBalance returns the balance for (employee, leaveType, year), creating
// it from the active policy set on first reference. It returns nil when the
// type is not the quota bucket and no active policy defines it.
func (l *Ledger) ensureBalance(ctx context.Context, employeeID, leaveType string, year int) (*Balance, error) {
	balance, err := l.Store.Balance(ctx, employeeID, leaveType, year)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		return balance, nil
	}

	allocation := 0
	description := ""
	if leaveType == QuotaLeaveType {
		allocation = AnnualQuotaDays
		description = fmt.Sprintf("Statutory annual quota for %d", year)
	} else {
		policies, err := l.Store.ActivePolicies(ctx)
		if err != nil {
			return nil, err
		}
		found := false
		for _, policy := range policies {
			if policy.LeaveType == leaveType {
				allocation = policy.DefaultAllocation
				found = true
				break
			}
		}
		if !found {
			return nil, nil
		}
		description = fmt.Sprintf("Default %s allocation for %d", leaveType, year)
	}

	created := Balance{
		EmployeeID:     employeeID,
		LeaveType:      leaveType,
		Year:           year,
		TotalAllocated: allocation,
		Remaining:      allocation,
	}
	entry := Entry{Type: EntryAllocated, Amount: allocation, Description: description}
	if _, err := l.Store.CreateBalance(ctx, created, entry); err != nil {
		return nil, err
	}
	// Re-read so the caller sees the stored row whether we created it or lost
	// a race to a concurrent initializer.
	return l.Store.Balance(ctx, employeeID, leaveType, year)
}

// CheckAvailability reports whether the employee can take the requested days.
// It lazily creates missing balance rows as a side effect. Exempt types are
// checked against their own account only and without pending days; all other
// types must clear both their own account and the annual quota bucket.
func (l *Ledger) CheckAvailability(ctx context.Context, employeeID, leaveType string, days, year int) (AvailabilityResult, error) {
	if days <= 0 {
		return AvailabilityResult{}, ErrInvalidDays
	}
	if leaveType == QuotaLeaveType {
		return AvailabilityResult{}, ErrQuotaType
	}
	year = normalizeYear(year)

	specific, err := l.ensureBalance(ctx, employeeID, leaveType, year)
	if err != nil {
		return AvailabilityResult{}, err
	}
	if specific == nil {
		return AvailabilityResult{
			Required: days,
			NoPolicy: true,
			Message:  fmt.Sprintf("No %s balance found and no active policy defines it", leaveType),
		}, nil
	}

	if IsExempt(leaveType) {
		available := specific.TotalAllocated + specific.CarriedForward - specific.Used
		result := AvailabilityResult{Available: available, Required: days}
		if available >= days {
			result.HasBalance = true
			result.Message = fmt.Sprintf("%d day(s) of %s available", available, leaveType)
		} else {
			result.Message = fmt.Sprintf("Insufficient %s balance: %d day(s) available, %d requested", leaveType, available, days)
		}
		return result, nil
	}

	quota, err := l.ensureBalance(ctx, employeeID, QuotaLeaveType, year)
	if err != nil {
		return AvailabilityResult{}, err
	}

	specificAvailable := specific.Remaining
	quotaAvailable := quota.TotalAllocated + quota.CarriedForward - quota.Used
	result := AvailabilityResult{
		Available:         min(specificAvailable, quotaAvailable),
		Required:          days,
		SpecificAvailable: &specificAvailable,
		QuotaAvailable:    &quotaAvailable,
	}
	switch {
	case specificAvailable < days:
		result.Message = fmt.Sprintf("Insufficient %s balance: %d day(s) available, %d requested", leaveType, specificAvailable, days)
	case quotaAvailable < days:
		result.Message = fmt.Sprintf("Annual leave quota exceeded: %d quota day(s) left, %d requested", quotaAvailable, days)
	default:
		result.HasBalance = true
		result.Message = fmt.Sprintf("%d day(s) available", result.Available)
	}
	return result, nil
}

// RecordUsage consumes approved days. For non-exempt types the specific
// account and the quota bucket are debited in a single transaction, each with
// its own log entry referencing the request.
func (l *Ledger) RecordUsage(ctx context.Context, employeeID, leaveType string, days, year int, requestID string) error {
	if days <= 0 {
		return ErrInvalidDays
	}
	if leaveType == QuotaLeaveType {
		return ErrQuotaType
	}
	year = normalizeYear(year)

	specific, err := l.ensureBalance(ctx, employeeID, leaveType, year)
	if err != nil {
		return err
	}
	if specific == nil {
		return ErrBalanceNotFound
	}

	changes := []Change{{
		EmployeeID: employeeID,
		LeaveType:  leaveType,
		Year:       year,
		UsedDelta:  days,
		Entry: Entry{
			Type:           EntryUsed,
			Amount:         days,
			Description:    fmt.Sprintf("%d day(s) of %s taken", days, leaveType),
			LeaveRequestID: requestID,
		},
	}}

	if !IsExempt(leaveType) {
		if _, err := l.ensureBalance(ctx, employeeID, QuotaLeaveType, year); err != nil {
			return err
		}
		changes = append(changes, Change{
			EmployeeID: employeeID,
			LeaveType:  QuotaLeaveType,
			Year:       year,
			UsedDelta:  days,
			Entry: Entry{
				Type:           EntryUsed,
				Amount:         days,
				Description:    fmt.Sprintf("%d day(s) drawn from annual quota", days),
				LeaveRequestID: requestID,
			},
		})
	}

	return l.Store.ApplyChanges(ctx, changes)
}

// ReleaseReserved returns previously reserved pending days, for example when
// a reserving submission flow rejects or cancels a request. The current
// submission flow does not reserve, so this normally has nothing to release.
func (l *Ledger) ReleaseReserved(ctx context.Context, employeeID, leaveType string, days, year int, requestID string) error {
	if days <= 0 {
		return ErrInvalidDays
	}
	if leaveType == QuotaLeaveType {
		return ErrQuotaType
	}
	year = normalizeYear(year)

	specific, err := l.Store.Balance(ctx, employeeID, leaveType, year)
	if err != nil {
		return err
	}
	if specific == nil {
		return ErrBalanceNotFound
	}

	changes := []Change{{
		EmployeeID:   employeeID,
		LeaveType:    leaveType,
		Year:         year,
		PendingDelta: -days,
		Entry: Entry{
			Type:           EntryAdjustment,
			Amount:         days,
			Description:    fmt.Sprintf("Released %d reserved day(s)", days),
			LeaveRequestID: requestID,
		},
	}}

	if !IsExempt(leaveType) {
		quota, err := l.Store.Balance(ctx, employeeID, QuotaLeaveType, year)
		if err != nil {
			return err
		}
		if quota != nil {
			changes = append(changes, Change{
				EmployeeID:   employeeID,
				LeaveType:    QuotaLeaveType,
				Year:         year,
				PendingDelta: -days,
				Entry: Entry{
					Type:           EntryAdjustment,
					Amount:         days,
					Description:    fmt.Sprintf("Released %d reserved quota day(s)", days),
					LeaveRequestID: requestID,
				},
			})
		}
	}

	return l.Store.ApplyChanges(ctx, changes)
}

// AdminAdjust shifts an employee's allocation by a signed number of days.
// Allocations may go negative; there is no lower bound.
func (l *Ledger) AdminAdjust(ctx context.Context, employeeID, leaveType string, adjustmentDays, year int, reason string) (*Balance, error) {
	if adjustmentDays == 0 {
		return nil, ErrInvalidDays
	}
	year = normalizeYear(year)

	balance, err := l.ensureBalance(ctx, employeeID, leaveType, year)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		// No policy defines the type; the adjustment itself is the grant.
		if _, err := l.Store.CreateBalance(ctx, Balance{
			EmployeeID: employeeID,
			LeaveType:  leaveType,
			Year:       year,
		}, Entry{}); err != nil {
			return nil, err
		}
	}

	change := Change{
		EmployeeID:     employeeID,
		LeaveType:      leaveType,
		Year:           year,
		AllocatedDelta: adjustmentDays,
		Entry: Entry{
			Type:        EntryAdjustment,
			Amount:      adjustmentDays,
			Description: reason,
		},
	}
	if err := l.Store.ApplyChanges(ctx, []Change{change}); err != nil {
		return nil, err
	}
	return l.Store.Balance(ctx, employeeID, leaveType, year)
}

// InitializeEmployeeBalances creates a balance for every active policy plus
// the quota bucket. Existing rows are left untouched, so repeat runs are
// no-ops.
func (l *Ledger) InitializeEmployeeBalances(ctx context.Context, employeeID string, year int) error {
	year = normalizeYear(year)

	policies, err := l.Store.ActivePolicies(ctx)
	if err != nil {
		return err
	}
	for _, policy := range policies {
		if policy.LeaveType == QuotaLeaveType {
			continue
		}
		balance := Balance{
			EmployeeID:     employeeID,
			LeaveType:      policy.LeaveType,
			Year:           year,
			TotalAllocated: policy.DefaultAllocation,
			Remaining:      policy.DefaultAllocation,
		}
		entry := Entry{
			Type:        EntryAllocated,
			Amount:      policy.DefaultAllocation,
			Description: fmt.Sprintf("Default %s allocation for %d", policy.LeaveType, year),
		}
		if _, err := l.Store.CreateBalance(ctx, balance, entry); err != nil {
			return err
		}
	}

	// The quota bucket exists independently of any policy row.
	quota := Balance{
		EmployeeID:     employeeID,
		LeaveType:      QuotaLeaveType,
		Year:           year,
		TotalAllocated: AnnualQuotaDays,
		Remaining:      AnnualQuotaDays,
	}
	entry := Entry{
		Type:        EntryAllocated,
		Amount:      AnnualQuotaDays,
		Description: fmt.Sprintf("Statutory annual quota for %d", year),
	}
	_, err = l.Store.CreateBalance(ctx, quota, entry)
	return err
}
