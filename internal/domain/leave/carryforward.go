package leave

import (
	"context"
	"fmt"
)

type CarryForwardSummary struct {
	BalancesExamined int `json:"balancesExamined"`
	BalancesCarried  int `json:"balancesCarried"`
	DaysCarried      int `json:"daysCarried"`
}

// ApplyCarryForward rolls unused days from fromYear into the next year for
// every balance whose policy allows it, capped by the policy's carry-forward
// limit. The quota bucket never carries; the statutory cap resets each year.
// Runs are recorded per (employee, leaveType, fromYear), so repeat invocations
// skip balances already rolled over.
func (l *Ledger) ApplyCarryForward(ctx context.Context, fromYear int) (CarryForwardSummary, error) {
	var summary CarryForwardSummary

	policies, err := l.Store.ActivePolicies(ctx)
	if err != nil {
		return summary, err
	}
	byType := make(map[string]Policy, len(policies))
	for _, policy := range policies {
		byType[policy.LeaveType] = policy
	}

	balances, err := l.Store.BalancesForYear(ctx, fromYear)
	if err != nil {
		return summary, err
	}

	for _, balance := range balances {
		summary.BalancesExamined++
		if balance.LeaveType == QuotaLeaveType {
			continue
		}
		policy, ok := byType[balance.LeaveType]
		if !ok || !policy.AllowCarryForward {
			continue
		}
		carry := min(balance.Remaining, policy.CarryForwardLimit)
		if carry <= 0 {
			continue
		}

		if _, err := l.ensureBalance(ctx, balance.EmployeeID, balance.LeaveType, fromYear+1); err != nil {
			return summary, err
		}

		change := Change{
			EmployeeID:          balance.EmployeeID,
			LeaveType:           balance.LeaveType,
			Year:                fromYear + 1,
			CarriedForwardDelta: carry,
			Entry: Entry{
				Type:        EntryAllocated,
				Amount:      carry,
				Description: fmt.Sprintf("Carried forward from %d", fromYear),
			},
		}
		applied, err := l.Store.ApplyCarryForward(ctx, change, fromYear)
		if err != nil {
			return summary, err
		}
		if applied {
			summary.BalancesCarried++
			summary.DaysCarried += carry
		}
	}

	return summary, nil
}
