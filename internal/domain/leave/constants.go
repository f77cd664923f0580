package leave

// QuotaLeaveType is the synthetic bucket tracking the statutory annual cap.
// It is not a bookable leave category.
const QuotaLeaveType = "Annual Leave Quota"

// AnnualQuotaDays is the statutory cap on non-exempt leave per employee per year.
const AnnualQuotaDays = 15

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	PriorityNormal = "normal"
	PriorityUrgent = "urgent"
)

// EntryType tags a ledger entry.
type EntryType string

const (
	EntryAllocated  EntryType = "allocated"
	EntryUsed       EntryType = "used"
	EntryAdjustment EntryType = "adjustment"
)

var exemptTypes = map[string]struct{}{
	"Sick Leave":      {},
	"Maternity Leave": {},
}

// IsExempt reports whether a leave type is exempted from the annual quota.
// Exempt types never draw against the quota bucket.
func IsExempt(leaveType string) bool {
	_, ok := exemptTypes[leaveType]
	return ok
}
