package leave

import "time"

// Balance is one employee's account for a single leave type and year.
// Remaining is stored, not derived at read time, and is recomputed on every
// mutation so that remaining = totalAllocated + carriedForward - used - pending
// holds after each write.
type Balance struct {
	ID             string    `json:"id"`
	EmployeeID     string    `json:"employeeId"`
	LeaveType      string    `json:"leaveType"`
	Year           int       `json:"year"`
	TotalAllocated int       `json:"totalAllocated"`
	Used           int       `json:"used"`
	Pending        int       `json:"pending"`
	CarriedForward int       `json:"carriedForward"`
	Remaining      int       `json:"remaining"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// Entry is one line of a balance's append-only transaction log.
type Entry struct {
	ID             string    `json:"id"`
	BalanceID      string    `json:"balanceId,omitempty"`
	Type           EntryType `json:"type"`
	Amount         int       `json:"amount"`
	Description    string    `json:"description"`
	LeaveRequestID string    `json:"leaveRequestId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Policy struct {
	ID                    string `json:"id"`
	LeaveType             string `json:"leaveType"`
	DefaultAllocation     int    `json:"defaultAllocation"`
	MaxConsecutiveDays    int    `json:"maxConsecutiveDays"`
	MinAdvanceNoticeDays  int    `json:"minAdvanceNoticeDays"`
	MaxAdvanceBookingDays int    `json:"maxAdvanceBookingDays"`
	AllowCarryForward     bool   `json:"allowCarryForward"`
	CarryForwardLimit     int    `json:"carryForwardLimit"`
	DocumentsRequired     bool   `json:"documentsRequired"`
	ManagerMaxDays        int    `json:"managerMaxDays"`
	DeptHeadMaxDays       int    `json:"deptHeadMaxDays"`
	IsActive              bool   `json:"isActive"`
}

type Request struct {
	ID         string         `json:"id"`
	EmployeeID string         `json:"employeeId"`
	LeaveType  string         `json:"leaveType"`
	StartDate  time.Time      `json:"startDate"`
	EndDate    time.Time      `json:"endDate"`
	TotalDays  int            `json:"totalDays"`
	Reason     string         `json:"reason"`
	Priority   string         `json:"priority"`
	Status     string         `json:"status"`
	Department string         `json:"department"`
	Workflow   []WorkflowStep `json:"approvalWorkflow,omitempty"`
	IsActive   bool           `json:"isActive"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// WorkflowStep is one stage of a request's ordered approval chain.
type WorkflowStep struct {
	ApproverID   string     `json:"approverId,omitempty"`
	ApproverRole string     `json:"approverRole"`
	Status       string     `json:"status"`
	Order        int        `json:"order"`
	Comments     string     `json:"comments,omitempty"`
	ActionDate   *time.Time `json:"actionDate,omitempty"`
}

// AvailabilityResult answers "can this employee take these days".
// Insufficient balance is reported here, never as an error.
type AvailabilityResult struct {
	HasBalance        bool   `json:"hasBalance"`
	Available         int    `json:"available"`
	Required          int    `json:"required"`
	NoPolicy          bool   `json:"noPolicy,omitempty"`
	Message           string `json:"message"`
	SpecificAvailable *int   `json:"specificAvailable,omitempty"`
	QuotaAvailable    *int   `json:"quotaAvailable,omitempty"`
}
