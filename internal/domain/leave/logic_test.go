package leave

import (
	"testing"
	"time"

	"leavehub/internal/domain/auth"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateDays(t *testing.T) {
	cases := []struct {
		name    string
		start   time.Time
		end     time.Time
		want    int
		wantErr bool
	}{
		{"single day", day(2025, 6, 2), day(2025, 6, 2), 1, false},
		{"working week", day(2025, 6, 2), day(2025, 6, 6), 5, false},
		{"across months", day(2025, 6, 28), day(2025, 7, 2), 5, false},
		{"end before start", day(2025, 6, 6), day(2025, 6, 2), 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CalculateDays(tc.start, tc.end)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d days, got %d", tc.want, got)
			}
		})
	}
}

func TestBuildWorkflow(t *testing.T) {
	policy := Policy{LeaveType: "Vacation", ManagerMaxDays: 3, DeptHeadMaxDays: 7}

	steps := BuildWorkflow(policy, 2)
	if len(steps) != 1 || steps[0].ApproverRole != auth.RoleManager {
		t.Fatalf("short request should only need the manager: %+v", steps)
	}

	steps = BuildWorkflow(policy, 5)
	if len(steps) != 2 || steps[1].ApproverRole != auth.RoleDeptHead {
		t.Fatalf("medium request should escalate to dept head: %+v", steps)
	}

	steps = BuildWorkflow(policy, 10)
	if len(steps) != 3 || steps[2].ApproverRole != auth.RoleHR {
		t.Fatalf("long request should escalate to HR: %+v", steps)
	}
	for i, step := range steps {
		if step.Order != i+1 {
			t.Fatalf("step order wrong: %+v", steps)
		}
		if step.Status != StatusPending {
			t.Fatalf("new steps must start pending: %+v", steps)
		}
	}
}

func TestBuildWorkflowNoLimits(t *testing.T) {
	steps := BuildWorkflow(Policy{LeaveType: "Sick Leave"}, 30)
	if len(steps) != 1 || steps[0].ApproverRole != auth.RoleManager {
		t.Fatalf("without limits only the manager approves: %+v", steps)
	}
}

func TestIsExempt(t *testing.T) {
	if !IsExempt("Sick Leave") || !IsExempt("Maternity Leave") {
		t.Fatal("sick and maternity leave are quota-exempt")
	}
	if IsExempt("Vacation") || IsExempt(QuotaLeaveType) {
		t.Fatal("only the configured types are exempt")
	}
}
