package leave

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const policyColumns = "id, leave_type, default_allocation, max_consecutive_days, min_advance_notice_days, max_advance_booking_days, allow_carry_forward, carry_forward_limit, documents_required, manager_max_days, dept_head_max_days, is_active"

func (s *Store) ActivePolicies(ctx context.Context) ([]Policy, error) {
	return s.queryPolicies(ctx, `
    SELECT `+policyColumns+`
    FROM leave_policies
    WHERE is_active
    ORDER BY leave_type
  `)
}

func (s *Store) ListPolicies(ctx context.Context) ([]Policy, error) {
	return s.queryPolicies(ctx, `
    SELECT `+policyColumns+`
    FROM leave_policies
    ORDER BY leave_type
  `)
}

func (s *Store) queryPolicies(ctx context.Context, query string) ([]Policy, error) {
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.ID, &p.LeaveType, &p.DefaultAllocation, &p.MaxConsecutiveDays, &p.MinAdvanceNoticeDays, &p.MaxAdvanceBookingDays, &p.AllowCarryForward, &p.CarryForwardLimit, &p.DocumentsRequired, &p.ManagerMaxDays, &p.DeptHeadMaxDays, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreatePolicy(ctx context.Context, policy Policy) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_policies (leave_type, default_allocation, max_consecutive_days, min_advance_notice_days, max_advance_booking_days, allow_carry_forward, carry_forward_limit, documents_required, manager_max_days, dept_head_max_days, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    RETURNING id
  `, policy.LeaveType, policy.DefaultAllocation, policy.MaxConsecutiveDays, policy.MinAdvanceNoticeDays, policy.MaxAdvanceBookingDays, policy.AllowCarryForward, policy.CarryForwardLimit, policy.DocumentsRequired, policy.ManagerMaxDays, policy.DeptHeadMaxDays, policy.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrPolicyExists
		}
		return "", err
	}
	return id, nil
}

func (s *Store) UpdatePolicy(ctx context.Context, policy Policy) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_policies
    SET default_allocation = $1,
        max_consecutive_days = $2,
        min_advance_notice_days = $3,
        max_advance_booking_days = $4,
        allow_carry_forward = $5,
        carry_forward_limit = $6,
        documents_required = $7,
        manager_max_days = $8,
        dept_head_max_days = $9,
        is_active = $10
    WHERE id = $11
  `, policy.DefaultAllocation, policy.MaxConsecutiveDays, policy.MinAdvanceNoticeDays, policy.MaxAdvanceBookingDays, policy.AllowCarryForward, policy.CarryForwardLimit, policy.DocumentsRequired, policy.ManagerMaxDays, policy.DeptHeadMaxDays, policy.IsActive, policy.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPolicyNotFound
	}
	return nil
}
