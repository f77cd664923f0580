package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateRequest(ctx context.Context, req *Request) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer rollback(ctx, tx)

	var id string
	if err := tx.QueryRow(ctx, `
    INSERT INTO leave_requests (employee_id, leave_type, start_date, end_date, total_days, reason, priority, status, department)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, req.EmployeeID, req.LeaveType, req.StartDate, req.EndDate, req.TotalDays, req.Reason, req.Priority, req.Status, req.Department).Scan(&id); err != nil {
		return "", err
	}

	for _, step := range req.Workflow {
		if _, err := tx.Exec(ctx, `
      INSERT INTO leave_request_approvals (request_id, approver_role, status, step_order)
      VALUES ($1,$2,$3,$4)
    `, id, step.ApproverRole, step.Status, step.Order); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) RequestByID(ctx context.Context, id string) (*Request, error) {
	var req Request
	err := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, leave_type, start_date, end_date, total_days, reason, priority, status, department, is_active, created_at, updated_at
    FROM leave_requests
    WHERE id = $1 AND is_active
  `, id).Scan(&req.ID, &req.EmployeeID, &req.LeaveType, &req.StartDate, &req.EndDate, &req.TotalDays, &req.Reason, &req.Priority, &req.Status, &req.Department, &req.IsActive, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT COALESCE(approver_id::text, ''), approver_role, status, step_order, COALESCE(comments, ''), action_date
    FROM leave_request_approvals
    WHERE request_id = $1
    ORDER BY step_order
  `, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var step WorkflowStep
		if err := rows.Scan(&step.ApproverID, &step.ApproverRole, &step.Status, &step.Order, &step.Comments, &step.ActionDate); err != nil {
			return nil, err
		}
		req.Workflow = append(req.Workflow, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) ListRequests(ctx context.Context, filter RequestFilter) ([]Request, int, error) {
	where := " WHERE is_active"
	var args []any
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if len(filter.EmployeeIDs) > 0 {
		args = append(args, filter.EmployeeIDs)
		where += fmt.Sprintf(" AND employee_id = ANY($%d::uuid[])", len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		where += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM leave_requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
    SELECT id, employee_id, leave_type, start_date, end_date, total_days, reason, priority, status, department, is_active, created_at, updated_at
    FROM leave_requests` + where + " ORDER BY created_at DESC"
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.EmployeeID, &req.LeaveType, &req.StartDate, &req.EndDate, &req.TotalDays, &req.Reason, &req.Priority, &req.Status, &req.Department, &req.IsActive, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id, status string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_requests SET status = $1, updated_at = now() WHERE id = $2 AND is_active
  `, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *Store) DecideWorkflowStep(ctx context.Context, requestID string, order int, approverID, status, comments string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_request_approvals
    SET approver_id = $1, status = $2, comments = $3, action_date = $4
    WHERE request_id = $5 AND step_order = $6
  `, approverID, status, comments, at, requestID, order)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *Store) SoftDeleteRequest(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_requests SET is_active = false, updated_at = now() WHERE id = $1 AND is_active
  `, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}
