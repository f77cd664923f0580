package leave

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

const balanceColumns = "id, employee_id, leave_type, year, total_allocated, used, pending, carried_forward, remaining, last_updated"

func scanBalance(row pgx.Row) (*Balance, error) {
	var b Balance
	err := row.Scan(&b.ID, &b.EmployeeID, &b.LeaveType, &b.Year, &b.TotalAllocated, &b.Used, &b.Pending, &b.CarriedForward, &b.Remaining, &b.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) Balance(ctx context.Context, employeeID, leaveType string, year int) (*Balance, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND leave_type = $2 AND year = $3
  `, employeeID, leaveType, year)
	return scanBalance(row)
}

func (s *Store) Balances(ctx context.Context, employeeID string, year int) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND year = $2
    ORDER BY leave_type
  `, employeeID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBalances(rows)
}

func (s *Store) BalancesForYear(ctx context.Context, year int) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE year = $1
    ORDER BY employee_id, leave_type
  `, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBalances(rows)
}

func collectBalances(rows pgx.Rows) ([]Balance, error) {
	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ID, &b.EmployeeID, &b.LeaveType, &b.Year, &b.TotalAllocated, &b.Used, &b.Pending, &b.CarriedForward, &b.Remaining, &b.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) Entries(ctx context.Context, balanceID string, limit, offset int) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, balance_id, entry_type, amount, description, COALESCE(leave_request_id::text, ''), created_at
    FROM leave_balance_entries
    WHERE balance_id = $1
    ORDER BY created_at, id
    LIMIT $2 OFFSET $3
  `, balanceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BalanceID, &e.Type, &e.Amount, &e.Description, &e.LeaveRequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateBalance(ctx context.Context, balance Balance, entry Entry) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer rollback(ctx, tx)

	var id string
	err = tx.QueryRow(ctx, `
    INSERT INTO leave_balances (employee_id, leave_type, year, total_allocated, used, pending, carried_forward, remaining)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (employee_id, leave_type, year) DO NOTHING
    RETURNING id
  `, balance.EmployeeID, balance.LeaveType, balance.Year,
		balance.TotalAllocated, balance.Used, balance.Pending, balance.CarriedForward, balance.Remaining).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Row already existed; nothing to log.
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}

	if entry.Type != "" {
		if err := insertEntry(ctx, tx, id, entry); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func (s *Store) ApplyChanges(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	for _, change := range changes {
		if err := applyChange(ctx, tx, change); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ApplyCarryForward(ctx context.Context, change Change, fromYear int) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer rollback(ctx, tx)

	tag, err := tx.Exec(ctx, `
    INSERT INTO leave_carry_forwards (employee_id, leave_type, from_year)
    VALUES ($1,$2,$3)
    ON CONFLICT (employee_id, leave_type, from_year) DO NOTHING
  `, change.EmployeeID, change.LeaveType, fromYear)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if err := applyChange(ctx, tx, change); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// applyChange increments the balance fields and recomputes the stored
// remaining in a single statement, then appends the log entry.
func applyChange(ctx context.Context, tx pgx.Tx, change Change) error {
	var balanceID string
	err := tx.QueryRow(ctx, `
    UPDATE leave_balances
    SET total_allocated = total_allocated + $1,
        used = used + $2,
        pending = pending + $3,
        carried_forward = carried_forward + $4,
        remaining = (total_allocated + $1) + (carried_forward + $4) - (used + $2) - (pending + $3),
        last_updated = now()
    WHERE employee_id = $5 AND leave_type = $6 AND year = $7
    RETURNING id
  `, change.AllocatedDelta, change.UsedDelta, change.PendingDelta, change.CarriedForwardDelta,
		change.EmployeeID, change.LeaveType, change.Year).Scan(&balanceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBalanceNotFound
		}
		return err
	}
	return insertEntry(ctx, tx, balanceID, change.Entry)
}

func insertEntry(ctx context.Context, tx pgx.Tx, balanceID string, entry Entry) error {
	var requestID any
	if entry.LeaveRequestID != "" {
		requestID = entry.LeaveRequestID
	}
	_, err := tx.Exec(ctx, `
    INSERT INTO leave_balance_entries (balance_id, entry_type, amount, description, leave_request_id)
    VALUES ($1,$2,$3,$4,$5)
  `, balanceID, string(entry.Type), entry.Amount, entry.Description, requestID)
	return err
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Warn("leave store rollback failed", "err", err)
	}
}
