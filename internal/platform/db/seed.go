package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leavehub/internal/domain/auth"
	"leavehub/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}

	roleIDs, err := ensureRoles(ctx, pool)
	if err != nil {
		return err
	}

	if err := ensureRolePermissions(ctx, pool, roleIDs); err != nil {
		return err
	}

	if err := ensureDefaultPolicies(ctx, pool); err != nil {
		return err
	}

	if cfg.SeedAdminEmail != "" {
		if err := ensureAdminUser(ctx, pool, roleIDs[auth.RoleHR], cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return err
		}
	}

	return nil
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range auth.DefaultPermissions {
		if _, err := pool.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm); err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	roleIDs := make(map[string]string, len(auth.DefaultRoles))
	for _, role := range auth.DefaultRoles {
		var id string
		err := pool.QueryRow(ctx, "SELECT id FROM roles WHERE name = $1", role).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			err = pool.QueryRow(ctx, "INSERT INTO roles (name) VALUES ($1) RETURNING id", role).Scan(&id)
		}
		if err != nil {
			return nil, err
		}
		roleIDs[role] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool, roleIDs map[string]string) error {
	for role, perms := range auth.RolePermissions {
		roleID, ok := roleIDs[role]
		if !ok {
			continue
		}
		for _, perm := range perms {
			if _, err := pool.Exec(ctx, `
        INSERT INTO role_permissions (role_id, permission_id)
        SELECT $1, id FROM permissions WHERE key = $2
        ON CONFLICT DO NOTHING
      `, roleID, perm); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureDefaultPolicies installs a starter policy set so lazy balance
// initialization has something to work from on a fresh database.
func ensureDefaultPolicies(ctx context.Context, pool *pgxpool.Pool) error {
	defaults := []struct {
		leaveType         string
		allocation        int
		maxConsecutive    int
		minNotice         int
		maxBooking        int
		allowCarryForward bool
		carryLimit        int
		documentsRequired bool
		managerMax        int
		deptHeadMax       int
	}{
		{"Vacation", 12, 10, 3, 180, true, 5, false, 3, 7},
		{"Casual Leave", 6, 3, 1, 90, false, 0, false, 3, 7},
		{"Sick Leave", 10, 0, 0, 0, false, 0, true, 3, 7},
		{"Maternity Leave", 90, 0, 14, 270, false, 0, true, 0, 0},
	}

	for _, policy := range defaults {
		if _, err := pool.Exec(ctx, `
      INSERT INTO leave_policies (leave_type, default_allocation, max_consecutive_days, min_advance_notice_days, max_advance_booking_days, allow_carry_forward, carry_forward_limit, documents_required, manager_max_days, dept_head_max_days, is_active)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,true)
      ON CONFLICT (leave_type) DO NOTHING
    `, policy.leaveType, policy.allocation, policy.maxConsecutive, policy.minNotice, policy.maxBooking, policy.allowCarryForward, policy.carryLimit, policy.documentsRequired, policy.managerMax, policy.deptHeadMax); err != nil {
			return err
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, roleID, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	var existing string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	var userID string
	if err := pool.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, role_id, status)
    VALUES ($1,$2,$3,'active')
    RETURNING id
  `, email, hash, roleID).Scan(&userID); err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
    INSERT INTO employees (user_id, first_name, last_name, email, department, start_date, status)
    VALUES ($1,'HR','Administrator',$2,'Human Resources', now(), 'active')
  `, userID, email)
	return err
}
