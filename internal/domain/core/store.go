package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEmployeeNotFound = errors.New("employee not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) EmployeeByUserID(ctx context.Context, userID string) (Employee, error) {
	var emp Employee
	var managerID *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, user_id, first_name, last_name, email, department, manager_id, start_date, status
    FROM employees
    WHERE user_id = $1
  `, userID).Scan(&emp.ID, &emp.UserID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Department, &managerID, &emp.StartDate, &emp.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrEmployeeNotFound
		}
		return Employee{}, err
	}
	if managerID != nil {
		emp.ManagerID = *managerID
	}
	return emp, nil
}

func (s *Store) EmployeeName(ctx context.Context, employeeID string) (string, error) {
	var first, last string
	err := s.DB.QueryRow(ctx, `
    SELECT first_name, last_name FROM employees WHERE id = $1
  `, employeeID).Scan(&first, &last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrEmployeeNotFound
		}
		return "", err
	}
	return first + " " + last, nil
}

func (s *Store) EmployeeDepartment(ctx context.Context, employeeID string) (string, error) {
	var department string
	err := s.DB.QueryRow(ctx, `
    SELECT department FROM employees WHERE id = $1
  `, employeeID).Scan(&department)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrEmployeeNotFound
		}
		return "", err
	}
	return department, nil
}

func (s *Store) IsManagerOf(ctx context.Context, managerEmployeeID, employeeID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM employees WHERE id = $1 AND manager_id = $2
  `, employeeID, managerEmployeeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) DirectReports(ctx context.Context, managerEmployeeID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id FROM employees WHERE manager_id = $1 AND status = 'active'
  `, managerEmployeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) ActiveEmployeeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id FROM employees WHERE status = 'active' ORDER BY last_name, first_name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
