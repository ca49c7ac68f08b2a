package review

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// ListInScopeEmployees returns active employees minus the cycle's exclusions.
func (s *Store) ListInScopeEmployees(ctx context.Context, tenantID string, excludedDepartments, excludedEmployees []string) ([]EmployeeRef, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, COALESCE(manager_id::text, ''), COALESCE(department_id::text, '')
    FROM employees
    WHERE tenant_id = $1 AND status = 'active'
      AND (department_id IS NULL OR NOT (department_id::text = ANY($2)))
      AND NOT (id::text = ANY($3))
    ORDER BY id
  `, tenantID, stringArray(excludedDepartments), stringArray(excludedEmployees))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEmployees(rows)
}

func (s *Store) DirectReports(ctx context.Context, tenantID, managerEmployeeID string) ([]EmployeeRef, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, COALESCE(manager_id::text, ''), COALESCE(department_id::text, '')
    FROM employees
    WHERE tenant_id = $1 AND manager_id = $2 AND status = 'active'
    ORDER BY id
  `, tenantID, managerEmployeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEmployees(rows)
}

func (s *Store) EmployeeUserID(ctx context.Context, tenantID, employeeID string) (string, error) {
	var userID string
	if err := s.DB.QueryRow(ctx, "SELECT user_id FROM employees WHERE tenant_id = $1 AND id = $2", tenantID, employeeID).Scan(&userID); err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Store) EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error) {
	var employeeID string
	if err := s.DB.QueryRow(ctx, "SELECT id FROM employees WHERE tenant_id = $1 AND user_id = $2", tenantID, userID).Scan(&employeeID); err != nil {
		return "", err
	}
	return employeeID, nil
}

func (s *Store) ManagerIDByEmployeeID(ctx context.Context, tenantID, employeeID string) (string, error) {
	var managerID string
	if err := s.DB.QueryRow(ctx, "SELECT COALESCE(manager_id::text, '') FROM employees WHERE tenant_id = $1 AND id = $2", tenantID, employeeID).Scan(&managerID); err != nil {
		return "", err
	}
	return managerID, nil
}

func (s *Store) UserIDsByRole(ctx context.Context, tenantID, roleName string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE u.tenant_id = $1 AND r.name = $2
  `, tenantID, roleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListCheckinsDueBetween(ctx context.Context, tenantID string, from, to time.Time) ([]Checkin, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, cycle_id, employee_id, manager_id, scheduled_at, reminder_sent
    FROM review_checkins
    WHERE tenant_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3 AND reminder_sent = FALSE
    ORDER BY scheduled_at
  `, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkins []Checkin
	for rows.Next() {
		var c Checkin
		if err := rows.Scan(&c.ID, &c.CycleID, &c.EmployeeID, &c.ManagerID, &c.ScheduledAt, &c.ReminderSent); err != nil {
			return nil, err
		}
		checkins = append(checkins, c)
	}
	return checkins, rows.Err()
}

func (s *Store) MarkCheckinReminded(ctx context.Context, tenantID, checkinID string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE review_checkins SET reminder_sent = TRUE
    WHERE tenant_id = $1 AND id = $2 AND reminder_sent = FALSE
  `, tenantID, checkinID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func stringArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func collectEmployees(rows pgx.Rows) ([]EmployeeRef, error) {
	var employees []EmployeeRef
	for rows.Next() {
		var ref EmployeeRef
		if err := rows.Scan(&ref.EmployeeID, &ref.UserID, &ref.ManagerID, &ref.DepartmentID); err != nil {
			return nil, err
		}
		employees = append(employees, ref)
	}
	return employees, rows.Err()
}
