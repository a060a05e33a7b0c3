package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
)

const (
	userColumns     = `id, email, password_hash, role, active, created_at`
	employeeColumns = `id, user_id, employee_number, first_name, last_name, email, department,
    designation, joining_date, manager_id, created_at`
)

func scanUser(row pgx.Row) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}

func scanEmployee(row pgx.Row) (leave.Employee, error) {
	var (
		e       leave.Employee
		manager *string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.EmployeeNumber, &e.FirstName, &e.LastName, &e.Email,
		&e.Department, &e.Designation, &e.JoiningDate, &manager, &e.CreatedAt)
	e.ManagerID = deref(manager)
	return e, err
}

func (s *txStore) User(ctx context.Context, id string) (auth.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return u, notFound(err, "user", id)
	}
	return u, nil
}

func (s *txStore) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return u, notFound(err, "user", email)
	}
	return u, nil
}

func (s *txStore) UsersByRole(ctx context.Context, roles ...auth.Role) ([]auth.User, error) {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	rows, err := s.q.Query(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE role = ANY($1)
    ORDER BY email
  `, names)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *txStore) InsertUser(ctx context.Context, u auth.User) error {
	_, err := s.q.Exec(ctx, `
    INSERT INTO users (`+userColumns+`)
    VALUES ($1, $2, $3, $4, $5, $6)
  `, u.ID, u.Email, u.PasswordHash, u.Role, u.Active, u.CreatedAt)
	return mapError(err)
}

func (s *txStore) Employee(ctx context.Context, id string) (leave.Employee, error) {
	e, err := scanEmployee(s.q.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if err != nil {
		return e, notFound(err, "employee", id)
	}
	return e, nil
}

func (s *txStore) LockEmployee(ctx context.Context, id string) (leave.Employee, error) {
	e, err := scanEmployee(s.q.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return e, notFound(err, "employee", id)
	}
	return e, nil
}

func (s *txStore) EmployeeByUserID(ctx context.Context, userID string) (leave.Employee, error) {
	e, err := scanEmployee(s.q.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE user_id = $1`, userID))
	if err != nil {
		return e, notFound(err, "employee for user", userID)
	}
	return e, nil
}

func (s *txStore) Employees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := s.q.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY employee_number`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *txStore) InsertEmployee(ctx context.Context, e leave.Employee) error {
	_, err := s.q.Exec(ctx, `
    INSERT INTO employees (`+employeeColumns+`)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
  `, e.ID, e.UserID, e.EmployeeNumber, e.FirstName, e.LastName, e.Email, e.Department, e.Designation,
		e.JoiningDate, nullable(e.ManagerID), e.CreatedAt)
	return mapError(err)
}
