package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
)

// txStore runs every query inside one immediate transaction, so reads are already
// serialized against other writers and the Lock* reads need no extra clause.
type txStore struct {
	tx *sql.Tx
}

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", leave.ErrNotFound, kind, id)
	}
	return mapError(err)
}

// Leave types

const leaveTypeColumns = `id, name, category, description, color_code, default_balance,
	allow_carry_forward, max_carry_forward, allow_half_day, allow_hourly, max_consecutive_days,
	requires_approval, can_exceed_balance, requires_documentation, active, created_at, updated_at`

func scanLeaveType(row rowScanner) (leave.LeaveType, error) {
	var (
		lt               leave.LeaveType
		created, updated string
	)
	err := row.Scan(&lt.ID, &lt.Name, &lt.Category, &lt.Description, &lt.ColorCode, &lt.DefaultBalance,
		&lt.AllowCarryForward, &lt.MaxCarryForward, &lt.AllowHalfDay, &lt.AllowHourly, &lt.MaxConsecutiveDays,
		&lt.RequiresApproval, &lt.CanExceedBalance, &lt.RequiresDocumentation, &lt.Active, &created, &updated)
	if err != nil {
		return lt, err
	}
	if lt.CreatedAt, err = parseTimestamp(created); err != nil {
		return lt, err
	}
	lt.UpdatedAt, err = parseTimestamp(updated)
	return lt, err
}

func (s *txStore) LeaveType(ctx context.Context, id string) (leave.LeaveType, error) {
	row := s.tx.QueryRowContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE id = ?`, id)
	lt, err := scanLeaveType(row)
	if err != nil {
		return lt, notFound(err, "leave type", id)
	}
	return lt, nil
}

func (s *txStore) LeaveTypeByName(ctx context.Context, name string) (leave.LeaveType, error) {
	row := s.tx.QueryRowContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE name = ?`, name)
	lt, err := scanLeaveType(row)
	if err != nil {
		return lt, notFound(err, "leave type", name)
	}
	return lt, nil
}

func (s *txStore) LeaveTypes(ctx context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	query := `SELECT ` + leaveTypeColumns + ` FROM leave_types`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	rows, err := s.tx.QueryContext(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []leave.LeaveType
	for rows.Next() {
		lt, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

func (s *txStore) InsertLeaveType(ctx context.Context, lt leave.LeaveType) error {
	_, err := s.tx.ExecContext(ctx, `INSERT INTO leave_types (`+leaveTypeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lt.ID, lt.Name, lt.Category, lt.Description, lt.ColorCode, lt.DefaultBalance,
		lt.AllowCarryForward, lt.MaxCarryForward, lt.AllowHalfDay, lt.AllowHourly, lt.MaxConsecutiveDays,
		lt.RequiresApproval, lt.CanExceedBalance, lt.RequiresDocumentation, lt.Active,
		formatTimestamp(lt.CreatedAt), formatTimestamp(lt.UpdatedAt))
	return mapError(err)
}

func (s *txStore) UpdateLeaveType(ctx context.Context, lt leave.LeaveType) error {
	res, err := s.tx.ExecContext(ctx, `UPDATE leave_types SET name = ?, category = ?, description = ?,
		color_code = ?, default_balance = ?, allow_carry_forward = ?, max_carry_forward = ?,
		allow_half_day = ?, allow_hourly = ?, max_consecutive_days = ?, requires_approval = ?,
		can_exceed_balance = ?, requires_documentation = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		lt.Name, lt.Category, lt.Description, lt.ColorCode, lt.DefaultBalance, lt.AllowCarryForward,
		lt.MaxCarryForward, lt.AllowHalfDay, lt.AllowHourly, lt.MaxConsecutiveDays, lt.RequiresApproval,
		lt.CanExceedBalance, lt.RequiresDocumentation, lt.Active, formatTimestamp(lt.UpdatedAt), lt.ID)
	return affected(res, err, "leave type", lt.ID)
}

func affected(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", leave.ErrNotFound, kind, id)
	}
	return nil
}

// Holidays

const holidayColumns = `id, holiday_date, name, description, recurring, active, created_at`

func scanHoliday(row rowScanner) (leave.Holiday, error) {
	var (
		h             leave.Holiday
		date, created string
	)
	err := row.Scan(&h.ID, &date, &h.Name, &h.Description, &h.Recurring, &h.Active, &created)
	if err != nil {
		return h, err
	}
	if h.Date, err = parseDate(date); err != nil {
		return h, err
	}
	h.CreatedAt, err = parseTimestamp(created)
	return h, err
}

func (s *txStore) Holiday(ctx context.Context, id string) (leave.Holiday, error) {
	row := s.tx.QueryRowContext(ctx, `SELECT `+holidayColumns+` FROM holidays WHERE id = ?`, id)
	h, err := scanHoliday(row)
	if err != nil {
		return h, notFound(err, "holiday", id)
	}
	return h, nil
}

func (s *txStore) Holidays(ctx context.Context, f leave.HolidayFilter) ([]leave.Holiday, error) {
	var (
		where []string
		args  []any
		span  []string
	)
	if f.ActiveOnly {
		where = append(where, "active = 1")
	}
	if !f.From.IsZero() {
		span = append(span, "holiday_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		span = append(span, "holiday_date <= ?")
		args = append(args, formatDate(f.To))
	}
	if len(span) > 0 {
		cond := strings.Join(span, " AND ")
		if f.IncludeRecurring {
			cond = "((" + cond + ") OR recurring = 1)"
		}
		where = append(where, cond)
	}

	query := `SELECT ` + holidayColumns + ` FROM holidays`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := s.tx.QueryContext(ctx, query+` ORDER BY holiday_date`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []leave.Holiday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *txStore) InsertHoliday(ctx context.Context, h leave.Holiday) error {
	_, err := s.tx.ExecContext(ctx, `INSERT INTO holidays (`+holidayColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, formatDate(h.Date), h.Name, h.Description, h.Recurring, h.Active, formatTimestamp(h.CreatedAt))
	return mapError(err)
}

func (s *txStore) UpdateHoliday(ctx context.Context, h leave.Holiday) error {
	res, err := s.tx.ExecContext(ctx, `UPDATE holidays SET holiday_date = ?, name = ?, description = ?,
		recurring = ?, active = ? WHERE id = ?`,
		formatDate(h.Date), h.Name, h.Description, h.Recurring, h.Active, h.ID)
	return affected(res, err, "holiday", h.ID)
}

// People

const (
	userColumns     = `id, email, password_hash, role, active, created_at`
	employeeColumns = `id, user_id, employee_number, first_name, last_name, email, department,
	designation, joining_date, manager_id, created_at`
)

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u       auth.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &created); err != nil {
		return u, err
	}
	var err error
	u.CreatedAt, err = parseTimestamp(created)
	return u, err
}

func scanEmployee(row rowScanner) (leave.Employee, error) {
	var (
		e                leave.Employee
		joining, created string
		manager          sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &e.EmployeeNumber, &e.FirstName, &e.LastName, &e.Email,
		&e.Department, &e.Designation, &joining, &manager, &created)
	if err != nil {
		return e, err
	}
	e.ManagerID = manager.String
	if e.JoiningDate, err = parseDate(joining); err != nil {
		return e, err
	}
	e.CreatedAt, err = parseTimestamp(created)
	return e, err
}

func (s *txStore) User(ctx context.Context, id string) (auth.User, error) {
	u, err := scanUser(s.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return u, notFound(err, "user", id)
	}
	return u, nil
}

func (s *txStore) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	u, err := scanUser(s.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return u, notFound(err, "user", email)
	}
	return u, nil
}

func (s *txStore) UsersByRole(ctx context.Context, roles ...auth.Role) ([]auth.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roles)), ", ")
	args := make([]any, len(roles))
	for i, r := range roles {
		args[i] = r
	}
	rows, err := s.tx.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role IN (`+placeholders+`) ORDER BY email`, args...)
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
	_, err := s.tx.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Active, formatTimestamp(u.CreatedAt))
	return mapError(err)
}

func (s *txStore) Employee(ctx context.Context, id string) (leave.Employee, error) {
	e, err := scanEmployee(s.tx.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id))
	if err != nil {
		return e, notFound(err, "employee", id)
	}
	return e, nil
}

// LockEmployee is a plain read: write transactions begin immediate and already exclude each other.
func (s *txStore) LockEmployee(ctx context.Context, id string) (leave.Employee, error) {
	return s.Employee(ctx, id)
}

func (s *txStore) EmployeeByUserID(ctx context.Context, userID string) (leave.Employee, error) {
	e, err := scanEmployee(s.tx.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE user_id = ?`, userID))
	if err != nil {
		return e, notFound(err, "employee for user", userID)
	}
	return e, nil
}

func (s *txStore) Employees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY employee_number`)
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
	_, err := s.tx.ExecContext(ctx, `INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.EmployeeNumber, e.FirstName, e.LastName, e.Email, e.Department, e.Designation,
		formatDate(e.JoiningDate), nullString(e.ManagerID), formatTimestamp(e.CreatedAt))
	return mapError(err)
}

// Balances

const balanceColumns = `id, employee_id, leave_type_id, year, allocated_days, used_days, pending_days,
	carried_forward_days, available_balance, created_at, updated_at`

func scanBalance(row rowScanner) (leave.Balance, error) {
	var (
		b                leave.Balance
		created, updated string
	)
	err := row.Scan(&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.Year, &b.AllocatedDays, &b.UsedDays,
		&b.PendingDays, &b.CarriedForwardDays, &b.AvailableBalance, &created, &updated)
	if err != nil {
		return b, err
	}
	if b.CreatedAt, err = parseTimestamp(created); err != nil {
		return b, err
	}
	b.UpdatedAt, err = parseTimestamp(updated)
	return b, err
}

func (s *txStore) Balance(ctx context.Context, key leave.BalanceKey) (leave.Balance, error) {
	row := s.tx.QueryRowContext(ctx, `SELECT `+balanceColumns+` FROM leave_balances
		WHERE employee_id = ? AND leave_type_id = ? AND year = ?`, key.EmployeeID, key.LeaveTypeID, key.Year)
	b, err := scanBalance(row)
	if err != nil {
		return b, notFound(err, "leave balance", fmt.Sprintf("%s/%s/%d", key.EmployeeID, key.LeaveTypeID, key.Year))
	}
	return b, nil
}

func (s *txStore) LockBalance(ctx context.Context, key leave.BalanceKey) (leave.Balance, error) {
	return s.Balance(ctx, key)
}

func (s *txStore) Balances(ctx context.Context, f leave.BalanceFilter) ([]leave.Balance, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	query := `SELECT ` + balanceColumns + ` FROM leave_balances`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := s.tx.QueryContext(ctx, query+` ORDER BY employee_id, year, leave_type_id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []leave.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *txStore) InsertBalance(ctx context.Context, b leave.Balance) error {
	_, err := s.tx.ExecContext(ctx, `INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.EmployeeID, b.LeaveTypeID, b.Year, b.AllocatedDays, b.UsedDays, b.PendingDays,
		b.CarriedForwardDays, b.AvailableBalance, formatTimestamp(b.CreatedAt), formatTimestamp(b.UpdatedAt))
	return mapError(err)
}

func (s *txStore) UpdateBalance(ctx context.Context, b leave.Balance) error {
	res, err := s.tx.ExecContext(ctx, `UPDATE leave_balances SET allocated_days = ?, used_days = ?,
		pending_days = ?, carried_forward_days = ?, available_balance = ?, updated_at = ?
		WHERE id = ?`,
		b.AllocatedDays, b.UsedDays, b.PendingDays, b.CarriedForwardDays, b.AvailableBalance,
		formatTimestamp(b.UpdatedAt), b.ID)
	return affected(res, err, "leave balance", b.ID)
}

// Requests

const requestColumns = `id, employee_id, leave_type_id, start_date, end_date, duration_type, start_half,
	hours, number_of_days, reason, status, approved_by, approved_at, rejection_reason, medical_proof,
	documentation, created_at, updated_at`

func scanRequest(row rowScanner) (leave.LeaveRequest, error) {
	var (
		r                            leave.LeaveRequest
		start, end, created, updated string
		half, approvedBy, approvedAt sql.NullString
		hours                        decimal.NullDecimal
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &r.LeaveTypeID, &start, &end, &r.DurationType, &half,
		&hours, &r.NumberOfDays, &r.Reason, &r.Status, &approvedBy, &approvedAt, &r.RejectionReason,
		&r.MedicalProof, &r.Documentation, &created, &updated)
	if err != nil {
		return r, err
	}
	r.StartHalf = leave.Half(half.String)
	r.Hours = hours
	r.ApprovedBy = approvedBy.String
	if r.StartDate, err = parseDate(start); err != nil {
		return r, err
	}
	if r.EndDate, err = parseDate(end); err != nil {
		return r, err
	}
	if approvedAt.Valid {
		at, err := parseTimestamp(approvedAt.String)
		if err != nil {
			return r, err
		}
		r.ApprovedAt = &at
	}
	if r.CreatedAt, err = parseTimestamp(created); err != nil {
		return r, err
	}
	r.UpdatedAt, err = parseTimestamp(updated)
	return r, err
}

func (s *txStore) Request(ctx context.Context, id string) (leave.LeaveRequest, error) {
	r, err := scanRequest(s.tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id))
	if err != nil {
		return r, notFound(err, "leave request", id)
	}
	return r, nil
}

func (s *txStore) LockRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	return s.Request(ctx, id)
}

func (s *txStore) Requests(ctx context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.ExcludeID != "" {
		where = append(where, "id <> ?")
		args = append(args, f.ExcludeID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(f.Statuses)), ", ")+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if !f.From.IsZero() {
		where = append(where, "end_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "start_date <= ?")
		args = append(args, formatDate(f.To))
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, f.Offset)
	}

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *txStore) InsertRequest(ctx context.Context, r leave.LeaveRequest) error {
	_, err := s.tx.ExecContext(ctx, `INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, r.LeaveTypeID, formatDate(r.StartDate), formatDate(r.EndDate), r.DurationType,
		nullString(string(r.StartHalf)), r.Hours, r.NumberOfDays, r.Reason, r.Status,
		nullString(r.ApprovedBy), approvedAt(r), r.RejectionReason, r.MedicalProof, r.Documentation,
		formatTimestamp(r.CreatedAt), formatTimestamp(r.UpdatedAt))
	return mapError(err)
}

func (s *txStore) UpdateRequest(ctx context.Context, r leave.LeaveRequest) error {
	res, err := s.tx.ExecContext(ctx, `UPDATE leave_requests SET leave_type_id = ?, start_date = ?,
		end_date = ?, duration_type = ?, start_half = ?, hours = ?, number_of_days = ?, reason = ?,
		status = ?, approved_by = ?, approved_at = ?, rejection_reason = ?, medical_proof = ?,
		documentation = ?, updated_at = ?
		WHERE id = ?`,
		r.LeaveTypeID, formatDate(r.StartDate), formatDate(r.EndDate), r.DurationType,
		nullString(string(r.StartHalf)), r.Hours, r.NumberOfDays, r.Reason, r.Status,
		nullString(r.ApprovedBy), approvedAt(r), r.RejectionReason, r.MedicalProof, r.Documentation,
		formatTimestamp(r.UpdatedAt), r.ID)
	return affected(res, err, "leave request", r.ID)
}

func approvedAt(r leave.LeaveRequest) sql.NullString {
	if r.ApprovedAt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*r.ApprovedAt), Valid: true}
}

// Audit

func (s *txStore) InsertAudit(ctx context.Context, rec leave.AuditRecord) error {
	_, err := s.tx.ExecContext(ctx, `INSERT INTO leave_audit
		(id, request_id, action, actor_id, old_status, new_status, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, rec.Action, rec.ActorID, nullString(string(rec.OldStatus)), rec.NewStatus,
		rec.Comment, formatTimestamp(rec.CreatedAt))
	return mapError(err)
}

func (s *txStore) AuditTrail(ctx context.Context, requestID string) ([]leave.AuditRecord, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT id, request_id, action, actor_id, old_status, new_status,
		comment, created_at FROM leave_audit WHERE request_id = ? ORDER BY created_at DESC, rowid DESC`, requestID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []leave.AuditRecord
	for rows.Next() {
		var (
			rec     leave.AuditRecord
			old     sql.NullString
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Action, &rec.ActorID, &old, &rec.NewStatus,
			&rec.Comment, &created); err != nil {
			return nil, err
		}
		rec.OldStatus = leave.Status(old.String)
		if rec.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
