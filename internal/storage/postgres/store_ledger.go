package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"leavedesk/internal/domain/leave"
)

const balanceColumns = `id, employee_id, leave_type_id, year, allocated_days, used_days, pending_days,
    carried_forward_days, available_balance, created_at, updated_at`

func scanBalance(row pgx.Row) (leave.Balance, error) {
	var b leave.Balance
	err := row.Scan(&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.Year, &b.AllocatedDays, &b.UsedDays,
		&b.PendingDays, &b.CarriedForwardDays, &b.AvailableBalance, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func balanceLabel(key leave.BalanceKey) string {
	return fmt.Sprintf("%s/%s/%d", key.EmployeeID, key.LeaveTypeID, key.Year)
}

func (s *txStore) Balance(ctx context.Context, key leave.BalanceKey) (leave.Balance, error) {
	b, err := scanBalance(s.q.QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
  `, key.EmployeeID, key.LeaveTypeID, key.Year))
	if err != nil {
		return b, notFound(err, "leave balance", balanceLabel(key))
	}
	return b, nil
}

func (s *txStore) LockBalance(ctx context.Context, key leave.BalanceKey) (leave.Balance, error) {
	b, err := scanBalance(s.q.QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
    FOR UPDATE
  `, key.EmployeeID, key.LeaveTypeID, key.Year))
	if err != nil {
		return b, notFound(err, "leave balance", balanceLabel(key))
	}
	return b, nil
}

func (s *txStore) Balances(ctx context.Context, f leave.BalanceFilter) ([]leave.Balance, error) {
	rows, err := s.q.Query(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE ($1 = '' OR employee_id::text = $1)
      AND ($2 = 0 OR year = $2)
    ORDER BY employee_id, year, leave_type_id
  `, f.EmployeeID, f.Year)
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
	_, err := s.q.Exec(ctx, `
    INSERT INTO leave_balances (`+balanceColumns+`)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
  `, b.ID, b.EmployeeID, b.LeaveTypeID, b.Year, b.AllocatedDays, b.UsedDays, b.PendingDays,
		b.CarriedForwardDays, b.AvailableBalance, b.CreatedAt, b.UpdatedAt)
	return mapError(err)
}

func (s *txStore) UpdateBalance(ctx context.Context, b leave.Balance) error {
	tag, err := s.q.Exec(ctx, `
    UPDATE leave_balances
    SET allocated_days = $1,
        used_days = $2,
        pending_days = $3,
        carried_forward_days = $4,
        available_balance = $5,
        updated_at = $6
    WHERE id = $7
  `, b.AllocatedDays, b.UsedDays, b.PendingDays, b.CarriedForwardDays, b.AvailableBalance, b.UpdatedAt, b.ID)
	return affected(tag, err, "leave balance", b.ID)
}

const requestColumns = `id, employee_id, leave_type_id, start_date, end_date, duration_type, start_half,
    hours, number_of_days, reason, status, approved_by, approved_at, rejection_reason, medical_proof,
    documentation, created_at, updated_at`

func scanRequest(row pgx.Row) (leave.LeaveRequest, error) {
	var (
		r          leave.LeaveRequest
		half       *string
		approvedBy *string
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &r.LeaveTypeID, &r.StartDate, &r.EndDate, &r.DurationType, &half,
		&r.Hours, &r.NumberOfDays, &r.Reason, &r.Status, &approvedBy, &r.ApprovedAt, &r.RejectionReason,
		&r.MedicalProof, &r.Documentation, &r.CreatedAt, &r.UpdatedAt)
	r.StartHalf = leave.Half(deref(half))
	r.ApprovedBy = deref(approvedBy)
	return r, err
}

func (s *txStore) Request(ctx context.Context, id string) (leave.LeaveRequest, error) {
	r, err := scanRequest(s.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = $1`, id))
	if err != nil {
		return r, notFound(err, "leave request", id)
	}
	return r, nil
}

func (s *txStore) LockRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	r, err := scanRequest(s.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return r, notFound(err, "leave request", id)
	}
	return r, nil
}

func (s *txStore) Requests(ctx context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	statuses := make([]string, len(f.Statuses))
	for i, st := range f.Statuses {
		statuses[i] = string(st)
	}
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := s.q.Query(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests
    WHERE ($1 = '' OR employee_id::text = $1)
      AND ($2 = '' OR id::text <> $2)
      AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
      AND ($4::date IS NULL OR end_date >= $4::date)
      AND ($5::date IS NULL OR start_date <= $5::date)
    ORDER BY created_at DESC, id
    LIMIT $6 OFFSET $7
  `, f.EmployeeID, f.ExcludeID, statuses, optionalDate(f.From), optionalDate(f.To), limit, f.Offset)
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
	_, err := s.q.Exec(ctx, `
    INSERT INTO leave_requests (`+requestColumns+`)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
  `, r.ID, r.EmployeeID, r.LeaveTypeID, r.StartDate, r.EndDate, r.DurationType, nullable(string(r.StartHalf)),
		r.Hours, r.NumberOfDays, r.Reason, r.Status, nullable(r.ApprovedBy), r.ApprovedAt, r.RejectionReason,
		r.MedicalProof, r.Documentation, r.CreatedAt, r.UpdatedAt)
	return mapError(err)
}

func (s *txStore) UpdateRequest(ctx context.Context, r leave.LeaveRequest) error {
	tag, err := s.q.Exec(ctx, `
    UPDATE leave_requests
    SET leave_type_id = $1,
        start_date = $2,
        end_date = $3,
        duration_type = $4,
        start_half = $5,
        hours = $6,
        number_of_days = $7,
        reason = $8,
        status = $9,
        approved_by = $10,
        approved_at = $11,
        rejection_reason = $12,
        medical_proof = $13,
        documentation = $14,
        updated_at = $15
    WHERE id = $16
  `, r.LeaveTypeID, r.StartDate, r.EndDate, r.DurationType, nullable(string(r.StartHalf)), r.Hours,
		r.NumberOfDays, r.Reason, r.Status, nullable(r.ApprovedBy), r.ApprovedAt, r.RejectionReason,
		r.MedicalProof, r.Documentation, r.UpdatedAt, r.ID)
	return affected(tag, err, "leave request", r.ID)
}

func (s *txStore) InsertAudit(ctx context.Context, rec leave.AuditRecord) error {
	_, err := s.q.Exec(ctx, `
    INSERT INTO leave_audit (id, request_id, action, actor_id, old_status, new_status, comment, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
  `, rec.ID, rec.RequestID, rec.Action, rec.ActorID, nullable(string(rec.OldStatus)), rec.NewStatus,
		rec.Comment, rec.CreatedAt)
	return mapError(err)
}

func (s *txStore) AuditTrail(ctx context.Context, requestID string) ([]leave.AuditRecord, error) {
	rows, err := s.q.Query(ctx, `
    SELECT id, request_id, action, actor_id, old_status, new_status, comment, created_at
    FROM leave_audit
    WHERE request_id = $1
    ORDER BY created_at DESC, seq DESC
  `, requestID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []leave.AuditRecord
	for rows.Next() {
		var (
			rec leave.AuditRecord
			old *string
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Action, &rec.ActorID, &old, &rec.NewStatus,
			&rec.Comment, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.OldStatus = leave.Status(deref(old))
		out = append(out, rec)
	}
	return out, rows.Err()
}
