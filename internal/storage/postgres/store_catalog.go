package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"leavedesk/internal/domain/leave"
)

const leaveTypeColumns = `id, name, category, description, color_code, default_balance,
    allow_carry_forward, max_carry_forward, allow_half_day, allow_hourly, max_consecutive_days,
    requires_approval, can_exceed_balance, requires_documentation, active, created_at, updated_at`

func scanLeaveType(row pgx.Row) (leave.LeaveType, error) {
	var lt leave.LeaveType
	err := row.Scan(&lt.ID, &lt.Name, &lt.Category, &lt.Description, &lt.ColorCode, &lt.DefaultBalance,
		&lt.AllowCarryForward, &lt.MaxCarryForward, &lt.AllowHalfDay, &lt.AllowHourly, &lt.MaxConsecutiveDays,
		&lt.RequiresApproval, &lt.CanExceedBalance, &lt.RequiresDocumentation, &lt.Active, &lt.CreatedAt, &lt.UpdatedAt)
	return lt, err
}

func (s *txStore) LeaveType(ctx context.Context, id string) (leave.LeaveType, error) {
	lt, err := scanLeaveType(s.q.QueryRow(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE id = $1`, id))
	if err != nil {
		return lt, notFound(err, "leave type", id)
	}
	return lt, nil
}

func (s *txStore) LeaveTypeByName(ctx context.Context, name string) (leave.LeaveType, error) {
	lt, err := scanLeaveType(s.q.QueryRow(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE name = $1`, name))
	if err != nil {
		return lt, notFound(err, "leave type", name)
	}
	return lt, nil
}

func (s *txStore) LeaveTypes(ctx context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	rows, err := s.q.Query(ctx, `
    SELECT `+leaveTypeColumns+`
    FROM leave_types
    WHERE active OR NOT $1
    ORDER BY name
  `, activeOnly)
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
	_, err := s.q.Exec(ctx, `
    INSERT INTO leave_types (`+leaveTypeColumns+`)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
  `, lt.ID, lt.Name, lt.Category, lt.Description, lt.ColorCode, lt.DefaultBalance,
		lt.AllowCarryForward, lt.MaxCarryForward, lt.AllowHalfDay, lt.AllowHourly, lt.MaxConsecutiveDays,
		lt.RequiresApproval, lt.CanExceedBalance, lt.RequiresDocumentation, lt.Active, lt.CreatedAt, lt.UpdatedAt)
	return mapError(err)
}

func (s *txStore) UpdateLeaveType(ctx context.Context, lt leave.LeaveType) error {
	tag, err := s.q.Exec(ctx, `
    UPDATE leave_types
    SET name = $1,
        category = $2,
        description = $3,
        color_code = $4,
        default_balance = $5,
        allow_carry_forward = $6,
        max_carry_forward = $7,
        allow_half_day = $8,
        allow_hourly = $9,
        max_consecutive_days = $10,
        requires_approval = $11,
        can_exceed_balance = $12,
        requires_documentation = $13,
        active = $14,
        updated_at = $15
    WHERE id = $16
  `, lt.Name, lt.Category, lt.Description, lt.ColorCode, lt.DefaultBalance, lt.AllowCarryForward,
		lt.MaxCarryForward, lt.AllowHalfDay, lt.AllowHourly, lt.MaxConsecutiveDays, lt.RequiresApproval,
		lt.CanExceedBalance, lt.RequiresDocumentation, lt.Active, lt.UpdatedAt, lt.ID)
	return affected(tag, err, "leave type", lt.ID)
}

const holidayColumns = `id, holiday_date, name, description, recurring, active, created_at`

func scanHoliday(row pgx.Row) (leave.Holiday, error) {
	var h leave.Holiday
	err := row.Scan(&h.ID, &h.Date, &h.Name, &h.Description, &h.Recurring, &h.Active, &h.CreatedAt)
	return h, err
}

func (s *txStore) Holiday(ctx context.Context, id string) (leave.Holiday, error) {
	h, err := scanHoliday(s.q.QueryRow(ctx, `SELECT `+holidayColumns+` FROM holidays WHERE id = $1`, id))
	if err != nil {
		return h, notFound(err, "holiday", id)
	}
	return h, nil
}

func (s *txStore) Holidays(ctx context.Context, f leave.HolidayFilter) ([]leave.Holiday, error) {
	from, to := optionalDate(f.From), optionalDate(f.To)
	rows, err := s.q.Query(ctx, `
    SELECT `+holidayColumns+`
    FROM holidays
    WHERE (active OR NOT $1)
      AND (
        (($2::date IS NULL OR holiday_date >= $2::date) AND ($3::date IS NULL OR holiday_date <= $3::date))
        OR ($4 AND recurring)
      )
    ORDER BY holiday_date
  `, f.ActiveOnly, from, to, f.IncludeRecurring)
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
	_, err := s.q.Exec(ctx, `
    INSERT INTO holidays (`+holidayColumns+`)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
  `, h.ID, h.Date, h.Name, h.Description, h.Recurring, h.Active, h.CreatedAt)
	return mapError(err)
}

func (s *txStore) UpdateHoliday(ctx context.Context, h leave.Holiday) error {
	tag, err := s.q.Exec(ctx, `
    UPDATE holidays
    SET holiday_date = $1,
        name = $2,
        description = $3,
        recurring = $4,
        active = $5
    WHERE id = $6
  `, h.Date, h.Name, h.Description, h.Recurring, h.Active, h.ID)
	return affected(tag, err, "holiday", h.ID)
}
