// Package sqlite implements leave.Store on SQLite for single-node deployments and tests.
//
// Write transactions are opened with BEGIN IMMEDIATE, so the database write lock is taken when
// a transaction starts and held until it ends. Lock waits are bounded by the busy timeout and
// surface as leave.ErrLockTimeout.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"leavedesk/internal/domain/leave"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

type Store struct {
	db       *sql.DB
	lockWait time.Duration
	log      zerolog.Logger
}

// New opens the database at path and creates the schema. Use ":memory:" for a private
// in-memory database.
func New(path string, lockWait time.Duration, log zerolog.Logger) (*Store, error) {
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=%d&_txlock=immediate", path, lockWait.Milliseconds())
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, lockWait: lockWait, log: log.With().Str("component", "sqlite").Logger()}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx leave.Tx) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	conn, err := s.db.Conn(acquireCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return leave.ErrLockTimeout
		}
		return mapError(err)
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	if err := fn(&txStore{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('super_admin', 'hr', 'employee')),
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS employees (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
	employee_number TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL,
	department TEXT NOT NULL DEFAULT '',
	designation TEXT NOT NULL DEFAULT '',
	joining_date TEXT NOT NULL,
	manager_id TEXT REFERENCES employees(id),
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS leave_types (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	color_code TEXT NOT NULL DEFAULT '',
	default_balance TEXT NOT NULL,
	allow_carry_forward INTEGER NOT NULL,
	max_carry_forward TEXT NOT NULL,
	allow_half_day INTEGER NOT NULL,
	allow_hourly INTEGER NOT NULL,
	max_consecutive_days INTEGER NOT NULL,
	requires_approval INTEGER NOT NULL,
	can_exceed_balance INTEGER NOT NULL,
	requires_documentation INTEGER NOT NULL,
	active INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS holidays (
	id TEXT PRIMARY KEY,
	holiday_date TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	recurring INTEGER NOT NULL,
	active INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS leave_balances (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL REFERENCES employees(id),
	leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
	year INTEGER NOT NULL,
	allocated_days TEXT NOT NULL,
	used_days TEXT NOT NULL,
	pending_days TEXT NOT NULL,
	carried_forward_days TEXT NOT NULL,
	available_balance TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (employee_id, leave_type_id, year)
);

CREATE INDEX IF NOT EXISTS idx_leave_balances_year ON leave_balances(year);

CREATE TABLE IF NOT EXISTS leave_requests (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL REFERENCES employees(id),
	leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	duration_type TEXT NOT NULL CHECK (duration_type IN ('full_day', 'half_day', 'hourly')),
	start_half TEXT,
	hours TEXT,
	number_of_days TEXT NOT NULL,
	reason TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
	approved_by TEXT REFERENCES users(id),
	approved_at TEXT,
	rejection_reason TEXT NOT NULL DEFAULT '',
	medical_proof TEXT NOT NULL DEFAULT '',
	documentation TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	CHECK (end_date >= start_date)
);

CREATE INDEX IF NOT EXISTS idx_leave_requests_employee_dates ON leave_requests(employee_id, start_date, end_date);
CREATE INDEX IF NOT EXISTS idx_leave_requests_status ON leave_requests(status);

CREATE TABLE IF NOT EXISTS leave_audit (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES leave_requests(id),
	action TEXT NOT NULL,
	actor_id TEXT NOT NULL REFERENCES users(id),
	old_status TEXT,
	new_status TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leave_audit_request ON leave_audit(request_id, created_at);

CREATE TRIGGER IF NOT EXISTS leave_audit_no_update BEFORE UPDATE ON leave_audit
BEGIN
	SELECT RAISE(ABORT, 'leave_audit is append-only');
END;

CREATE TRIGGER IF NOT EXISTS leave_audit_no_delete BEFORE DELETE ON leave_audit
BEGIN
	SELECT RAISE(ABORT, 'leave_audit is append-only');
END;
`

// mapError translates driver errors into the domain's error kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return leave.ErrNotFound
	}
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return err
	}
	switch {
	case sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", leave.ErrLockTimeout, err)
	case sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
		msg := sqlErr.Error()
		switch {
		case strings.Contains(msg, "leave_types.name"):
			return leave.ErrDuplicateName
		case strings.Contains(msg, "holidays.holiday_date"):
			return leave.ErrDuplicateHoliday
		case strings.Contains(msg, "leave_balances."):
			return leave.ErrAlreadyExists
		}
		return fmt.Errorf("%w: %s", leave.ErrConflict, msg)
	case sqlErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: referenced record does not exist", leave.ErrNotFound)
	}
	return err
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
