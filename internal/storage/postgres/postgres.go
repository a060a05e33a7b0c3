// Package postgres implements leave.Store on PostgreSQL through pgx.
//
// Every transaction sets a local lock_timeout, and ledger and request rows are read with
// SELECT ... FOR UPDATE, so concurrent writers to the same rows queue for at most that long.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"leavedesk/internal/domain/leave"
	"leavedesk/internal/platform/querier"
)

type Store struct {
	DB          *pgxpool.Pool
	lockTimeout time.Duration
	log         zerolog.Logger
}

func New(db *pgxpool.Pool, lockTimeout time.Duration, log zerolog.Logger) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Store{DB: db, lockTimeout: lockTimeout, log: log.With().Str("component", "postgres").Logger()}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx leave.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warn().Err(rbErr).Msg("rollback failed")
		}
	}()

	// SET does not take bind parameters.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return mapError(err)
	}
	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}
	return mapError(tx.Commit(ctx))
}

type txStore struct {
	q querier.Querier
}

// mapError translates pgx errors into the domain's error kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return leave.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "55P03", "40001", "40P01":
		return fmt.Errorf("%w: %s", leave.ErrLockTimeout, pgErr.Message)
	case "23505":
		switch pgErr.ConstraintName {
		case "uq_leave_types_name":
			return leave.ErrDuplicateName
		case "uq_holidays_date":
			return leave.ErrDuplicateHoliday
		case "uq_leave_balances_key":
			return leave.ErrAlreadyExists
		}
		return fmt.Errorf("%w: %s", leave.ErrConflict, pgErr.ConstraintName)
	case "23503":
		return fmt.Errorf("%w: referenced record does not exist", leave.ErrNotFound)
	case "22P02":
		return fmt.Errorf("%w: malformed identifier", leave.ErrNotFound)
	}
	return err
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", leave.ErrNotFound, kind, id)
	}
	return mapError(err)
}

func affected(tag pgconn.CommandTag, err error, kind, id string) error {
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", leave.ErrNotFound, kind, id)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
