package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger owns every mutation of EmployeeLeaveBalance rows. Each method locks the row,
// applies one change and re-checks the balance invariant before writing.
type Ledger struct {
	log   zerolog.Logger
	newID func() string
	now   func() time.Time
}

func NewLedger(log zerolog.Logger, newID func() string, now func() time.Time) *Ledger {
	return &Ledger{log: log.With().Str("component", "ledger").Logger(), newID: newID, now: now}
}

// Initialize creates the row for key. It fails with ErrAlreadyExists when the row is present.
func (l *Ledger) Initialize(ctx context.Context, tx BalanceStore, key BalanceKey, allocated, carried decimal.Decimal) (Balance, error) {
	if allocated.IsNegative() || carried.IsNegative() {
		return Balance{}, invalid(RuleInput, "allocation must not be negative")
	}
	if _, err := tx.Balance(ctx, key); err == nil {
		return Balance{}, fmt.Errorf("%w: %s/%s/%d", ErrAlreadyExists, key.EmployeeID, key.LeaveTypeID, key.Year)
	} else if !errors.Is(err, ErrNotFound) {
		return Balance{}, err
	}
	now := l.now()
	b := Balance{
		ID:                 l.newID(),
		EmployeeID:         key.EmployeeID,
		LeaveTypeID:        key.LeaveTypeID,
		Year:               key.Year,
		AllocatedDays:      allocated,
		UsedDays:           decimal.Zero,
		PendingDays:        decimal.Zero,
		CarriedForwardDays: carried,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	b.AvailableBalance = b.expectedAvailable()
	if err := l.check(b); err != nil {
		return Balance{}, err
	}
	if err := tx.InsertBalance(ctx, b); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Reserve moves days into pending. Unless allowOverdraft is set the row must have at least
// days available.
func (l *Ledger) Reserve(ctx context.Context, tx BalanceStore, key BalanceKey, days decimal.Decimal, allowOverdraft bool) (Balance, error) {
	return l.mutate(ctx, tx, key, days, true, func(b *Balance) error {
		if !allowOverdraft && b.AvailableBalance.LessThan(days) {
			return invalid(RuleBalance, "insufficient leave balance: %s days available, %s requested",
				b.AvailableBalance.StringFixed(2), days.StringFixed(2))
		}
		b.PendingDays = b.PendingDays.Add(days)
		return nil
	})
}

// Release returns pending days, never taking pending below zero.
func (l *Ledger) Release(ctx context.Context, tx BalanceStore, key BalanceKey, days decimal.Decimal) (Balance, error) {
	return l.mutate(ctx, tx, key, days, false, func(b *Balance) error {
		b.PendingDays = b.PendingDays.Sub(decimal.Min(b.PendingDays, days))
		return nil
	})
}

// Consume moves days from pending to used.
func (l *Ledger) Consume(ctx context.Context, tx BalanceStore, key BalanceKey, days decimal.Decimal) (Balance, error) {
	return l.mutate(ctx, tx, key, days, false, func(b *Balance) error {
		if b.PendingDays.LessThan(days) {
			l.log.Warn().
				Str("employeeId", key.EmployeeID).
				Str("leaveTypeId", key.LeaveTypeID).
				Int("year", key.Year).
				Str("pending", b.PendingDays.String()).
				Str("days", days.String()).
				Msg("consuming more days than pending")
		}
		b.PendingDays = b.PendingDays.Sub(decimal.Min(b.PendingDays, days))
		b.UsedDays = b.UsedDays.Add(days)
		return nil
	})
}

// Refund returns used days, never taking used below zero.
func (l *Ledger) Refund(ctx context.Context, tx BalanceStore, key BalanceKey, days decimal.Decimal) (Balance, error) {
	return l.mutate(ctx, tx, key, days, false, func(b *Balance) error {
		b.UsedDays = b.UsedDays.Sub(decimal.Min(b.UsedDays, days))
		return nil
	})
}

type CarryForwardSummary struct {
	FromYear    int             `json:"fromYear"`
	ToYear      int             `json:"toYear"`
	RowsScanned int             `json:"rowsScanned"`
	RowsCarried int             `json:"rowsCarried"`
	RowsCreated int             `json:"rowsCreated"`
	DaysCarried decimal.Decimal `json:"daysCarried"`
}

type carryForwardStore interface {
	BalanceStore
	LeaveType(ctx context.Context, id string) (LeaveType, error)
}

// CarryForward sets toYear's carried-forward days from fromYear's unused balance, capped by
// each leave type's maximum. The target row is set, not incremented, so re-running for the
// same years gives the same result.
func (l *Ledger) CarryForward(ctx context.Context, tx carryForwardStore, fromYear, toYear int) (CarryForwardSummary, error) {
	summary := CarryForwardSummary{FromYear: fromYear, ToYear: toYear, DaysCarried: decimal.Zero}
	if toYear <= fromYear {
		return summary, invalid(RuleInput, "carry-forward target year must follow the source year")
	}

	rows, err := tx.Balances(ctx, BalanceFilter{Year: fromYear})
	if err != nil {
		return summary, err
	}
	types := map[string]LeaveType{}
	for _, row := range rows {
		summary.RowsScanned++
		lt, ok := types[row.LeaveTypeID]
		if !ok {
			lt, err = tx.LeaveType(ctx, row.LeaveTypeID)
			if err != nil {
				return summary, err
			}
			types[row.LeaveTypeID] = lt
		}
		if !lt.AllowCarryForward {
			continue
		}
		amount := decimal.Min(row.AvailableBalance, lt.MaxCarryForward)
		if !amount.IsPositive() {
			continue
		}

		key := BalanceKey{EmployeeID: row.EmployeeID, LeaveTypeID: row.LeaveTypeID, Year: toYear}
		target, err := tx.LockBalance(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			if _, err := l.Initialize(ctx, tx, key, lt.DefaultBalance, amount); err != nil {
				return summary, err
			}
			summary.RowsCreated++
		case err != nil:
			return summary, err
		default:
			if err := l.verify(target); err != nil {
				return summary, err
			}
			target.CarriedForwardDays = amount
			if err := l.write(ctx, tx, &target); err != nil {
				return summary, err
			}
		}
		summary.RowsCarried++
		summary.DaysCarried = summary.DaysCarried.Add(amount)
	}
	return summary, nil
}

// mutate applies one change to the row for key. A missing row is a balance failure when
// reserving and an inconsistency otherwise, since a request already drew on it. Zero days
// leave the row as it is.
func (l *Ledger) mutate(ctx context.Context, tx BalanceStore, key BalanceKey, days decimal.Decimal, reserving bool, apply func(*Balance) error) (Balance, error) {
	if days.IsNegative() {
		return Balance{}, invalid(RuleInput, "leave days cannot be negative")
	}
	if days.IsZero() {
		b, err := tx.Balance(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return Balance{}, nil
		}
		return b, err
	}
	b, err := tx.LockBalance(ctx, key)
	if errors.Is(err, ErrNotFound) {
		if reserving {
			return Balance{}, invalid(RuleBalance, "no leave balance allocated for %d", key.Year)
		}
		return Balance{}, l.inconsistent(Balance{EmployeeID: key.EmployeeID, LeaveTypeID: key.LeaveTypeID, Year: key.Year}, "balance row missing for existing request")
	}
	if err != nil {
		return Balance{}, err
	}
	if err := l.verify(b); err != nil {
		return Balance{}, err
	}
	if err := apply(&b); err != nil {
		return Balance{}, err
	}
	if err := l.write(ctx, tx, &b); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (l *Ledger) write(ctx context.Context, tx BalanceStore, b *Balance) error {
	b.AvailableBalance = b.expectedAvailable()
	b.UpdatedAt = l.now()
	if err := l.check(*b); err != nil {
		return err
	}
	return tx.UpdateBalance(ctx, *b)
}

// verify checks a row as loaded from storage.
func (l *Ledger) verify(b Balance) error {
	if !b.AvailableBalance.Equal(b.expectedAvailable()) {
		return l.inconsistent(b, "available balance does not match ledger columns")
	}
	return l.check(b)
}

func (l *Ledger) check(b Balance) error {
	if b.UsedDays.IsNegative() || b.PendingDays.IsNegative() {
		return l.inconsistent(b, "negative used or pending days")
	}
	return nil
}

func (l *Ledger) inconsistent(b Balance, msg string) error {
	l.log.Error().
		Str("balanceId", b.ID).
		Str("employeeId", b.EmployeeID).
		Str("leaveTypeId", b.LeaveTypeID).
		Int("year", b.Year).
		Str("allocated", b.AllocatedDays.String()).
		Str("used", b.UsedDays.String()).
		Str("pending", b.PendingDays.String()).
		Str("carriedForward", b.CarriedForwardDays.String()).
		Str("available", b.AvailableBalance.String()).
		Msg(msg)
	return fmt.Errorf("%w: balance %s: %s", ErrInternalInconsistency, b.ID, msg)
}
