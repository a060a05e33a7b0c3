package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/leave"
	"leavedesk/internal/storage/memory"
)

var ledgerKey = leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-1", Year: 2025}

// inTx runs fn against a fresh store seeded with a 12 day row for ledgerKey.
func inTx(t *testing.T, fn func(ctx context.Context, l *leave.Ledger, tx leave.Tx) error) error {
	t.Helper()
	ctx := context.Background()
	l := leave.NewLedger(zerolog.Nop(), uuid.NewString, func() time.Time { return now })
	store := memory.New(time.Second)
	require.NoError(t, store.WithinTx(ctx, func(tx leave.Tx) error {
		_, err := l.Initialize(ctx, tx, ledgerKey, dec("12"), dec("0"))
		return err
	}))
	return store.WithinTx(ctx, func(tx leave.Tx) error { return fn(ctx, l, tx) })
}

func TestLedgerInitializeRejectsDuplicates(t *testing.T) {
	err := inTx(t, func(ctx context.Context, l *leave.Ledger, tx leave.Tx) error {
		_, err := l.Initialize(ctx, tx, ledgerKey, dec("12"), dec("0"))
		assert.ErrorIs(t, err, leave.ErrAlreadyExists)
		_, err = l.Initialize(ctx, tx, leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-1", Year: 2026}, dec("-1"), dec("0"))
		assertRule(t, err, leave.RuleInput)
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerReserveReleaseConsumeRefund(t *testing.T) {
	err := inTx(t, func(ctx context.Context, l *leave.Ledger, tx leave.Tx) error {
		b, err := l.Reserve(ctx, tx, ledgerKey, dec("4"), false)
		require.NoError(t, err)
		assertBalance(t, b, "0", "4", "8")

		b, err = l.Release(ctx, tx, ledgerKey, dec("1.5"))
		require.NoError(t, err)
		assertBalance(t, b, "0", "2.5", "9.5")

		b, err = l.Consume(ctx, tx, ledgerKey, dec("2.5"))
		require.NoError(t, err)
		assertBalance(t, b, "2.5", "0", "9.5")

		b, err = l.Refund(ctx, tx, ledgerKey, dec("2.5"))
		require.NoError(t, err)
		assertBalance(t, b, "0", "0", "12")
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerFloorsAtZero(t *testing.T) {
	err := inTx(t, func(ctx context.Context, l *leave.Ledger, tx leave.Tx) error {
		b, err := l.Release(ctx, tx, ledgerKey, dec("3"))
		require.NoError(t, err)
		assertBalance(t, b, "0", "0", "12")

		b, err = l.Refund(ctx, tx, ledgerKey, dec("3"))
		require.NoError(t, err)
		assertBalance(t, b, "0", "0", "12")

		b, err = l.Consume(ctx, tx, ledgerKey, dec("2"))
		require.NoError(t, err)
		assertBalance(t, b, "2", "0", "10")
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerReserveChecksAvailability(t *testing.T) {
	err := inTx(t, func(ctx context.Context, l *leave.Ledger, tx leave.Tx) error {
		_, err := l.Reserve(ctx, tx, ledgerKey, dec("12.5"), false)
		assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

		b, err := l.Reserve(ctx, tx, ledgerKey, dec("12"), false)
		require.NoError(t, err)
		assertBalance(t, b, "0", "12", "0")

		b, err = l.Reserve(ctx, tx, ledgerKey, dec("2"), true)
		require.NoError(t, err)
		assertBalance(t, b, "0", "14", "-2")

		_, err = l.Reserve(ctx, tx, ledgerKey, dec("-1"), true)
		assertRule(t, err, leave.RuleInput)
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerZeroDaysLeaveRowUnchanged(t *testing.T) {
	missing := leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-1", Year: 2024}
	err := inTx(t, func(ctx context.Context, l *leave.Ledger, tx leave.Tx) error {
		b, err := l.Reserve(ctx, tx, ledgerKey, dec("0"), false)
		require.NoError(t, err)
		assertBalance(t, b, "0", "0", "12")

		for _, op := range []func(context.Context, leave.BalanceStore, leave.BalanceKey, decimal.Decimal) (leave.Balance, error){
			l.Release, l.Consume, l.Refund,
		} {
			b, err = op(ctx, tx, ledgerKey, dec("0"))
			require.NoError(t, err)
			assertBalance(t, b, "0", "0", "12")

			_, err = op(ctx, tx, missing, dec("0"))
			require.NoError(t, err)
		}

		_, err = l.Reserve(ctx, tx, missing, dec("0"), false)
		require.NoError(t, err)
		_, err = tx.Balance(ctx, missing)
		assert.ErrorIs(t, err, leave.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerMissingRow(t *testing.T) {
	missing := leave.BalanceKey{EmployeeID: "emp-1", LeaveTypeID: "lt-1", Year: 2024}
	err := inTx(t, func(ctx context.Context, l *leave.Ledger, tx leave.Tx) error {
		_, err := l.Reserve(ctx, tx, missing, dec("1"), false)
		assert.Equal(t, leave.KindInsufficientBalance, leave.KindOf(err))

		_, err = l.Release(ctx, tx, missing, dec("1"))
		assert.ErrorIs(t, err, leave.ErrInternalInconsistency)
		_, err = l.Consume(ctx, tx, missing, dec("1"))
		assert.ErrorIs(t, err, leave.ErrInternalInconsistency)
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerRefusesCorruptRows(t *testing.T) {
	err := inTx(t, func(ctx context.Context, l *leave.Ledger, tx leave.Tx) error {
		b, err := tx.Balance(ctx, ledgerKey)
		require.NoError(t, err)
		b.AvailableBalance = dec("20")
		require.NoError(t, tx.UpdateBalance(ctx, b))

		_, err = l.Reserve(ctx, tx, ledgerKey, dec("1"), false)
		assert.Equal(t, leave.KindInternalInconsistency, leave.KindOf(err))
		assert.Equal(t, "internal error", leave.Reason(err))
		return nil
	})
	require.NoError(t, err)
}
