package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/leave"
	"leavedesk/internal/storage/memory"
)

func TestAppendAndTrail(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, time.May, 15, 9, 0, 0, 0, time.UTC)
	seq := 0
	r := New(
		WithClock(func() time.Time { clock = clock.Add(time.Minute); return clock }),
		WithIDGenerator(func() string { seq++; return string(rune('a' + seq - 1)) }),
	)
	store := memory.New(time.Second)

	err := store.WithinTx(ctx, func(tx leave.Tx) error {
		rec, err := r.Append(ctx, tx, leave.AuditEntry{RequestID: "r1", Action: leave.ActionCreated, ActorID: "u1", NewStatus: leave.StatusPending, Comment: " trip "})
		require.NoError(t, err)
		assert.Equal(t, "a", rec.ID)
		assert.Equal(t, "trip", rec.Comment)

		_, err = r.Append(ctx, tx, leave.AuditEntry{RequestID: "r2", Action: leave.ActionCreated, ActorID: "u2", NewStatus: leave.StatusPending})
		require.NoError(t, err)
		_, err = r.Append(ctx, tx, leave.AuditEntry{RequestID: "r1", Action: leave.ActionApproved, ActorID: "hr", OldStatus: leave.StatusPending, NewStatus: leave.StatusApproved})
		require.NoError(t, err)

		trail, err := r.Trail(ctx, tx, "r1")
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, leave.ActionApproved, trail[0].Action)
		assert.Equal(t, leave.ActionCreated, trail[1].Action)
		assert.True(t, trail[0].CreatedAt.After(trail[1].CreatedAt))
		return nil
	})
	require.NoError(t, err)
}

func TestAppendRejectsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	r := New()
	store := memory.New(time.Second)

	entries := []leave.AuditEntry{
		{Action: leave.ActionCreated, NewStatus: leave.StatusPending},
		{RequestID: "r1", Action: "deleted", NewStatus: leave.StatusPending},
		{RequestID: "r1", Action: leave.ActionApproved, OldStatus: "draft", NewStatus: leave.StatusApproved},
		{RequestID: "r1", Action: leave.ActionApproved},
	}
	err := store.WithinTx(ctx, func(tx leave.Tx) error {
		for _, e := range entries {
			_, err := r.Append(ctx, tx, e)
			assert.Error(t, err)
		}
		trail, err := r.Trail(ctx, tx, "r1")
		require.NoError(t, err)
		assert.Empty(t, trail)
		return nil
	})
	require.NoError(t, err)
}
