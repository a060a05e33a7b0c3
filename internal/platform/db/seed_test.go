package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/platform/config"
	"leavedesk/internal/storage/memory"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New(time.Second)
	registry := leave.NewRegistry(uuid.NewString, time.Now)
	cfg := config.Config{SeedAdminEmail: "admin@example.com", SeedAdminPassword: "change-me-please"}

	require.NoError(t, Seed(ctx, store, registry, cfg, zerolog.Nop()))
	require.NoError(t, Seed(ctx, store, registry, cfg, zerolog.Nop()))

	require.NoError(t, store.WithinTx(ctx, func(tx leave.Tx) error {
		admins, err := tx.UsersByRole(ctx, auth.RoleSuperAdmin)
		require.NoError(t, err)
		require.Len(t, admins, 1)
		assert.NoError(t, auth.CheckPassword(admins[0].PasswordHash, "change-me-please"))

		types, err := tx.LeaveTypes(ctx, true)
		require.NoError(t, err)
		assert.Len(t, types, len(DefaultLeaveTypes))

		sick, err := tx.LeaveTypeByName(ctx, "Sick Leave")
		require.NoError(t, err)
		assert.True(t, sick.CanExceedBalance)
		return nil
	}))
}

func TestSeedRequiresPasswordForNewAdmin(t *testing.T) {
	store := memory.New(time.Second)
	registry := leave.NewRegistry(uuid.NewString, time.Now)

	err := Seed(context.Background(), store, registry, config.Config{SeedAdminEmail: "admin@example.com"}, zerolog.Nop())
	assert.Error(t, err)
}
