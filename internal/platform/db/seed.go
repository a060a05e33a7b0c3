package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/platform/config"
)

// DefaultLeaveTypes are created on first start when the catalog is empty.
var DefaultLeaveTypes = []leave.LeaveTypeInput{
	{
		Name:               "Casual Leave",
		Category:           leave.CategoryCasual,
		Description:        "Short personal absences",
		ColorCode:          "#4F8EF7",
		DefaultBalance:     decimal.NewFromInt(12),
		AllowHalfDay:       true,
		MaxConsecutiveDays: 5,
		RequiresApproval:   true,
	},
	{
		Name:               "Sick Leave",
		Category:           leave.CategorySick,
		Description:        "Illness; may exceed the balance with a medical certificate",
		ColorCode:          "#F76E4F",
		DefaultBalance:     decimal.NewFromInt(12),
		AllowHalfDay:       true,
		AllowHourly:        true,
		MaxConsecutiveDays: 30,
		RequiresApproval:   true,
		CanExceedBalance:   true,
	},
	{
		Name:               "Earned Leave",
		Category:           leave.CategoryEarned,
		Description:        "Annual paid leave",
		ColorCode:          "#3CB371",
		DefaultBalance:     decimal.NewFromInt(15),
		AllowCarryForward:  true,
		MaxCarryForward:    decimal.NewFromInt(5),
		AllowHalfDay:       true,
		MaxConsecutiveDays: 20,
		RequiresApproval:   true,
	},
}

// Seed creates the bootstrap super admin and the default leave types. It is idempotent.
func Seed(ctx context.Context, store leave.Store, registry *leave.Registry, cfg config.Config, log zerolog.Logger) error {
	return store.WithinTx(ctx, func(tx leave.Tx) error {
		if err := ensureAdminUser(ctx, tx, cfg.SeedAdminEmail, cfg.SeedAdminPassword, log); err != nil {
			return err
		}
		return ensureLeaveTypes(ctx, tx, registry, log)
	})
}

func ensureAdminUser(ctx context.Context, tx leave.Tx, email, password string, log zerolog.Logger) error {
	if email == "" {
		return nil
	}
	_, err := tx.UserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, leave.ErrNotFound) {
		return err
	}
	if password == "" {
		return errors.New("seed admin password is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	err = tx.InsertUser(ctx, auth.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleSuperAdmin,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("seeded super admin")
	return nil
}

func ensureLeaveTypes(ctx context.Context, tx leave.Tx, registry *leave.Registry, log zerolog.Logger) error {
	existing, err := tx.LeaveTypes(ctx, false)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, in := range DefaultLeaveTypes {
		if _, err := registry.Create(ctx, tx, in); err != nil {
			return err
		}
	}
	log.Info().Int("count", len(DefaultLeaveTypes)).Msg("seeded default leave types")
	return nil
}
