package leave

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type LeaveTypeInput struct {
	Name                  string          `json:"name"`
	Category              Category        `json:"category"`
	Description           string          `json:"description"`
	ColorCode             string          `json:"colorCode"`
	DefaultBalance        decimal.Decimal `json:"defaultBalance"`
	AllowCarryForward     bool            `json:"allowCarryForward"`
	MaxCarryForward       decimal.Decimal `json:"maxCarryForward"`
	AllowHalfDay          bool            `json:"allowHalfDay"`
	AllowHourly           bool            `json:"allowHourly"`
	MaxConsecutiveDays    int             `json:"maxConsecutiveDays"`
	RequiresApproval      bool            `json:"requiresApproval"`
	CanExceedBalance      bool            `json:"canExceedBalance"`
	RequiresDocumentation bool            `json:"requiresDocumentation"`
}

type LeaveTypePatch struct {
	Name                  *string          `json:"name,omitempty"`
	Category              *Category        `json:"category,omitempty"`
	Description           *string          `json:"description,omitempty"`
	ColorCode             *string          `json:"colorCode,omitempty"`
	DefaultBalance        *decimal.Decimal `json:"defaultBalance,omitempty"`
	AllowCarryForward     *bool            `json:"allowCarryForward,omitempty"`
	MaxCarryForward       *decimal.Decimal `json:"maxCarryForward,omitempty"`
	AllowHalfDay          *bool            `json:"allowHalfDay,omitempty"`
	AllowHourly           *bool            `json:"allowHourly,omitempty"`
	MaxConsecutiveDays    *int             `json:"maxConsecutiveDays,omitempty"`
	RequiresApproval      *bool            `json:"requiresApproval,omitempty"`
	CanExceedBalance      *bool            `json:"canExceedBalance,omitempty"`
	RequiresDocumentation *bool            `json:"requiresDocumentation,omitempty"`
	Active                *bool            `json:"active,omitempty"`
}

// DefaultMaxConsecutiveDays applies when a new leave type does not set its own cap.
const DefaultMaxConsecutiveDays = 30

// Registry manages leave type configuration. Types are never deleted, only deactivated.
type Registry struct {
	newID func() string
	now   func() time.Time
}

func NewRegistry(newID func() string, now func() time.Time) *Registry {
	return &Registry{newID: newID, now: now}
}

func (r *Registry) Get(ctx context.Context, tx LeaveTypeStore, id string) (LeaveType, error) {
	lt, err := tx.LeaveType(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return LeaveType{}, fmt.Errorf("%w: leave type %s", ErrNotFound, id)
	}
	return lt, err
}

func (r *Registry) ListActive(ctx context.Context, tx LeaveTypeStore) ([]LeaveType, error) {
	return tx.LeaveTypes(ctx, true)
}

func (r *Registry) List(ctx context.Context, tx LeaveTypeStore, includeInactive bool) ([]LeaveType, error) {
	return tx.LeaveTypes(ctx, !includeInactive)
}

func (r *Registry) Create(ctx context.Context, tx LeaveTypeStore, in LeaveTypeInput) (LeaveType, error) {
	if in.MaxConsecutiveDays == 0 {
		in.MaxConsecutiveDays = DefaultMaxConsecutiveDays
	}
	now := r.now()
	lt := LeaveType{
		ID:                    r.newID(),
		Name:                  strings.TrimSpace(in.Name),
		Category:              in.Category,
		Description:           strings.TrimSpace(in.Description),
		ColorCode:             strings.TrimSpace(in.ColorCode),
		DefaultBalance:        in.DefaultBalance,
		AllowCarryForward:     in.AllowCarryForward,
		MaxCarryForward:       in.MaxCarryForward,
		AllowHalfDay:          in.AllowHalfDay,
		AllowHourly:           in.AllowHourly,
		MaxConsecutiveDays:    in.MaxConsecutiveDays,
		RequiresApproval:      in.RequiresApproval,
		CanExceedBalance:      in.CanExceedBalance,
		RequiresDocumentation: in.RequiresDocumentation,
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := validateLeaveType(lt); err != nil {
		return LeaveType{}, err
	}
	if err := r.ensureUniqueName(ctx, tx, lt.Name, ""); err != nil {
		return LeaveType{}, err
	}
	if err := tx.InsertLeaveType(ctx, lt); err != nil {
		return LeaveType{}, err
	}
	return lt, nil
}

func (r *Registry) Update(ctx context.Context, tx LeaveTypeStore, id string, p LeaveTypePatch) (LeaveType, error) {
	lt, err := r.Get(ctx, tx, id)
	if err != nil {
		return LeaveType{}, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name != lt.Name {
			if err := r.ensureUniqueName(ctx, tx, name, lt.ID); err != nil {
				return LeaveType{}, err
			}
		}
		lt.Name = name
	}
	if p.Category != nil {
		lt.Category = *p.Category
	}
	if p.Description != nil {
		lt.Description = strings.TrimSpace(*p.Description)
	}
	if p.ColorCode != nil {
		lt.ColorCode = strings.TrimSpace(*p.ColorCode)
	}
	if p.DefaultBalance != nil {
		lt.DefaultBalance = *p.DefaultBalance
	}
	if p.AllowCarryForward != nil {
		lt.AllowCarryForward = *p.AllowCarryForward
	}
	if p.MaxCarryForward != nil {
		lt.MaxCarryForward = *p.MaxCarryForward
	}
	if p.AllowHalfDay != nil {
		lt.AllowHalfDay = *p.AllowHalfDay
	}
	if p.AllowHourly != nil {
		lt.AllowHourly = *p.AllowHourly
	}
	if p.MaxConsecutiveDays != nil {
		lt.MaxConsecutiveDays = *p.MaxConsecutiveDays
	}
	if p.RequiresApproval != nil {
		lt.RequiresApproval = *p.RequiresApproval
	}
	if p.CanExceedBalance != nil {
		lt.CanExceedBalance = *p.CanExceedBalance
	}
	if p.RequiresDocumentation != nil {
		lt.RequiresDocumentation = *p.RequiresDocumentation
	}
	if p.Active != nil {
		lt.Active = *p.Active
	}
	if err := validateLeaveType(lt); err != nil {
		return LeaveType{}, err
	}
	lt.UpdatedAt = r.now()
	if err := tx.UpdateLeaveType(ctx, lt); err != nil {
		return LeaveType{}, err
	}
	return lt, nil
}

func (r *Registry) Deactivate(ctx context.Context, tx LeaveTypeStore, id string) (LeaveType, error) {
	inactive := false
	return r.Update(ctx, tx, id, LeaveTypePatch{Active: &inactive})
}

func (r *Registry) ensureUniqueName(ctx context.Context, tx LeaveTypeStore, name, selfID string) error {
	existing, err := tx.LeaveTypeByName(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	return nil
}

var colorCode = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func validateLeaveType(lt LeaveType) error {
	switch {
	case lt.Name == "":
		return invalid(RuleInput, "leave type name is required")
	case len(lt.Name) > 100:
		return invalid(RuleInput, "leave type name must be at most 100 characters")
	case !lt.Category.Valid():
		return invalid(RuleInput, "unknown leave category %q", lt.Category)
	case lt.DefaultBalance.IsNegative():
		return invalid(RuleInput, "default balance must not be negative")
	case lt.MaxCarryForward.IsNegative():
		return invalid(RuleInput, "max carry forward must not be negative")
	case lt.ColorCode != "" && !colorCode.MatchString(lt.ColorCode):
		return invalid(RuleInput, "color code must look like #1a2b3c")
	case lt.MaxConsecutiveDays < 0:
		return invalid(RuleInput, "max consecutive days must not be negative")
	}
	return nil
}
