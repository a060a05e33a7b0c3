package leave

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/auth"
)

type HolidayInput struct {
	Date        time.Time `json:"date"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Recurring   bool      `json:"recurring"`
}

type HolidayPatch struct {
	Date        *time.Time `json:"date,omitempty"`
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Recurring   *bool      `json:"recurring,omitempty"`
	Active      *bool      `json:"active,omitempty"`
}

type OnboardInput struct {
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	EmployeeNumber string    `json:"employeeNumber"`
	Department     string    `json:"department"`
	Designation    string    `json:"designation"`
	JoiningDate    time.Time `json:"joiningDate"`
	ManagerID      string    `json:"managerId"`
	Role           auth.Role `json:"role"`
}

type OnboardResult struct {
	Employee          Employee  `json:"employee"`
	Role              auth.Role `json:"role"`
	TemporaryPassword string    `json:"temporaryPassword"`
	Balances          []Balance `json:"balances"`
}

type BalanceSummary struct {
	Balance
	LeaveTypeName string `json:"leaveTypeName"`
}

type RolloverSummary struct {
	CarryForward CarryForwardSummary `json:"carryForward"`
	Allocated    int                 `json:"allocated"`
}

// Admin covers configuration and employee-level operations around the request lifecycle:
// leave types, holidays, balances, onboarding and year-end processing.
type Admin struct {
	store    Store
	registry *Registry
	ledger   *Ledger
	notifier Notifier
	log      zerolog.Logger
	opts     options
}

func NewAdmin(store Store, registry *Registry, ledger *Ledger, notifier Notifier, log zerolog.Logger, opts ...Option) *Admin {
	return &Admin{
		store:    store,
		registry: registry,
		ledger:   ledger,
		notifier: notifier,
		log:      log.With().Str("component", "admin").Logger(),
		opts:     buildOptions(opts),
	}
}

func requireApprover(actor auth.Principal) error {
	if !actor.Role.CanApprove() {
		return fmt.Errorf("%w: hr or super admin role required", ErrForbidden)
	}
	return nil
}

func (a *Admin) LeaveTypes(ctx context.Context, actor auth.Principal, includeInactive bool) ([]LeaveType, error) {
	var out []LeaveType
	err := runTx(ctx, a.store, a.log, "list_leave_types", func(tx Tx) error {
		var err error
		out, err = a.registry.List(ctx, tx, includeInactive && actor.Role.CanApprove())
		return err
	})
	return out, err
}

func (a *Admin) LeaveType(ctx context.Context, id string) (LeaveType, error) {
	var out LeaveType
	err := runTx(ctx, a.store, a.log, "get_leave_type", func(tx Tx) error {
		var err error
		out, err = a.registry.Get(ctx, tx, id)
		return err
	})
	return out, err
}

func (a *Admin) CreateLeaveType(ctx context.Context, actor auth.Principal, in LeaveTypeInput) (LeaveType, error) {
	if err := requireApprover(actor); err != nil {
		return LeaveType{}, err
	}
	var out LeaveType
	err := runTx(ctx, a.store, a.log, "create_leave_type", func(tx Tx) error {
		var err error
		out, err = a.registry.Create(ctx, tx, in)
		return err
	})
	if err == nil {
		a.log.Info().Str("leaveTypeId", out.ID).Str("name", out.Name).Str("actor", actor.UserID).Msg("leave type created")
	}
	return out, err
}

func (a *Admin) UpdateLeaveType(ctx context.Context, actor auth.Principal, id string, patch LeaveTypePatch) (LeaveType, error) {
	if err := requireApprover(actor); err != nil {
		return LeaveType{}, err
	}
	var out LeaveType
	err := runTx(ctx, a.store, a.log, "update_leave_type", func(tx Tx) error {
		var err error
		out, err = a.registry.Update(ctx, tx, id, patch)
		return err
	})
	if err == nil {
		a.log.Info().Str("leaveTypeId", out.ID).Bool("active", out.Active).Str("actor", actor.UserID).Msg("leave type updated")
	}
	return out, err
}

// DeactivateLeaveType retires a leave type. Existing balances and requests keep referring to it.
func (a *Admin) DeactivateLeaveType(ctx context.Context, actor auth.Principal, id string) (LeaveType, error) {
	if err := requireApprover(actor); err != nil {
		return LeaveType{}, err
	}
	var out LeaveType
	err := runTx(ctx, a.store, a.log, "deactivate_leave_type", func(tx Tx) error {
		var err error
		out, err = a.registry.Deactivate(ctx, tx, id)
		return err
	})
	if err == nil {
		a.log.Info().Str("leaveTypeId", out.ID).Str("actor", actor.UserID).Msg("leave type deactivated")
	}
	return out, err
}

func (a *Admin) Holidays(ctx context.Context, filter HolidayFilter) ([]Holiday, error) {
	var out []Holiday
	err := runTx(ctx, a.store, a.log, "list_holidays", func(tx Tx) error {
		var err error
		out, err = tx.Holidays(ctx, filter)
		return err
	})
	return out, err
}

func (a *Admin) CreateHoliday(ctx context.Context, actor auth.Principal, in HolidayInput) (Holiday, error) {
	if err := requireApprover(actor); err != nil {
		return Holiday{}, err
	}
	h := Holiday{
		ID:          a.opts.newID(),
		Date:        Day(in.Date),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Recurring:   in.Recurring,
		Active:      true,
		CreatedAt:   a.opts.now(),
	}
	if err := validateHoliday(h); err != nil {
		return Holiday{}, err
	}
	err := runTx(ctx, a.store, a.log, "create_holiday", func(tx Tx) error {
		if err := ensureFreeDate(ctx, tx, h.Date, ""); err != nil {
			return err
		}
		return tx.InsertHoliday(ctx, h)
	})
	if err != nil {
		return Holiday{}, err
	}
	return h, nil
}

func (a *Admin) UpdateHoliday(ctx context.Context, actor auth.Principal, id string, p HolidayPatch) (Holiday, error) {
	if err := requireApprover(actor); err != nil {
		return Holiday{}, err
	}
	var out Holiday
	err := runTx(ctx, a.store, a.log, "update_holiday", func(tx Tx) error {
		h, err := tx.Holiday(ctx, id)
		if err != nil {
			return err
		}
		if p.Date != nil && !sameDay(*p.Date, h.Date) {
			h.Date = Day(*p.Date)
			if err := ensureFreeDate(ctx, tx, h.Date, h.ID); err != nil {
				return err
			}
		}
		if p.Name != nil {
			h.Name = strings.TrimSpace(*p.Name)
		}
		if p.Description != nil {
			h.Description = strings.TrimSpace(*p.Description)
		}
		if p.Recurring != nil {
			h.Recurring = *p.Recurring
		}
		if p.Active != nil {
			h.Active = *p.Active
		}
		if err := validateHoliday(h); err != nil {
			return err
		}
		if err := tx.UpdateHoliday(ctx, h); err != nil {
			return err
		}
		out = h
		return nil
	})
	return out, err
}

// Balances lists one employee's ledger rows for a year. Employees may only read their own.
func (a *Admin) Balances(ctx context.Context, actor auth.Principal, employeeID string, year int) ([]BalanceSummary, error) {
	var out []BalanceSummary
	err := runTx(ctx, a.store, a.log, "list_balances", func(tx Tx) error {
		emp, err := a.resolveEmployee(ctx, tx, actor, employeeID)
		if err != nil {
			return err
		}
		out, err = a.summaries(ctx, tx, emp.ID, year)
		return err
	})
	return out, err
}

func (a *Admin) summaries(ctx context.Context, tx Tx, employeeID string, year int) ([]BalanceSummary, error) {
	rows, err := tx.Balances(ctx, BalanceFilter{EmployeeID: employeeID, Year: year})
	if err != nil {
		return nil, err
	}
	out := make([]BalanceSummary, 0, len(rows))
	for _, b := range rows {
		lt, err := a.registry.Get(ctx, tx, b.LeaveTypeID)
		if err != nil {
			return nil, err
		}
		out = append(out, BalanceSummary{Balance: b, LeaveTypeName: lt.Name})
	}
	return out, nil
}

// resolveEmployee returns the target employee, defaulting to the caller's own record.
func (a *Admin) resolveEmployee(ctx context.Context, tx Tx, actor auth.Principal, employeeID string) (Employee, error) {
	if employeeID == "" {
		emp, err := tx.EmployeeByUserID(ctx, actor.UserID)
		if errors.Is(err, ErrNotFound) {
			return Employee{}, fmt.Errorf("%w: no employee profile for user %s", ErrNotFound, actor.UserID)
		}
		return emp, err
	}
	emp, err := tx.Employee(ctx, employeeID)
	if err != nil {
		return Employee{}, err
	}
	if emp.UserID != actor.UserID && !actor.Role.CanApprove() {
		return Employee{}, fmt.Errorf("%w: cannot view another employee's balances", ErrForbidden)
	}
	return emp, nil
}

func (a *Admin) Me(ctx context.Context, actor auth.Principal) (Employee, error) {
	var out Employee
	err := runTx(ctx, a.store, a.log, "me", func(tx Tx) error {
		var err error
		out, err = a.resolveEmployee(ctx, tx, actor, "")
		return err
	})
	return out, err
}

// Onboard creates the login, the employee record and the joining year's pro-rated balances
// in one transaction, then sends the welcome message.
func (a *Admin) Onboard(ctx context.Context, actor auth.Principal, in OnboardInput) (OnboardResult, error) {
	if err := requireApprover(actor); err != nil {
		return OnboardResult{}, err
	}
	role := in.Role
	if role == "" {
		role = auth.RoleEmployee
	}
	if !role.Valid() {
		return OnboardResult{}, invalid(RuleInput, "unknown role %q", role)
	}
	if role != auth.RoleEmployee && actor.Role != auth.RoleSuperAdmin {
		return OnboardResult{}, fmt.Errorf("%w: only super admin can onboard %s accounts", ErrForbidden, role)
	}
	if err := validateOnboard(in); err != nil {
		return OnboardResult{}, err
	}
	password, err := auth.GeneratePassword()
	if err != nil {
		return OnboardResult{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return OnboardResult{}, err
	}

	now := a.opts.now()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	user := auth.User{ID: a.opts.newID(), Email: email, PasswordHash: hash, Role: role, Active: true, CreatedAt: now}
	emp := Employee{
		ID:             a.opts.newID(),
		UserID:         user.ID,
		EmployeeNumber: strings.TrimSpace(in.EmployeeNumber),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          email,
		Department:     strings.TrimSpace(in.Department),
		Designation:    strings.TrimSpace(in.Designation),
		JoiningDate:    Day(in.JoiningDate),
		ManagerID:      strings.TrimSpace(in.ManagerID),
		CreatedAt:      now,
	}

	var balances []Balance
	err = runTx(ctx, a.store, a.log, "onboard", func(tx Tx) error {
		if _, err := tx.UserByEmail(ctx, email); err == nil {
			return fmt.Errorf("%w: email %s already registered", ErrConflict, email)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if emp.ManagerID != "" {
			if _, err := tx.Employee(ctx, emp.ManagerID); err != nil {
				return err
			}
		}
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		if err := tx.InsertEmployee(ctx, emp); err != nil {
			return err
		}
		types, err := a.registry.ListActive(ctx, tx)
		if err != nil {
			return err
		}
		joinYear := emp.JoiningDate.Year()
		currentYear := now.Year()
		for _, lt := range types {
			b, err := a.ledger.Initialize(ctx, tx, BalanceKey{EmployeeID: emp.ID, LeaveTypeID: lt.ID, Year: joinYear},
				ProratedAllocation(lt.DefaultBalance, emp.JoiningDate), decimal.Zero)
			if err != nil {
				return err
			}
			balances = append(balances, b)
			if joinYear < currentYear {
				b, err := a.ledger.Initialize(ctx, tx, BalanceKey{EmployeeID: emp.ID, LeaveTypeID: lt.ID, Year: currentYear},
					lt.DefaultBalance, decimal.Zero)
				if err != nil {
					return err
				}
				balances = append(balances, b)
			}
		}
		return nil
	})
	if err != nil {
		return OnboardResult{}, err
	}

	a.log.Info().Str("employeeId", emp.ID).Str("actor", actor.UserID).Int("balances", len(balances)).Msg("employee onboarded")
	if a.notifier != nil {
		a.notifier.Notify(ctx, recipientOf(emp), TemplateEmployeeWelcome, map[string]string{
			"employeeName":      emp.FullName(),
			"email":             emp.Email,
			"employeeNumber":    emp.EmployeeNumber,
			"temporaryPassword": password,
		})
	}
	return OnboardResult{Employee: emp, Role: role, TemporaryPassword: password, Balances: balances}, nil
}

// ProratedAllocation scales a yearly allocation to the part of the joining year that remains,
// counting the joining day. The result is rounded to two places and never exceeds the default.
func ProratedAllocation(defaultBalance decimal.Decimal, joining time.Time) decimal.Decimal {
	joining = Day(joining)
	yearEnd := Date(joining.Year(), time.December, 31)
	remaining := int64(yearEnd.Sub(joining).Hours()/24) + 1
	prorated := defaultBalance.Mul(decimal.NewFromInt(remaining)).Div(decimal.NewFromInt(365)).Round(2)
	return decimal.Min(prorated, defaultBalance)
}

// AllocateYear creates missing ledger rows for year at each active type's default allocation.
func (a *Admin) AllocateYear(ctx context.Context, actor auth.Principal, year int) (int, error) {
	if err := requireApprover(actor); err != nil {
		return 0, err
	}
	return a.allocateYear(ctx, year)
}

func (a *Admin) allocateYear(ctx context.Context, year int) (int, error) {
	created := 0
	err := runTx(ctx, a.store, a.log, "allocate_year", func(tx Tx) error {
		created = 0
		employees, err := tx.Employees(ctx)
		if err != nil {
			return err
		}
		types, err := a.registry.ListActive(ctx, tx)
		if err != nil {
			return err
		}
		for _, emp := range employees {
			if emp.JoiningDate.Year() > year {
				continue
			}
			for _, lt := range types {
				_, err := a.ledger.Initialize(ctx, tx, BalanceKey{EmployeeID: emp.ID, LeaveTypeID: lt.ID, Year: year}, lt.DefaultBalance, decimal.Zero)
				if errors.Is(err, ErrAlreadyExists) {
					continue
				}
				if err != nil {
					return err
				}
				created++
			}
		}
		return nil
	})
	return created, err
}

func (a *Admin) CarryForward(ctx context.Context, actor auth.Principal, fromYear, toYear int) (CarryForwardSummary, error) {
	if err := requireApprover(actor); err != nil {
		return CarryForwardSummary{}, err
	}
	return a.carryForward(ctx, fromYear, toYear)
}

func (a *Admin) carryForward(ctx context.Context, fromYear, toYear int) (CarryForwardSummary, error) {
	var summary CarryForwardSummary
	err := runTx(ctx, a.store, a.log, "carry_forward", func(tx Tx) error {
		var err error
		summary, err = a.ledger.CarryForward(ctx, tx, fromYear, toYear)
		return err
	})
	if err == nil {
		a.log.Info().Int("fromYear", fromYear).Int("toYear", toYear).Int("rows", summary.RowsCarried).
			Str("days", summary.DaysCarried.String()).Msg("carry forward applied")
	}
	return summary, err
}

// Rollover runs year-end processing for toYear: carry forward from the previous year, then
// allocate any rows still missing. It is meant for the scheduler and performs no role check.
func (a *Admin) Rollover(ctx context.Context, toYear int) (RolloverSummary, error) {
	var out RolloverSummary
	cf, err := a.carryForward(ctx, toYear-1, toYear)
	if err != nil {
		return out, err
	}
	out.CarryForward = cf
	out.Allocated, err = a.allocateYear(ctx, toYear)
	return out, err
}

func ensureFreeDate(ctx context.Context, tx HolidayStore, date time.Time, selfID string) error {
	existing, err := tx.Holidays(ctx, HolidayFilter{From: date, To: date})
	if err != nil {
		return err
	}
	for _, h := range existing {
		if h.ID != selfID && sameDay(h.Date, date) {
			return fmt.Errorf("%w: %s", ErrDuplicateHoliday, date.Format(time.DateOnly))
		}
	}
	return nil
}

func validateHoliday(h Holiday) error {
	switch {
	case h.Date.IsZero():
		return invalid(RuleInput, "holiday date is required")
	case h.Name == "":
		return invalid(RuleInput, "holiday name is required")
	case len(h.Name) > 100:
		return invalid(RuleInput, "holiday name must be at most 100 characters")
	}
	return nil
}

func validateOnboard(in OnboardInput) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return invalid(RuleInput, "a valid email is required")
	}
	switch {
	case strings.TrimSpace(in.FirstName) == "":
		return invalid(RuleInput, "first name is required")
	case strings.TrimSpace(in.EmployeeNumber) == "":
		return invalid(RuleInput, "employee number is required")
	case in.JoiningDate.IsZero():
		return invalid(RuleInput, "joining date is required")
	}
	return nil
}
