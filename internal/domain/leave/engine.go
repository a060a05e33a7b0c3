package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/platform/requestctx"
)

type AuditEntry struct {
	RequestID string
	Action    Action
	ActorID   string
	OldStatus Status
	NewStatus Status
	Comment   string
}

type AuditRecorder interface {
	Append(ctx context.Context, tx AuditStore, entry AuditEntry) (AuditRecord, error)
	Trail(ctx context.Context, tx AuditStore, requestID string) ([]AuditRecord, error)
}

// Notifier delivers best-effort messages. Implementations must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, to Recipient, kind TemplateKind, payload map[string]string)
}

type Option func(*options)

type options struct {
	now          func() time.Time
	newID        func() string
	onTransition func(Action)
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithTransitionHook is called after each committed transition.
func WithTransitionHook(fn func(Action)) Option {
	return func(o *options) { o.onTransition = fn }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, newID: uuid.NewString, onTransition: func(Action) {}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type message struct {
	to      Recipient
	kind    TemplateKind
	payload map[string]string
}

// Engine drives leave requests through their lifecycle. Every transition runs in a single
// store transaction covering the request row, its ledger row and its audit record.
type Engine struct {
	store     Store
	registry  *Registry
	ledger    *Ledger
	validator *Validator
	audit     AuditRecorder
	notifier  Notifier
	log       zerolog.Logger
	opts      options
}

func NewEngine(store Store, registry *Registry, ledger *Ledger, validator *Validator, audit AuditRecorder, notifier Notifier, log zerolog.Logger, opts ...Option) *Engine {
	return &Engine{
		store:     store,
		registry:  registry,
		ledger:    ledger,
		validator: validator,
		audit:     audit,
		notifier:  notifier,
		log:       log.With().Str("component", "lifecycle").Logger(),
		opts:      buildOptions(opts),
	}
}

func (e *Engine) today() time.Time {
	return Day(e.opts.now())
}

// Create admits a new pending request for the caller's own employee record.
func (e *Engine) Create(ctx context.Context, actor auth.Principal, in CreateInput) (LeaveRequest, error) {
	var created LeaveRequest
	var out []message
	err := runTx(ctx, e.store, e.log, "create", func(tx Tx) error {
		emp, err := e.employeeFor(ctx, tx, actor)
		if err != nil {
			return err
		}
		if emp, err = tx.LockEmployee(ctx, emp.ID); err != nil {
			return err
		}
		lt, err := e.registry.Get(ctx, tx, in.LeaveTypeID)
		if err != nil {
			return err
		}
		if !lt.Active {
			return fmt.Errorf("%w: %s", ErrLeaveTypeInactive, lt.Name)
		}

		req := in.request()
		req.EmployeeID = emp.ID
		req.LeaveTypeID = lt.ID
		if err := checkShape(req, e.today()); err != nil {
			return err
		}
		if err := e.validator.Validate(ctx, tx, e.candidate(emp, lt, req, ""), e.today()); err != nil {
			return err
		}
		days, err := e.countDays(ctx, tx, req)
		if err != nil {
			return err
		}
		req.NumberOfDays = days
		if _, err := e.ledger.Reserve(ctx, tx, req.BalanceKey(), days, e.validator.BalanceOverride(lt, req.MedicalProof)); err != nil {
			return err
		}

		now := e.opts.now()
		req.ID = e.opts.newID()
		req.Status = StatusPending
		req.CreatedAt = now
		req.UpdatedAt = now
		if err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		if _, err := e.audit.Append(ctx, tx, AuditEntry{
			RequestID: req.ID,
			Action:    ActionCreated,
			ActorID:   actor.UserID,
			NewStatus: StatusPending,
			Comment:   req.Reason,
		}); err != nil {
			return err
		}

		approvers, err := e.approvers(ctx, tx)
		if err != nil {
			return err
		}
		payload := requestPayload(emp, lt, req)
		for _, to := range approvers {
			out = append(out, message{to: to, kind: TemplateLeaveSubmitted, payload: payload})
		}
		created = req
		return nil
	})
	if err != nil {
		return LeaveRequest{}, err
	}
	e.committed(ctx, ActionCreated, created, out)
	return created, nil
}

func (e *Engine) Approve(ctx context.Context, actor auth.Principal, requestID, comment string) (LeaveRequest, error) {
	if !actor.Role.CanApprove() {
		return LeaveRequest{}, fmt.Errorf("%w: only hr or super admin can approve leave", ErrForbidden)
	}
	return e.transition(ctx, actor, requestID, ActionApproved, StatusApproved, comment, func(ctx context.Context, tx Tx, req *LeaveRequest) error {
		if _, err := e.ledger.Consume(ctx, tx, req.BalanceKey(), req.NumberOfDays); err != nil {
			return err
		}
		at := e.opts.now()
		req.ApprovedBy = actor.UserID
		req.ApprovedAt = &at
		return nil
	})
}

func (e *Engine) Reject(ctx context.Context, actor auth.Principal, requestID, reason string) (LeaveRequest, error) {
	if !actor.Role.CanApprove() {
		return LeaveRequest{}, fmt.Errorf("%w: only hr or super admin can reject leave", ErrForbidden)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return LeaveRequest{}, invalid(RuleInput, "rejection reason is required")
	}
	return e.transition(ctx, actor, requestID, ActionRejected, StatusRejected, reason, func(ctx context.Context, tx Tx, req *LeaveRequest) error {
		if _, err := e.ledger.Release(ctx, tx, req.BalanceKey(), req.NumberOfDays); err != nil {
			return err
		}
		req.RejectionReason = reason
		return nil
	})
}

// Cancel withdraws a pending or approved request. The owner or an approver may cancel.
func (e *Engine) Cancel(ctx context.Context, actor auth.Principal, requestID, comment string) (LeaveRequest, error) {
	return e.transition(ctx, actor, requestID, ActionCancelled, StatusCancelled, comment, func(ctx context.Context, tx Tx, req *LeaveRequest) error {
		var err error
		switch req.Status {
		case StatusPending:
			_, err = e.ledger.Release(ctx, tx, req.BalanceKey(), req.NumberOfDays)
		case StatusApproved:
			_, err = e.ledger.Refund(ctx, tx, req.BalanceKey(), req.NumberOfDays)
		}
		return err
	})
}

// transition applies a status change. apply sees the request in its old status and performs
// the ledger side of the move.
func (e *Engine) transition(ctx context.Context, actor auth.Principal, requestID string, action Action, next Status, comment string,
	apply func(ctx context.Context, tx Tx, req *LeaveRequest) error) (LeaveRequest, error) {
	var updated LeaveRequest
	var out []message
	err := runTx(ctx, e.store, e.log, string(action), func(tx Tx) error {
		req, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		emp, err := tx.Employee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		owner := emp.UserID == actor.UserID
		if action == ActionCancelled && !owner && !actor.Role.CanApprove() {
			return fmt.Errorf("%w: only the requester or hr can cancel this request", ErrForbidden)
		}
		prev := req.Status
		if err := prev.transitionTo(next); err != nil {
			return err
		}
		if err := apply(ctx, tx, &req); err != nil {
			return err
		}
		req.Status = next
		req.UpdatedAt = e.opts.now()
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		if _, err := e.audit.Append(ctx, tx, AuditEntry{
			RequestID: req.ID,
			Action:    action,
			ActorID:   actor.UserID,
			OldStatus: prev,
			NewStatus: next,
			Comment:   strings.TrimSpace(comment),
		}); err != nil {
			return err
		}

		lt, err := e.registry.Get(ctx, tx, req.LeaveTypeID)
		if err != nil {
			return err
		}
		payload := requestPayload(emp, lt, req)
		payload["comment"] = strings.TrimSpace(comment)
		if action == ActionCancelled && owner {
			approvers, err := e.approvers(ctx, tx)
			if err != nil {
				return err
			}
			for _, to := range approvers {
				out = append(out, message{to: to, kind: TemplateLeaveCancelled, payload: payload})
			}
		} else {
			out = append(out, message{to: recipientOf(emp), kind: templateFor(action), payload: payload})
		}
		updated = req
		return nil
	})
	if err != nil {
		return LeaveRequest{}, err
	}
	e.committed(ctx, action, updated, out)
	return updated, nil
}

// Modify updates a pending request in place. Schedule changes re-run the admission rules and
// swap the old reservation for the new one inside the same transaction, so a failed reserve
// leaves the original reservation untouched.
func (e *Engine) Modify(ctx context.Context, actor auth.Principal, requestID string, patch ModifyPatch) (LeaveRequest, error) {
	var updated LeaveRequest
	var out []message
	err := runTx(ctx, e.store, e.log, "modify", func(tx Tx) error {
		req, err := tx.Request(ctx, requestID)
		if err != nil {
			return err
		}
		// Lock order: employee, then request, then balance.
		emp, err := tx.LockEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		if req, err = tx.LockRequest(ctx, requestID); err != nil {
			return err
		}
		if emp.UserID != actor.UserID {
			return fmt.Errorf("%w: only the requester can modify this request", ErrForbidden)
		}
		if req.Status != StatusPending {
			return fmt.Errorf("%w: only pending requests can be modified (status %s)", ErrInvalidTransition, req.Status)
		}
		lt, err := e.registry.Get(ctx, tx, req.LeaveTypeID)
		if err != nil {
			return err
		}

		next := patch.apply(req)
		if patch.changesSchedule() {
			if err := checkShape(next, e.today()); err != nil {
				return err
			}
			if err := e.validator.Validate(ctx, tx, e.candidate(emp, lt, next, req.ID), e.today()); err != nil {
				return err
			}
			days, err := e.countDays(ctx, tx, next)
			if err != nil {
				return err
			}
			next.NumberOfDays = days
			if _, err := e.ledger.Release(ctx, tx, req.BalanceKey(), req.NumberOfDays); err != nil {
				return err
			}
			if _, err := e.ledger.Reserve(ctx, tx, next.BalanceKey(), days, e.validator.BalanceOverride(lt, next.MedicalProof)); err != nil {
				return err
			}
		} else {
			if err := checkReason(next.Reason); err != nil {
				return err
			}
			if lt.RequiresDocumentation && next.Documentation == "" {
				return invalid(RuleDocumentation, "documentation is required for %s", lt.Name)
			}
		}

		next.UpdatedAt = e.opts.now()
		if err := tx.UpdateRequest(ctx, next); err != nil {
			return err
		}
		if _, err := e.audit.Append(ctx, tx, AuditEntry{
			RequestID: req.ID,
			Action:    ActionModified,
			ActorID:   actor.UserID,
			OldStatus: StatusPending,
			NewStatus: StatusPending,
			Comment:   modificationSummary(req, next),
		}); err != nil {
			return err
		}

		approvers, err := e.approvers(ctx, tx)
		if err != nil {
			return err
		}
		payload := requestPayload(emp, lt, next)
		for _, to := range approvers {
			out = append(out, message{to: to, kind: TemplateLeaveModified, payload: payload})
		}
		updated = next
		return nil
	})
	if err != nil {
		return LeaveRequest{}, err
	}
	e.committed(ctx, ActionModified, updated, out)
	return updated, nil
}

// Get returns a request visible to the caller: its owner or an approver.
func (e *Engine) Get(ctx context.Context, actor auth.Principal, requestID string) (LeaveRequest, error) {
	var req LeaveRequest
	err := runTx(ctx, e.store, e.log, "get", func(tx Tx) error {
		var err error
		req, err = e.visibleRequest(ctx, tx, actor, requestID)
		return err
	})
	return req, err
}

// List returns requests matching filter. Callers who cannot approve only ever see their own.
func (e *Engine) List(ctx context.Context, actor auth.Principal, filter RequestFilter) ([]LeaveRequest, error) {
	var out []LeaveRequest
	err := runTx(ctx, e.store, e.log, "list", func(tx Tx) error {
		if !actor.Role.CanApprove() {
			emp, err := e.employeeFor(ctx, tx, actor)
			if err != nil {
				return err
			}
			if filter.EmployeeID != "" && filter.EmployeeID != emp.ID {
				return fmt.Errorf("%w: cannot list another employee's requests", ErrForbidden)
			}
			filter.EmployeeID = emp.ID
		}
		var err error
		out, err = tx.Requests(ctx, filter)
		return err
	})
	return out, err
}

// AuditTrail returns the request's transitions, newest first.
func (e *Engine) AuditTrail(ctx context.Context, actor auth.Principal, requestID string) ([]AuditRecord, error) {
	var out []AuditRecord
	err := runTx(ctx, e.store, e.log, "audit_trail", func(tx Tx) error {
		if _, err := e.visibleRequest(ctx, tx, actor, requestID); err != nil {
			return err
		}
		var err error
		out, err = e.audit.Trail(ctx, tx, requestID)
		return err
	})
	return out, err
}

func (e *Engine) visibleRequest(ctx context.Context, tx Tx, actor auth.Principal, requestID string) (LeaveRequest, error) {
	req, err := tx.Request(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if actor.Role.CanApprove() {
		return req, nil
	}
	emp, err := tx.Employee(ctx, req.EmployeeID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if emp.UserID != actor.UserID {
		return LeaveRequest{}, fmt.Errorf("%w: request belongs to another employee", ErrForbidden)
	}
	return req, nil
}

func (e *Engine) employeeFor(ctx context.Context, tx PeopleStore, actor auth.Principal) (Employee, error) {
	emp, err := tx.EmployeeByUserID(ctx, actor.UserID)
	if errors.Is(err, ErrNotFound) {
		return Employee{}, fmt.Errorf("%w: no employee profile for user %s", ErrNotFound, actor.UserID)
	}
	return emp, err
}

func (e *Engine) candidate(emp Employee, lt LeaveType, r LeaveRequest, excludeID string) Candidate {
	return Candidate{
		Employee:         emp,
		LeaveType:        lt,
		Start:            r.StartDate,
		End:              r.EndDate,
		Duration:         r.duration(),
		Documentation:    r.Documentation,
		MedicalProof:     r.MedicalProof,
		ExcludeRequestID: excludeID,
	}
}

func (e *Engine) countDays(ctx context.Context, tx HolidayStore, r LeaveRequest) (decimal.Decimal, error) {
	cal, err := LoadCalendar(ctx, tx, r.StartDate, r.EndDate)
	if err != nil {
		return decimal.Zero, err
	}
	return cal.CountWorkingDays(r.StartDate, r.EndDate, r.duration()), nil
}

func (e *Engine) approvers(ctx context.Context, tx PeopleStore) ([]Recipient, error) {
	users, err := tx.UsersByRole(ctx, auth.RoleHR, auth.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	out := make([]Recipient, 0, len(users))
	for _, u := range users {
		if !u.Active {
			continue
		}
		out = append(out, Recipient{UserID: u.ID, Email: u.Email})
	}
	return out, nil
}

func (e *Engine) committed(ctx context.Context, action Action, req LeaveRequest, out []message) {
	l := requestctx.Logger(ctx, e.log)
	l.Info().
		Str("leaveRequestId", req.ID).
		Str("employeeId", req.EmployeeID).
		Str("action", string(action)).
		Str("status", string(req.Status)).
		Str("days", req.NumberOfDays.String()).
		Msg("leave request transition committed")
	e.opts.onTransition(action)
	if e.notifier == nil {
		return
	}
	for _, m := range out {
		e.notifier.Notify(ctx, m.to, m.kind, m.payload)
	}
}

// LoadCalendar builds a calendar from the active holidays that can fall in [start, end].
func LoadCalendar(ctx context.Context, tx HolidayStore, start, end time.Time) (Calendar, error) {
	holidays, err := tx.Holidays(ctx, HolidayFilter{From: start, To: end, ActiveOnly: true, IncludeRecurring: true})
	if err != nil {
		return Calendar{}, err
	}
	return NewCalendar(holidays), nil
}

// runTx wraps store failures the domain does not recognise as retryable errors.
func runTx(ctx context.Context, store Store, log zerolog.Logger, op string, fn func(tx Tx) error) error {
	err := store.WithinTx(ctx, fn)
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	l := requestctx.Logger(ctx, log)
	l.Error().Err(err).Str("op", op).Msg("storage failure, transaction rolled back")
	return fmt.Errorf("%w: %s: %v", ErrRetryable, op, err)
}

func recipientOf(emp Employee) Recipient {
	return Recipient{UserID: emp.UserID, Email: emp.Email, Name: emp.FullName()}
}

func templateFor(action Action) TemplateKind {
	switch action {
	case ActionApproved:
		return TemplateLeaveApproved
	case ActionRejected:
		return TemplateLeaveRejected
	case ActionCancelled:
		return TemplateLeaveCancelled
	case ActionModified:
		return TemplateLeaveModified
	}
	return TemplateLeaveSubmitted
}

func requestPayload(emp Employee, lt LeaveType, r LeaveRequest) map[string]string {
	return map[string]string{
		"requestId":    r.ID,
		"employeeName": emp.FullName(),
		"leaveType":    lt.Name,
		"startDate":    r.StartDate.Format(time.DateOnly),
		"endDate":      r.EndDate.Format(time.DateOnly),
		"days":         r.NumberOfDays.String(),
		"status":       string(r.Status),
		"reason":       r.Reason,
		"rejection":    r.RejectionReason,
	}
}

func modificationSummary(before, after LeaveRequest) string {
	var parts []string
	if !before.StartDate.Equal(after.StartDate) || !before.EndDate.Equal(after.EndDate) {
		parts = append(parts, fmt.Sprintf("dates %s..%s -> %s..%s",
			before.StartDate.Format(time.DateOnly), before.EndDate.Format(time.DateOnly),
			after.StartDate.Format(time.DateOnly), after.EndDate.Format(time.DateOnly)))
	}
	if before.DurationType != after.DurationType || before.StartHalf != after.StartHalf || !nullEqual(before.Hours, after.Hours) {
		parts = append(parts, fmt.Sprintf("duration %s -> %s", describeDuration(before), describeDuration(after)))
	}
	if !before.NumberOfDays.Equal(after.NumberOfDays) {
		parts = append(parts, fmt.Sprintf("days %s -> %s", before.NumberOfDays, after.NumberOfDays))
	}
	if before.Reason != after.Reason {
		parts = append(parts, "reason updated")
	}
	if before.Documentation != after.Documentation || before.MedicalProof != after.MedicalProof {
		parts = append(parts, "documentation updated")
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, "; ")
}

func describeDuration(r LeaveRequest) string {
	switch r.DurationType {
	case DurationHalfDay:
		return fmt.Sprintf("%s (%s)", r.DurationType, r.StartHalf)
	case DurationHourly:
		return fmt.Sprintf("%s (%sh)", r.DurationType, r.Hours.Decimal)
	}
	return string(r.DurationType)
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
