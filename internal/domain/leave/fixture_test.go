package leave_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/storage/memory"
)

// now is a Thursday in May 2025.
var now = time.Date(2025, time.May, 15, 10, 0, 0, 0, time.UTC)

func june(day int) time.Time {
	return leave.Date(2025, time.June, day)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type sentMessage struct {
	to      leave.Recipient
	kind    leave.TemplateKind
	payload map[string]string
}

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	onSend func(kind leave.TemplateKind, payload map[string]string)
}

func (n *recordingNotifier) Notify(_ context.Context, to leave.Recipient, kind leave.TemplateKind, payload map[string]string) {
	if n.onSend != nil {
		n.onSend(kind, payload)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{to: to, kind: kind, payload: payload})
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}

func (n *recordingNotifier) kinds() []leave.TemplateKind {
	var out []leave.TemplateKind
	for _, m := range n.messages() {
		out = append(out, m.kind)
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type fixture struct {
	ctx         context.Context
	store       *memory.Store
	registry    *leave.Registry
	ledger      *leave.Ledger
	engine      *leave.Engine
	admin       *leave.Admin
	notifier    *recordingNotifier
	transitions []leave.Action

	hr       auth.Principal
	emp      auth.Principal
	employee leave.Employee

	casual      leave.LeaveType
	sick        leave.LeaveType
	bereavement leave.LeaveType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return now }
	log := zerolog.Nop()

	f := &fixture{
		ctx:      context.Background(),
		store:    memory.New(time.Second),
		notifier: &recordingNotifier{},
	}
	f.registry = leave.NewRegistry(uuid.NewString, clock)
	f.ledger = leave.NewLedger(log, uuid.NewString, clock)
	f.engine = leave.NewEngine(f.store, f.registry, f.ledger, leave.NewValidator(), audit.New(audit.WithClock(clock)), f.notifier, log,
		leave.WithClock(clock),
		leave.WithTransitionHook(func(a leave.Action) { f.transitions = append(f.transitions, a) }))
	f.admin = leave.NewAdmin(f.store, f.registry, f.ledger, f.notifier, log, leave.WithClock(clock))

	hr := auth.User{ID: uuid.NewString(), Email: "hr@example.com", Role: auth.RoleHR, Active: true, CreatedAt: now}
	require.NoError(t, f.store.WithinTx(f.ctx, func(tx leave.Tx) error { return tx.InsertUser(f.ctx, hr) }))
	f.hr = auth.Principal{UserID: hr.ID, Role: auth.RoleHR}

	f.casual = f.createType(t, leave.LeaveTypeInput{
		Name:               "Casual Leave",
		Category:           leave.CategoryCasual,
		DefaultBalance:     dec("12"),
		AllowHalfDay:       true,
		AllowCarryForward:  true,
		MaxCarryForward:    dec("5"),
		MaxConsecutiveDays: 10,
		RequiresApproval:   true,
	})
	f.sick = f.createType(t, leave.LeaveTypeInput{
		Name:             "Sick Leave",
		Category:         leave.CategorySick,
		DefaultBalance:   dec("10"),
		AllowHourly:      true,
		CanExceedBalance: true,
		RequiresApproval: true,
	})
	f.bereavement = f.createType(t, leave.LeaveTypeInput{
		Name:                  "Bereavement Leave",
		Category:              leave.CategoryBereavement,
		DefaultBalance:        dec("5"),
		RequiresDocumentation: true,
		RequiresApproval:      true,
	})

	f.employee, f.emp = f.onboard(t, "ada@example.com", "E-001", leave.Date(2024, time.January, 1))
	f.notifier.reset()
	return f
}

func (f *fixture) createType(t *testing.T, in leave.LeaveTypeInput) leave.LeaveType {
	t.Helper()
	lt, err := f.admin.CreateLeaveType(f.ctx, f.hr, in)
	require.NoError(t, err)
	return lt
}

func (f *fixture) onboard(t *testing.T, email, number string, joining time.Time) (leave.Employee, auth.Principal) {
	t.Helper()
	res, err := f.admin.Onboard(f.ctx, f.hr, leave.OnboardInput{
		Email:          email,
		FirstName:      "Test",
		LastName:       number,
		EmployeeNumber: number,
		JoiningDate:    joining,
	})
	require.NoError(t, err)
	return res.Employee, auth.Principal{UserID: res.Employee.UserID, Role: auth.RoleEmployee}
}

func (f *fixture) input(lt leave.LeaveType, start, end time.Time) leave.CreateInput {
	return leave.CreateInput{LeaveTypeID: lt.ID, StartDate: start, EndDate: end, Reason: "family trip"}
}

func (f *fixture) mustCreate(t *testing.T, in leave.CreateInput) leave.LeaveRequest {
	t.Helper()
	req, err := f.engine.Create(f.ctx, f.emp, in)
	require.NoError(t, err)
	return req
}

func (f *fixture) balance(t *testing.T, employeeID string, lt leave.LeaveType, year int) leave.Balance {
	t.Helper()
	var b leave.Balance
	require.NoError(t, f.store.WithinTx(f.ctx, func(tx leave.Tx) error {
		var err error
		b, err = tx.Balance(f.ctx, leave.BalanceKey{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year})
		return err
	}))
	return b
}

// assertBalance checks used, pending and available days and the ledger invariant.
func assertBalance(t *testing.T, b leave.Balance, used, pending, available string) {
	t.Helper()
	assert.Truef(t, dec(used).Equal(b.UsedDays), "used: want %s got %s", used, b.UsedDays)
	assert.Truef(t, dec(pending).Equal(b.PendingDays), "pending: want %s got %s", pending, b.PendingDays)
	assert.Truef(t, dec(available).Equal(b.AvailableBalance), "available: want %s got %s", available, b.AvailableBalance)
	expected := b.AllocatedDays.Sub(b.UsedDays).Sub(b.PendingDays).Add(b.CarriedForwardDays)
	assert.Truef(t, expected.Equal(b.AvailableBalance), "invariant: want %s got %s", expected, b.AvailableBalance)
}

func assertRule(t *testing.T, err error, rule leave.Rule) {
	t.Helper()
	var verr *leave.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, rule, verr.Rule, verr.Reason)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}
