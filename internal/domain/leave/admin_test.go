package leave_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
)

func TestProratedAllocation(t *testing.T) {
	cases := []struct {
		joining time.Time
		want    string
	}{
		{leave.Date(2025, time.January, 1), "12"},
		{leave.Date(2025, time.July, 1), "6.05"},
		{leave.Date(2025, time.December, 31), "0.03"},
		{leave.Date(2024, time.January, 1), "12"},
	}
	for _, tc := range cases {
		got := leave.ProratedAllocation(dec("12"), tc.joining)
		assert.Truef(t, dec(tc.want).Equal(got), "%s: want %s got %s", tc.joining.Format(time.DateOnly), tc.want, got)
	}
}

func TestOnboardCreatesAccountAndBalances(t *testing.T) {
	f := newFixture(t)

	res, err := f.admin.Onboard(f.ctx, f.hr, leave.OnboardInput{
		Email:          " Grace@Example.com ",
		FirstName:      "Grace",
		LastName:       "Hopper",
		EmployeeNumber: "E-010",
		Department:     "Engineering",
		JoiningDate:    leave.Date(2025, time.July, 1),
		ManagerID:      f.employee.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEmployee, res.Role)
	assert.Equal(t, "grace@example.com", res.Employee.Email)
	assert.Len(t, res.TemporaryPassword, 12)
	require.Len(t, res.Balances, 3)

	casual := f.balance(t, res.Employee.ID, f.casual, 2025)
	assert.True(t, dec("6.05").Equal(casual.AllocatedDays))
	assertBalance(t, casual, "0", "0", "6.05")

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, leave.TemplateEmployeeWelcome, msgs[0].kind)
	assert.Equal(t, res.TemporaryPassword, msgs[0].payload["temporaryPassword"])

	var user auth.User
	require.NoError(t, f.store.WithinTx(f.ctx, func(tx leave.Tx) error {
		var err error
		user, err = tx.User(f.ctx, res.Employee.UserID)
		return err
	}))
	assert.NoError(t, auth.CheckPassword(user.PasswordHash, res.TemporaryPassword))
}

func TestOnboardEarlierJoinerGetsCurrentYearRows(t *testing.T) {
	f := newFixture(t)
	assertBalance(t, f.balance(t, f.employee.ID, f.casual, 2024), "0", "0", "12")
	assertBalance(t, f.balance(t, f.employee.ID, f.casual, 2025), "0", "0", "12")
	assertBalance(t, f.balance(t, f.employee.ID, f.sick, 2025), "0", "0", "10")
}

func TestOnboardRejections(t *testing.T) {
	f := newFixture(t)
	base := leave.OnboardInput{Email: "x@example.com", FirstName: "X", EmployeeNumber: "E-100", JoiningDate: now}

	_, err := f.admin.Onboard(f.ctx, f.emp, base)
	assert.ErrorIs(t, err, leave.ErrForbidden)

	hrAccount := base
	hrAccount.Role = auth.RoleHR
	_, err = f.admin.Onboard(f.ctx, f.hr, hrAccount)
	assert.ErrorIs(t, err, leave.ErrForbidden)

	dupEmail := base
	dupEmail.Email = "ADA@example.com"
	_, err = f.admin.Onboard(f.ctx, f.hr, dupEmail)
	assert.Equal(t, leave.KindConflict, leave.KindOf(err))

	dupNumber := base
	dupNumber.EmployeeNumber = "E-001"
	_, err = f.admin.Onboard(f.ctx, f.hr, dupNumber)
	assert.Equal(t, leave.KindConflict, leave.KindOf(err))

	badEmail := base
	badEmail.Email = "not-an-email"
	_, err = f.admin.Onboard(f.ctx, f.hr, badEmail)
	assertRule(t, err, leave.RuleInput)

	badManager := base
	badManager.ManagerID = "nobody"
	_, err = f.admin.Onboard(f.ctx, f.hr, badManager)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestCarryForwardSetsTargetRow(t *testing.T) {
	f := newFixture(t)
	req := f.mustCreate(t, f.input(f.casual, june(2), june(4)))
	_, err := f.engine.Approve(f.ctx, f.hr, req.ID, "")
	require.NoError(t, err)

	_, err = f.admin.CarryForward(f.ctx, f.emp, 2025, 2026)
	assert.ErrorIs(t, err, leave.ErrForbidden)

	summary, err := f.admin.CarryForward(f.ctx, f.hr, 2025, 2026)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.RowsScanned)
	assert.Equal(t, 1, summary.RowsCarried)
	assert.Equal(t, 1, summary.RowsCreated)
	assert.True(t, dec("5").Equal(summary.DaysCarried))

	next := f.balance(t, f.employee.ID, f.casual, 2026)
	assert.True(t, dec("5").Equal(next.CarriedForwardDays))
	assertBalance(t, next, "0", "0", "17")

	again, err := f.admin.CarryForward(f.ctx, f.hr, 2025, 2026)
	require.NoError(t, err)
	assert.Equal(t, 0, again.RowsCreated)
	assert.Equal(t, 1, again.RowsCarried)
	assertBalance(t, f.balance(t, f.employee.ID, f.casual, 2026), "0", "0", "17")

	_, err = f.admin.CarryForward(f.ctx, f.hr, 2026, 2026)
	assertRule(t, err, leave.RuleInput)
}

func TestRolloverCarriesThenAllocates(t *testing.T) {
	f := newFixture(t)

	summary, err := f.admin.Rollover(f.ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CarryForward.RowsCreated)
	assert.Equal(t, 2, summary.Allocated)

	assertBalance(t, f.balance(t, f.employee.ID, f.casual, 2026), "0", "0", "17")
	assertBalance(t, f.balance(t, f.employee.ID, f.sick, 2026), "0", "0", "10")
	assertBalance(t, f.balance(t, f.employee.ID, f.bereavement, 2026), "0", "0", "5")

	created, err := f.admin.AllocateYear(f.ctx, f.hr, 2026)
	require.NoError(t, err)
	assert.Zero(t, created)

	_, err = f.admin.AllocateYear(f.ctx, f.emp, 2026)
	assert.ErrorIs(t, err, leave.ErrForbidden)
}

func TestHolidayAdministration(t *testing.T) {
	f := newFixture(t)

	h, err := f.admin.CreateHoliday(f.ctx, f.hr, leave.HolidayInput{Date: june(3), Name: "Founders Day"})
	require.NoError(t, err)
	assert.True(t, h.Active)

	_, err = f.admin.CreateHoliday(f.ctx, f.hr, leave.HolidayInput{Date: june(3), Name: "Again"})
	assert.ErrorIs(t, err, leave.ErrDuplicateHoliday)
	assert.Equal(t, leave.KindConflict, leave.KindOf(err))

	_, err = f.admin.CreateHoliday(f.ctx, f.emp, leave.HolidayInput{Date: june(4), Name: "Mine"})
	assert.ErrorIs(t, err, leave.ErrForbidden)

	_, err = f.admin.CreateHoliday(f.ctx, f.hr, leave.HolidayInput{Date: june(4)})
	assertRule(t, err, leave.RuleInput)

	other, err := f.admin.CreateHoliday(f.ctx, f.hr, leave.HolidayInput{Date: june(5), Name: "Other"})
	require.NoError(t, err)
	moved := june(3)
	_, err = f.admin.UpdateHoliday(f.ctx, f.hr, other.ID, leave.HolidayPatch{Date: &moved})
	assert.ErrorIs(t, err, leave.ErrDuplicateHoliday)

	inactive := false
	_, err = f.admin.UpdateHoliday(f.ctx, f.hr, h.ID, leave.HolidayPatch{Active: &inactive})
	require.NoError(t, err)

	req := f.mustCreate(t, f.input(f.casual, june(2), june(5)))
	assert.True(t, dec("3").Equal(req.NumberOfDays))

	list, err := f.admin.Holidays(f.ctx, leave.HolidayFilter{From: june(1), To: june(30), ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Other", list[0].Name)
}

func TestBalancesVisibility(t *testing.T) {
	f := newFixture(t)
	otherEmp, other := f.onboard(t, "grace@example.com", "E-005", leave.Date(2023, time.March, 1))

	mine, err := f.admin.Balances(f.ctx, f.emp, "", 2025)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	names := []string{mine[0].LeaveTypeName, mine[1].LeaveTypeName, mine[2].LeaveTypeName}
	assert.ElementsMatch(t, []string{"Casual Leave", "Sick Leave", "Bereavement Leave"}, names)

	_, err = f.admin.Balances(f.ctx, other, f.employee.ID, 2025)
	assert.ErrorIs(t, err, leave.ErrForbidden)

	theirs, err := f.admin.Balances(f.ctx, f.hr, otherEmp.ID, 2025)
	require.NoError(t, err)
	assert.Len(t, theirs, 3)

	_, err = f.admin.Balances(f.ctx, f.hr, "", 2025)
	assert.ErrorIs(t, err, leave.ErrNotFound)

	me, err := f.admin.Me(f.ctx, f.emp)
	require.NoError(t, err)
	assert.Equal(t, f.employee.ID, me.ID)
}

func TestLeaveTypeVisibility(t *testing.T) {
	f := newFixture(t)
	inactive := false
	_, err := f.admin.UpdateLeaveType(f.ctx, f.hr, f.bereavement.ID, leave.LeaveTypePatch{Active: &inactive})
	require.NoError(t, err)

	active, err := f.admin.LeaveTypes(f.ctx, f.emp, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := f.admin.LeaveTypes(f.ctx, f.hr, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.admin.CreateLeaveType(f.ctx, f.emp, leave.LeaveTypeInput{Name: "Nope", Category: leave.CategoryPaid})
	assert.ErrorIs(t, err, leave.ErrForbidden)

	lt, err := f.admin.LeaveType(f.ctx, f.casual.ID)
	require.NoError(t, err)
	assert.Equal(t, "Casual Leave", lt.Name)
}

func TestStatementRendersPDF(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, f.input(f.casual, june(2), june(4)))

	pdf, err := f.admin.Statement(f.ctx, f.emp, "", 2025)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, other := f.onboard(t, "grace@example.com", "E-005", leave.Date(2023, time.March, 1))
	_, err = f.admin.Statement(f.ctx, other, f.employee.ID, 2025)
	assert.ErrorIs(t, err, leave.ErrForbidden)
}
