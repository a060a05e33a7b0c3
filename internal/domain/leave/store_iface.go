package leave

import (
	"context"
	"time"

	"leavedesk/internal/domain/auth"
)

// Store opens transactions. Returning an error from fn rolls back every write made through tx.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type HolidayFilter struct {
	From       time.Time
	To         time.Time
	ActiveOnly bool
	// IncludeRecurring returns recurring holidays whatever their stored year.
	IncludeRecurring bool
}

type BalanceFilter struct {
	EmployeeID string
	Year       int
}

type RequestFilter struct {
	EmployeeID string
	Statuses   []Status
	// From and To select requests whose [start, end] intersects the window.
	From      time.Time
	To        time.Time
	ExcludeID string
	Limit     int
	Offset    int
}

type LeaveTypeStore interface {
	LeaveType(ctx context.Context, id string) (LeaveType, error)
	LeaveTypeByName(ctx context.Context, name string) (LeaveType, error)
	LeaveTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error)
	InsertLeaveType(ctx context.Context, lt LeaveType) error
	UpdateLeaveType(ctx context.Context, lt LeaveType) error
}

type HolidayStore interface {
	Holiday(ctx context.Context, id string) (Holiday, error)
	Holidays(ctx context.Context, filter HolidayFilter) ([]Holiday, error)
	InsertHoliday(ctx context.Context, h Holiday) error
	UpdateHoliday(ctx context.Context, h Holiday) error
}

type PeopleStore interface {
	User(ctx context.Context, id string) (auth.User, error)
	UserByEmail(ctx context.Context, email string) (auth.User, error)
	UsersByRole(ctx context.Context, roles ...auth.Role) ([]auth.User, error)
	InsertUser(ctx context.Context, u auth.User) error
	Employee(ctx context.Context, id string) (Employee, error)
	// LockEmployee reads the employee and holds the row until the transaction ends. Writes that
	// depend on the employee's other requests take it first.
	LockEmployee(ctx context.Context, id string) (Employee, error)
	EmployeeByUserID(ctx context.Context, userID string) (Employee, error)
	Employees(ctx context.Context) ([]Employee, error)
	InsertEmployee(ctx context.Context, e Employee) error
}

type BalanceStore interface {
	Balance(ctx context.Context, key BalanceKey) (Balance, error)
	// LockBalance reads the row and holds it until the transaction ends.
	LockBalance(ctx context.Context, key BalanceKey) (Balance, error)
	Balances(ctx context.Context, filter BalanceFilter) ([]Balance, error)
	InsertBalance(ctx context.Context, b Balance) error
	UpdateBalance(ctx context.Context, b Balance) error
}

type RequestStore interface {
	Request(ctx context.Context, id string) (LeaveRequest, error)
	LockRequest(ctx context.Context, id string) (LeaveRequest, error)
	Requests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)
	InsertRequest(ctx context.Context, r LeaveRequest) error
	UpdateRequest(ctx context.Context, r LeaveRequest) error
}

// AuditStore is insert-only.
type AuditStore interface {
	InsertAudit(ctx context.Context, rec AuditRecord) error
	AuditTrail(ctx context.Context, requestID string) ([]AuditRecord, error)
}

type Tx interface {
	LeaveTypeStore
	HolidayStore
	PeopleStore
	BalanceStore
	RequestStore
	AuditStore
}
