// Package memory is an in-process leave.Store for tests and single-binary development runs.
// Transactions run one at a time against a private copy of the data that replaces the shared
// copy on commit.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
)

type Store struct {
	sem      chan struct{}
	lockWait time.Duration
	data     *state
}

type state struct {
	leaveTypes map[string]leave.LeaveType
	holidays   map[string]leave.Holiday
	users      map[string]auth.User
	employees  map[string]leave.Employee
	balances   map[leave.BalanceKey]leave.Balance
	requests   map[string]leave.LeaveRequest
	audit      []leave.AuditRecord
}

func New(lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &Store{
		sem:      make(chan struct{}, 1),
		lockWait: lockWait,
		data: &state{
			leaveTypes: map[string]leave.LeaveType{},
			holidays:   map[string]leave.Holiday{},
			users:      map[string]auth.User{},
			employees:  map[string]leave.Employee{},
			balances:   map[leave.BalanceKey]leave.Balance{},
			requests:   map[string]leave.LeaveRequest{},
		},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx leave.Tx) error) error {
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
	case <-timer.C:
		return leave.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	work := s.data.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (st *state) clone() *state {
	out := &state{
		leaveTypes: make(map[string]leave.LeaveType, len(st.leaveTypes)),
		holidays:   make(map[string]leave.Holiday, len(st.holidays)),
		users:      make(map[string]auth.User, len(st.users)),
		employees:  make(map[string]leave.Employee, len(st.employees)),
		balances:   make(map[leave.BalanceKey]leave.Balance, len(st.balances)),
		requests:   make(map[string]leave.LeaveRequest, len(st.requests)),
		audit:      slices.Clone(st.audit),
	}
	for k, v := range st.leaveTypes {
		out.leaveTypes[k] = v
	}
	for k, v := range st.holidays {
		out.holidays[k] = v
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.employees {
		out.employees[k] = v
	}
	for k, v := range st.balances {
		out.balances[k] = v
	}
	for k, v := range st.requests {
		out.requests[k] = v
	}
	return out
}

// tx holds the sole writer slot, so row locks are implicit.
type tx struct {
	st *state
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", leave.ErrNotFound, kind, id)
}

func (t *tx) LeaveType(_ context.Context, id string) (leave.LeaveType, error) {
	lt, ok := t.st.leaveTypes[id]
	if !ok {
		return leave.LeaveType{}, notFound("leave type", id)
	}
	return lt, nil
}

func (t *tx) LeaveTypeByName(_ context.Context, name string) (leave.LeaveType, error) {
	for _, lt := range t.st.leaveTypes {
		if lt.Name == name {
			return lt, nil
		}
	}
	return leave.LeaveType{}, notFound("leave type", name)
}

func (t *tx) LeaveTypes(_ context.Context, activeOnly bool) ([]leave.LeaveType, error) {
	var out []leave.LeaveType
	for _, lt := range t.st.leaveTypes {
		if activeOnly && !lt.Active {
			continue
		}
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tx) InsertLeaveType(_ context.Context, lt leave.LeaveType) error {
	for _, existing := range t.st.leaveTypes {
		if existing.Name == lt.Name {
			return leave.ErrDuplicateName
		}
	}
	t.st.leaveTypes[lt.ID] = lt
	return nil
}

func (t *tx) UpdateLeaveType(_ context.Context, lt leave.LeaveType) error {
	if _, ok := t.st.leaveTypes[lt.ID]; !ok {
		return notFound("leave type", lt.ID)
	}
	for _, existing := range t.st.leaveTypes {
		if existing.ID != lt.ID && existing.Name == lt.Name {
			return leave.ErrDuplicateName
		}
	}
	t.st.leaveTypes[lt.ID] = lt
	return nil
}

func (t *tx) Holiday(_ context.Context, id string) (leave.Holiday, error) {
	h, ok := t.st.holidays[id]
	if !ok {
		return leave.Holiday{}, notFound("holiday", id)
	}
	return h, nil
}

func (t *tx) Holidays(_ context.Context, f leave.HolidayFilter) ([]leave.Holiday, error) {
	var out []leave.Holiday
	for _, h := range t.st.holidays {
		if f.ActiveOnly && !h.Active {
			continue
		}
		inRange := (f.From.IsZero() || !h.Date.Before(f.From)) && (f.To.IsZero() || !h.Date.After(f.To))
		if !inRange && !(f.IncludeRecurring && h.Recurring) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *tx) InsertHoliday(_ context.Context, h leave.Holiday) error {
	for _, existing := range t.st.holidays {
		if existing.Date.Equal(h.Date) {
			return leave.ErrDuplicateHoliday
		}
	}
	t.st.holidays[h.ID] = h
	return nil
}

func (t *tx) UpdateHoliday(_ context.Context, h leave.Holiday) error {
	if _, ok := t.st.holidays[h.ID]; !ok {
		return notFound("holiday", h.ID)
	}
	for _, existing := range t.st.holidays {
		if existing.ID != h.ID && existing.Date.Equal(h.Date) {
			return leave.ErrDuplicateHoliday
		}
	}
	t.st.holidays[h.ID] = h
	return nil
}

func (t *tx) User(_ context.Context, id string) (auth.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return auth.User{}, notFound("user", id)
	}
	return u, nil
}

func (t *tx) UserByEmail(_ context.Context, email string) (auth.User, error) {
	for _, u := range t.st.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return auth.User{}, notFound("user", email)
}

func (t *tx) UsersByRole(_ context.Context, roles ...auth.Role) ([]auth.User, error) {
	var out []auth.User
	for _, u := range t.st.users {
		if slices.Contains(roles, u.Role) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (t *tx) InsertUser(_ context.Context, u auth.User) error {
	for _, existing := range t.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email %s", leave.ErrConflict, u.Email)
		}
	}
	t.st.users[u.ID] = u
	return nil
}

func (t *tx) Employee(_ context.Context, id string) (leave.Employee, error) {
	e, ok := t.st.employees[id]
	if !ok {
		return leave.Employee{}, notFound("employee", id)
	}
	return e, nil
}

func (t *tx) LockEmployee(ctx context.Context, id string) (leave.Employee, error) {
	return t.Employee(ctx, id)
}

func (t *tx) EmployeeByUserID(_ context.Context, userID string) (leave.Employee, error) {
	for _, e := range t.st.employees {
		if e.UserID == userID {
			return e, nil
		}
	}
	return leave.Employee{}, notFound("employee for user", userID)
}

func (t *tx) Employees(_ context.Context) ([]leave.Employee, error) {
	out := make([]leave.Employee, 0, len(t.st.employees))
	for _, e := range t.st.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeNumber < out[j].EmployeeNumber })
	return out, nil
}

func (t *tx) InsertEmployee(_ context.Context, e leave.Employee) error {
	for _, existing := range t.st.employees {
		if existing.EmployeeNumber == e.EmployeeNumber {
			return fmt.Errorf("%w: employee number %s", leave.ErrConflict, e.EmployeeNumber)
		}
		if existing.UserID == e.UserID {
			return fmt.Errorf("%w: user %s already has an employee record", leave.ErrConflict, e.UserID)
		}
	}
	t.st.employees[e.ID] = e
	return nil
}

func (t *tx) Balance(_ context.Context, key leave.BalanceKey) (leave.Balance, error) {
	b, ok := t.st.balances[key]
	if !ok {
		return leave.Balance{}, notFound("balance", fmt.Sprintf("%s/%s/%d", key.EmployeeID, key.LeaveTypeID, key.Year))
	}
	return b, nil
}

func (t *tx) LockBalance(ctx context.Context, key leave.BalanceKey) (leave.Balance, error) {
	return t.Balance(ctx, key)
}

func (t *tx) Balances(_ context.Context, f leave.BalanceFilter) ([]leave.Balance, error) {
	var out []leave.Balance
	for _, b := range t.st.balances {
		if f.EmployeeID != "" && b.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Year != 0 && b.Year != f.Year {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].LeaveTypeID < out[j].LeaveTypeID
	})
	return out, nil
}

func (t *tx) InsertBalance(_ context.Context, b leave.Balance) error {
	if _, ok := t.st.balances[b.Key()]; ok {
		return leave.ErrAlreadyExists
	}
	t.st.balances[b.Key()] = b
	return nil
}

func (t *tx) UpdateBalance(_ context.Context, b leave.Balance) error {
	if _, ok := t.st.balances[b.Key()]; !ok {
		return notFound("balance", b.ID)
	}
	t.st.balances[b.Key()] = b
	return nil
}

func (t *tx) Request(_ context.Context, id string) (leave.LeaveRequest, error) {
	r, ok := t.st.requests[id]
	if !ok {
		return leave.LeaveRequest{}, notFound("leave request", id)
	}
	return r, nil
}

func (t *tx) LockRequest(ctx context.Context, id string) (leave.LeaveRequest, error) {
	return t.Request(ctx, id)
}

func (t *tx) Requests(_ context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	var out []leave.LeaveRequest
	for _, r := range t.st.requests {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.ExcludeID != "" && r.ID == f.ExcludeID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
			continue
		}
		if !f.From.IsZero() && r.EndDate.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && r.StartDate.After(f.To) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f.Limit, f.Offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (t *tx) InsertRequest(_ context.Context, r leave.LeaveRequest) error {
	if _, ok := t.st.requests[r.ID]; ok {
		return fmt.Errorf("%w: leave request %s", leave.ErrConflict, r.ID)
	}
	t.st.requests[r.ID] = r
	return nil
}

func (t *tx) UpdateRequest(_ context.Context, r leave.LeaveRequest) error {
	if _, ok := t.st.requests[r.ID]; !ok {
		return notFound("leave request", r.ID)
	}
	t.st.requests[r.ID] = r
	return nil
}

func (t *tx) InsertAudit(_ context.Context, rec leave.AuditRecord) error {
	t.st.audit = append(t.st.audit, rec)
	return nil
}

func (t *tx) AuditTrail(_ context.Context, requestID string) ([]leave.AuditRecord, error) {
	var out []leave.AuditRecord
	for i := len(t.st.audit) - 1; i >= 0; i-- {
		if t.st.audit[i].RequestID == requestID {
			out = append(out, t.st.audit[i])
		}
	}
	return out, nil
}
