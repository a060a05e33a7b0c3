package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaveType struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Category              Category        `json:"category"`
	Description           string          `json:"description,omitempty"`
	ColorCode             string          `json:"colorCode,omitempty"`
	DefaultBalance        decimal.Decimal `json:"defaultBalance"`
	AllowCarryForward     bool            `json:"allowCarryForward"`
	MaxCarryForward       decimal.Decimal `json:"maxCarryForward"`
	AllowHalfDay          bool            `json:"allowHalfDay"`
	AllowHourly           bool            `json:"allowHourly"`
	MaxConsecutiveDays    int             `json:"maxConsecutiveDays"`
	RequiresApproval      bool            `json:"requiresApproval"`
	CanExceedBalance      bool            `json:"canExceedBalance"`
	RequiresDocumentation bool            `json:"requiresDocumentation"`
	Active                bool            `json:"active"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

type Holiday struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Recurring   bool      `json:"recurring"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// OccursOn reports whether the holiday falls on day. Recurring holidays repeat on the same
// month and day every year.
func (h Holiday) OccursOn(day time.Time) bool {
	if h.Recurring {
		return h.Date.Month() == day.Month() && h.Date.Day() == day.Day()
	}
	return sameDay(h.Date, day)
}

type Employee struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	EmployeeNumber string    `json:"employeeNumber"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	Department     string    `json:"department,omitempty"`
	Designation    string    `json:"designation,omitempty"`
	JoiningDate    time.Time `json:"joiningDate"`
	ManagerID      string    `json:"managerId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (e Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

type BalanceKey struct {
	EmployeeID  string `json:"employeeId"`
	LeaveTypeID string `json:"leaveTypeId"`
	Year        int    `json:"year"`
}

type Balance struct {
	ID                 string          `json:"id"`
	EmployeeID         string          `json:"employeeId"`
	LeaveTypeID        string          `json:"leaveTypeId"`
	Year               int             `json:"year"`
	AllocatedDays      decimal.Decimal `json:"allocatedDays"`
	UsedDays           decimal.Decimal `json:"usedDays"`
	PendingDays        decimal.Decimal `json:"pendingDays"`
	CarriedForwardDays decimal.Decimal `json:"carriedForwardDays"`
	AvailableBalance   decimal.Decimal `json:"availableBalance"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func (b Balance) Key() BalanceKey {
	return BalanceKey{EmployeeID: b.EmployeeID, LeaveTypeID: b.LeaveTypeID, Year: b.Year}
}

// expectedAvailable is allocated - used - pending + carried forward.
func (b Balance) expectedAvailable() decimal.Decimal {
	return b.AllocatedDays.Sub(b.UsedDays).Sub(b.PendingDays).Add(b.CarriedForwardDays)
}

type LeaveRequest struct {
	ID              string              `json:"id"`
	EmployeeID      string              `json:"employeeId"`
	LeaveTypeID     string              `json:"leaveTypeId"`
	StartDate       time.Time           `json:"startDate"`
	EndDate         time.Time           `json:"endDate"`
	DurationType    DurationType        `json:"durationType"`
	StartHalf       Half                `json:"startHalf,omitempty"`
	Hours           decimal.NullDecimal `json:"hours"`
	NumberOfDays    decimal.Decimal     `json:"numberOfDays"`
	Reason          string              `json:"reason"`
	Status          Status              `json:"status"`
	ApprovedBy      string              `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time          `json:"approvedAt,omitempty"`
	RejectionReason string              `json:"rejectionReason,omitempty"`
	MedicalProof    string              `json:"medicalProof,omitempty"`
	Documentation   string              `json:"documentation,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// BalanceKey is the ledger row a request draws from.
func (r LeaveRequest) BalanceKey() BalanceKey {
	return BalanceKey{EmployeeID: r.EmployeeID, LeaveTypeID: r.LeaveTypeID, Year: r.StartDate.Year()}
}

func (r LeaveRequest) Overlaps(start, end time.Time) bool {
	return !r.StartDate.After(end) && !r.EndDate.Before(start)
}

type AuditRecord struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	Action    Action    `json:"action"`
	ActorID   string    `json:"actorId"`
	OldStatus Status    `json:"oldStatus,omitempty"`
	NewStatus Status    `json:"newStatus"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Recipient struct {
	UserID string
	Email  string
	Name   string
}
