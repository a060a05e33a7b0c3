package leave

import "fmt"

type Category string

const (
	CategoryCasual      Category = "casual"
	CategorySick        Category = "sick"
	CategoryPaid        Category = "paid"
	CategoryUnpaid      Category = "unpaid"
	CategoryMaternity   Category = "maternity"
	CategoryPaternity   Category = "paternity"
	CategoryBereavement Category = "bereavement"
	CategoryEarned      Category = "earned"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCasual, CategorySick, CategoryPaid, CategoryUnpaid,
		CategoryMaternity, CategoryPaternity, CategoryBereavement, CategoryEarned:
		return true
	}
	return false
}

type DurationType string

const (
	DurationFullDay DurationType = "full_day"
	DurationHalfDay DurationType = "half_day"
	DurationHourly  DurationType = "hourly"
)

func (d DurationType) Valid() bool {
	switch d {
	case DurationFullDay, DurationHalfDay, DurationHourly:
		return true
	}
	return false
}

type Half string

const (
	HalfMorning   Half = "morning"
	HalfAfternoon Half = "afternoon"
)

func (h Half) Valid() bool {
	return h == HalfMorning || h == HalfAfternoon
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// transitions lists every legal move out of a status. Anything absent is illegal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:  {StatusCancelled},
	StatusRejected:  nil,
	StatusCancelled: nil,
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s Status) transitionTo(next Status) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

type Action string

const (
	ActionCreated   Action = "created"
	ActionApproved  Action = "approved"
	ActionRejected  Action = "rejected"
	ActionCancelled Action = "cancelled"
	ActionModified  Action = "modified"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionApproved, ActionRejected, ActionCancelled, ActionModified:
		return true
	}
	return false
}

type TemplateKind string

const (
	TemplateLeaveSubmitted  TemplateKind = "leave_submitted"
	TemplateLeaveModified   TemplateKind = "leave_modified"
	TemplateLeaveApproved   TemplateKind = "leave_approved"
	TemplateLeaveRejected   TemplateKind = "leave_rejected"
	TemplateLeaveCancelled  TemplateKind = "leave_cancelled"
	TemplateEmployeeWelcome TemplateKind = "employee_welcome"
)

type DayKind int

const (
	WorkingDay DayKind = iota
	Weekend
	PublicHoliday
)

func (k DayKind) String() string {
	switch k {
	case WorkingDay:
		return "working"
	case Weekend:
		return "weekend"
	case PublicHoliday:
		return "holiday"
	}
	return "unknown"
}
