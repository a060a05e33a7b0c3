package leave

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	minReasonLength = 10
	maxReasonLength = 500
)

func checkReason(reason string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(reason))
	switch {
	case n == 0:
		return invalid(RuleInput, "reason is required")
	case n < minReasonLength:
		return invalid(RuleInput, "reason must be at least %d characters", minReasonLength)
	case n > maxReasonLength:
		return invalid(RuleInput, "reason must be at most %d characters", maxReasonLength)
	}
	return nil
}

type CreateInput struct {
	LeaveTypeID   string              `json:"leaveTypeId"`
	StartDate     time.Time           `json:"startDate"`
	EndDate       time.Time           `json:"endDate"`
	DurationType  DurationType        `json:"durationType"`
	StartHalf     Half                `json:"startHalf,omitempty"`
	Hours         decimal.NullDecimal `json:"hours"`
	Reason        string              `json:"reason"`
	MedicalProof  string              `json:"medicalProof,omitempty"`
	Documentation string              `json:"documentation,omitempty"`
}

// ModifyPatch carries the fields an employee may change on a pending request. Nil means
// unchanged.
type ModifyPatch struct {
	StartDate     *time.Time           `json:"startDate,omitempty"`
	EndDate       *time.Time           `json:"endDate,omitempty"`
	DurationType  *DurationType        `json:"durationType,omitempty"`
	StartHalf     *Half                `json:"startHalf,omitempty"`
	Hours         *decimal.NullDecimal `json:"hours,omitempty"`
	Reason        *string              `json:"reason,omitempty"`
	MedicalProof  *string              `json:"medicalProof,omitempty"`
	Documentation *string              `json:"documentation,omitempty"`
}

func (p ModifyPatch) changesSchedule() bool {
	return p.StartDate != nil || p.EndDate != nil || p.DurationType != nil || p.StartHalf != nil || p.Hours != nil
}

func (p ModifyPatch) apply(r LeaveRequest) LeaveRequest {
	if p.StartDate != nil {
		r.StartDate = Day(*p.StartDate)
	}
	if p.EndDate != nil {
		r.EndDate = Day(*p.EndDate)
	}
	if p.DurationType != nil {
		r.DurationType = *p.DurationType
	}
	if p.StartHalf != nil {
		r.StartHalf = *p.StartHalf
	}
	if p.Hours != nil {
		r.Hours = *p.Hours
	}
	if r.DurationType != DurationHalfDay {
		r.StartHalf = ""
	}
	if r.DurationType != DurationHourly {
		r.Hours = decimal.NullDecimal{}
	}
	if p.Reason != nil {
		r.Reason = strings.TrimSpace(*p.Reason)
	}
	if p.MedicalProof != nil {
		r.MedicalProof = strings.TrimSpace(*p.MedicalProof)
	}
	if p.Documentation != nil {
		r.Documentation = strings.TrimSpace(*p.Documentation)
	}
	return r
}

// checkShape validates the request fields on their own, before any rule that needs storage.
func checkShape(r LeaveRequest, today time.Time) error {
	switch {
	case r.StartDate.IsZero() || r.EndDate.IsZero():
		return invalid(RuleInput, "start and end dates are required")
	case r.EndDate.Before(r.StartDate):
		return invalid(RuleInput, "end date must be on or after start date")
	case r.StartDate.Before(Day(today)):
		return invalid(RuleInput, "start date cannot be in the past")
	}
	if err := checkReason(r.Reason); err != nil {
		return err
	}
	if !r.DurationType.Valid() {
		return invalid(RuleInput, "duration type must be one of full_day, half_day, hourly")
	}
	switch r.DurationType {
	case DurationHalfDay:
		if !r.StartHalf.Valid() {
			return invalid(RuleInput, "start half (morning or afternoon) is required for half-day leave")
		}
	case DurationHourly:
		if !r.Hours.Valid || !r.Hours.Decimal.IsPositive() || r.Hours.Decimal.GreaterThan(maxHour) {
			return invalid(RuleInput, "hours must be greater than 0 and at most %d for hourly leave", hoursPerDay)
		}
	default:
		if r.StartHalf != "" {
			return invalid(RuleInput, "start half is only valid for half-day leave")
		}
		if r.Hours.Valid {
			return invalid(RuleInput, "hours are only valid for hourly leave")
		}
	}
	return nil
}

func (in CreateInput) request() LeaveRequest {
	dt := in.DurationType
	if dt == "" {
		dt = DurationFullDay
	}
	return LeaveRequest{
		LeaveTypeID:   in.LeaveTypeID,
		StartDate:     Day(in.StartDate),
		EndDate:       Day(in.EndDate),
		DurationType:  dt,
		StartHalf:     in.StartHalf,
		Hours:         in.Hours,
		Reason:        strings.TrimSpace(in.Reason),
		MedicalProof:  strings.TrimSpace(in.MedicalProof),
		Documentation: strings.TrimSpace(in.Documentation),
	}
}

func (r LeaveRequest) duration() Duration {
	return Duration{Type: r.DurationType, StartHalf: r.StartHalf, Hours: r.Hours}
}
