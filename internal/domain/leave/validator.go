package leave

import (
	"context"
	"strings"
	"time"
)

// ProbationDays is the window after joining during which leave is blocked.
const ProbationDays = 90

// Candidate is a request as it would look once admitted.
type Candidate struct {
	Employee      Employee
	LeaveType     LeaveType
	Start         time.Time
	End           time.Time
	Duration      Duration
	Documentation string
	MedicalProof  string
	// ExcludeRequestID skips the request being modified in the overlap check.
	ExcludeRequestID string
}

type requestLister interface {
	Requests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)
}

type rule struct {
	name  Rule
	check func(ctx context.Context, tx requestLister, c Candidate, today time.Time) error
}

// Validator runs the admission rules in order and stops at the first failure. Balance
// sufficiency is checked by Ledger.Reserve using BalanceOverride.
type Validator struct {
	rules []rule
}

func NewValidator() *Validator {
	return &Validator{rules: []rule{
		{RuleDurationType, checkDurationType},
		{RuleConsecutive, checkConsecutive},
		{RuleOverlap, checkOverlap},
		{RuleCurrentYear, checkCurrentYear},
		{RuleProbation, checkProbation},
		{RuleDocumentation, checkDocumentation},
	}}
}

func (v *Validator) Validate(ctx context.Context, tx requestLister, c Candidate, today time.Time) error {
	for _, r := range v.rules {
		if err := r.check(ctx, tx, c, today); err != nil {
			return err
		}
	}
	return nil
}

// BalanceOverride reports whether the request may take the balance negative: sick leave
// types that can exceed their balance, when medical proof is supplied.
func (v *Validator) BalanceOverride(lt LeaveType, medicalProof string) bool {
	return lt.Category == CategorySick && lt.CanExceedBalance && strings.TrimSpace(medicalProof) != ""
}

func checkDurationType(_ context.Context, _ requestLister, c Candidate, _ time.Time) error {
	switch c.Duration.Type {
	case DurationHalfDay:
		if !c.LeaveType.AllowHalfDay {
			return invalid(RuleDurationType, "half-day leave is not allowed for %s", c.LeaveType.Name)
		}
	case DurationHourly:
		if !c.LeaveType.AllowHourly {
			return invalid(RuleDurationType, "hourly leave is not allowed for %s", c.LeaveType.Name)
		}
	}
	return nil
}

func checkConsecutive(_ context.Context, _ requestLister, c Candidate, _ time.Time) error {
	if c.LeaveType.MaxConsecutiveDays <= 0 {
		return nil
	}
	span := int(Day(c.End).Sub(Day(c.Start)).Hours()/24) + 1
	if span > c.LeaveType.MaxConsecutiveDays {
		return invalid(RuleConsecutive, "maximum %d consecutive days allowed for %s",
			c.LeaveType.MaxConsecutiveDays, c.LeaveType.Name)
	}
	return nil
}

func checkOverlap(ctx context.Context, tx requestLister, c Candidate, _ time.Time) error {
	existing, err := tx.Requests(ctx, RequestFilter{
		EmployeeID: c.Employee.ID,
		Statuses:   []Status{StatusPending, StatusApproved},
		From:       c.Start,
		To:         c.End,
		ExcludeID:  c.ExcludeRequestID,
		Limit:      1,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		r := existing[0]
		return invalid(RuleOverlap, "leave request overlaps with an existing %s request (%s to %s)",
			r.Status, r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly))
	}
	return nil
}

func checkCurrentYear(_ context.Context, _ requestLister, c Candidate, today time.Time) error {
	year := today.Year()
	if c.Start.Year() != year || c.End.Year() != year {
		return invalid(RuleCurrentYear, "leave can only be applied for the current year (%d)", year)
	}
	return nil
}

func checkProbation(_ context.Context, _ requestLister, c Candidate, today time.Time) error {
	if c.Employee.JoiningDate.IsZero() {
		return nil
	}
	ends := Day(c.Employee.JoiningDate).AddDate(0, 0, ProbationDays)
	if !Day(today).After(ends) {
		return invalid(RuleProbation, "leave cannot be applied during the probation period (until %s)",
			ends.Format(time.DateOnly))
	}
	return nil
}

func checkDocumentation(_ context.Context, _ requestLister, c Candidate, _ time.Time) error {
	if c.LeaveType.RequiresDocumentation && strings.TrimSpace(c.Documentation) == "" {
		return invalid(RuleDocumentation, "documentation is required for %s", c.LeaveType.Name)
	}
	return nil
}
