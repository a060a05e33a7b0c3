package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

const hoursPerDay = 8

var (
	one     = decimal.NewFromInt(1)
	half    = decimal.NewFromFloat(0.5)
	maxHour = decimal.NewFromInt(hoursPerDay)
)

// Date returns the UTC midnight of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Duration describes how much of each day a request takes.
type Duration struct {
	Type      DurationType
	StartHalf Half
	Hours     decimal.NullDecimal
}

// Calendar classifies dates against a fixed holiday set. Build one per operation from the
// holidays active at that time.
type Calendar struct {
	holidays []Holiday
}

func NewCalendar(holidays []Holiday) Calendar {
	active := make([]Holiday, 0, len(holidays))
	for _, h := range holidays {
		if h.Active {
			active = append(active, h)
		}
	}
	return Calendar{holidays: active}
}

func (c Calendar) Classify(day time.Time) DayKind {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	}
	for _, h := range c.holidays {
		if h.OccursOn(day) {
			return PublicHoliday
		}
	}
	return WorkingDay
}

// WorkingDays returns the working dates in [start, end].
func (c Calendar) WorkingDays(start, end time.Time) []time.Time {
	var out []time.Time
	for day := Day(start); !day.After(Day(end)); day = day.AddDate(0, 0, 1) {
		if c.Classify(day) == WorkingDay {
			out = append(out, day)
		}
	}
	return out
}

// CountWorkingDays returns the leave-days consumed by a request over [start, end].
// Hourly leave ignores the range and counts hours/8. Half-day leave counts 0.5 for every
// working date in the range.
func (c Calendar) CountWorkingDays(start, end time.Time, d Duration) decimal.Decimal {
	if d.Type == DurationHourly {
		if !d.Hours.Valid {
			return decimal.Zero
		}
		return d.Hours.Decimal.Div(maxHour)
	}
	perDay := one
	if d.Type == DurationHalfDay {
		perDay = half
	}
	n := int64(len(c.WorkingDays(start, end)))
	return perDay.Mul(decimal.NewFromInt(n))
}
