package shared

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"leavedesk/internal/transport/http/api"
)

// Issue is one rejected input field.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects every problem with a payload or query so the caller sees them all at once.
type Validator struct {
	issues []Issue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	v.issues = append(v.issues, Issue{Field: field, Reason: reason})
}

func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
	}
}

// OneOf returns value lower-cased and trimmed. Empty input is accepted and returned as "".
func (v *Validator) OneOf(field, value string, allowed ...string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" || slices.Contains(allowed, normalized) {
		return normalized
	}
	v.Add(field, "must be one of "+strings.Join(allowed, ", "))
	return ""
}

func (v *Validator) Date(field, raw string) time.Time {
	if strings.TrimSpace(raw) == "" {
		v.Add(field, "is required")
		return time.Time{}
	}
	return v.OptionalDate(field, raw)
}

// OptionalDate returns the zero time for empty input.
func (v *Validator) OptionalDate(field, raw string) time.Time {
	parsed, err := ParseDate(strings.TrimSpace(raw))
	if err != nil {
		v.Add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}
	}
	return parsed
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		v.Add(endField, "must be on or after "+startField)
	}
}

func (v *Validator) Year(field string, year int) {
	if year < 1900 || year > 9999 {
		v.Add(field, "must be a four digit year")
	}
}

type Page struct {
	Limit  int
	Offset int
}

// Page reads limit and offset from q. A limit above maxLimit is clamped rather than rejected.
func (v *Validator) Page(q url.Values, defaultLimit, maxLimit int) Page {
	p := Page{Limit: defaultLimit}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			v.Add("limit", "must be a positive integer")
		} else {
			p.Limit = min(n, maxLimit)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add("offset", "must be a non-negative integer")
		} else {
			p.Offset = n
		}
	}
	return p
}

// Issues returns the collected issues ordered by field.
func (v *Validator) Issues() []Issue {
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b Issue) int { return strings.Compare(a.Field, b.Field) })
	return out
}

// Reject writes a 400 listing the issues, if there are any, and reports whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if len(v.issues) == 0 {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []Issue) {
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
