package leave

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrInsufficientBalance   = fmt.Errorf("%w: insufficient leave balance", ErrValidation)
	ErrLeaveTypeInactive     = fmt.Errorf("%w: leave type is not active", ErrValidation)
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
	ErrDuplicateName         = fmt.Errorf("%w: leave type name already exists", ErrConflict)
	ErrDuplicateHoliday      = fmt.Errorf("%w: holiday already recorded for date", ErrConflict)
	ErrAlreadyExists         = fmt.Errorf("%w: balance already exists", ErrConflict)
	ErrInternalInconsistency = errors.New("internal inconsistency")
	ErrRetryable             = errors.New("temporarily unavailable")
	ErrLockTimeout           = fmt.Errorf("%w: lock wait timed out", ErrRetryable)
)

type Rule string

const (
	RuleInput         Rule = "input"
	RuleDurationType  Rule = "duration_type"
	RuleConsecutive   Rule = "max_consecutive_days"
	RuleOverlap       Rule = "overlap"
	RuleCurrentYear   Rule = "current_year"
	RuleProbation     Rule = "probation"
	RuleDocumentation Rule = "documentation"
	RuleBalance       Rule = "balance"
)

// ValidationError is a user-correctable rule violation. Reason is safe to show to the caller.
type ValidationError struct {
	Rule   Rule
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	if e.Rule == RuleBalance {
		return ErrInsufficientBalance
	}
	return ErrValidation
}

func invalid(rule Rule, format string, args ...any) error {
	return &ValidationError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindInsufficientBalance
	KindInvalidTransition
	KindNotFound
	KindForbidden
	KindConflict
	KindInternalInconsistency
	KindRetryable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInternalInconsistency:
		return "internal_inconsistency"
	case KindRetryable:
		return "retryable"
	}
	return "unknown"
}

// KindOf classifies err. The more specific kind wins when an error matches several.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInternalInconsistency):
		return KindInternalInconsistency
	case errors.Is(err, ErrRetryable):
		return KindRetryable
	}
	return KindUnknown
}

// Reason returns the caller-facing message for err.
func Reason(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	switch KindOf(err) {
	case KindInternalInconsistency:
		return "internal error"
	case KindRetryable:
		return "temporarily unavailable, retry the request"
	case KindUnknown:
		return "internal error"
	}
	return err.Error()
}
