package leave_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"leavedesk/internal/domain/leave"
)

func TestStatusTransitions(t *testing.T) {
	all := []leave.Status{leave.StatusPending, leave.StatusApproved, leave.StatusRejected, leave.StatusCancelled}
	allowed := map[leave.Status][]leave.Status{
		leave.StatusPending:  {leave.StatusApproved, leave.StatusRejected, leave.StatusCancelled},
		leave.StatusApproved: {leave.StatusCancelled},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, leave.StatusRejected.Terminal())
	assert.True(t, leave.StatusCancelled.Terminal())
	assert.False(t, leave.StatusApproved.Terminal())
	assert.False(t, leave.Status("archived").Valid())
	assert.False(t, leave.Status("archived").Terminal())
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind leave.Kind
		code string
	}{
		{fmt.Errorf("wrap: %w", leave.ErrNotFound), leave.KindNotFound, "not_found"},
		{leave.ErrInsufficientBalance, leave.KindInsufficientBalance, "insufficient_balance"},
		{leave.ErrLeaveTypeInactive, leave.KindValidation, "validation_error"},
		{leave.ErrDuplicateHoliday, leave.KindConflict, "conflict"},
		{leave.ErrLockTimeout, leave.KindRetryable, "retryable"},
		{leave.ErrInvalidTransition, leave.KindInvalidTransition, "invalid_transition"},
		{leave.ErrForbidden, leave.KindForbidden, "forbidden"},
		{leave.ErrInternalInconsistency, leave.KindInternalInconsistency, "internal_inconsistency"},
		{errors.New("boom"), leave.KindUnknown, "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, leave.KindOf(tc.err), tc.err.Error())
		assert.Equal(t, tc.code, tc.kind.String())
	}
	assert.Equal(t, "internal error", leave.Reason(errors.New("pq: relation missing")))
}
