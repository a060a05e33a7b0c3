package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/leave"
	"leavedesk/internal/platform/jobs"
)

type inlineQueue struct {
	full bool
	errs []error
}

func (q *inlineQueue) Enqueue(_ string, run jobs.RunFunc) bool {
	if q.full {
		return false
	}
	_, err := run(context.Background())
	q.errs = append(q.errs, err)
	return true
}

type sentMail struct{ from, to, subject, body string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, from, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{from, to, subject, body})
	return nil
}

func TestNotifyRendersAndSends(t *testing.T) {
	q := &inlineQueue{}
	m := &fakeMailer{}
	s := New(q, m, "hr@example.com", zerolog.Nop())

	s.Notify(context.Background(), leave.Recipient{UserID: "u1", Email: "ada@example.com"}, leave.TemplateLeaveApproved, map[string]string{
		"employeeName": "Ada Lovelace",
		"leaveType":    "Casual Leave",
		"startDate":    "2025-06-02",
		"endDate":      "2025-06-04",
		"days":         "3",
		"comment":      "enjoy",
	})

	require.Len(t, m.sent, 1)
	assert.Equal(t, "hr@example.com", m.sent[0].from)
	assert.Equal(t, "Your Casual Leave request was approved", m.sent[0].subject)
	assert.Contains(t, m.sent[0].body, "2025-06-02 to 2025-06-04 (3 day(s))")
	assert.Contains(t, m.sent[0].body, "Comment: enjoy")
}

func TestNotifyFailuresStayInside(t *testing.T) {
	m := &fakeMailer{err: errors.New("smtp down")}
	q := &inlineQueue{}
	s := New(q, m, "", zerolog.Nop())

	s.Notify(context.Background(), leave.Recipient{Email: "ada@example.com"}, leave.TemplateLeaveSubmitted, map[string]string{})
	require.Len(t, q.errs, 1)
	assert.ErrorContains(t, q.errs[0], "smtp down")

	s.Notify(context.Background(), leave.Recipient{Email: "ada@example.com"}, "unknown", nil)
	s.Notify(context.Background(), leave.Recipient{UserID: "u1"}, leave.TemplateLeaveSubmitted, nil)
	assert.Len(t, q.errs, 1)

	q.full = true
	s.Notify(context.Background(), leave.Recipient{Email: "ada@example.com"}, leave.TemplateLeaveSubmitted, nil)
	assert.Len(t, q.errs, 1)
}

func TestEveryTemplateRenders(t *testing.T) {
	kinds := []leave.TemplateKind{
		leave.TemplateLeaveSubmitted,
		leave.TemplateLeaveModified,
		leave.TemplateLeaveApproved,
		leave.TemplateLeaveRejected,
		leave.TemplateLeaveCancelled,
		leave.TemplateEmployeeWelcome,
	}
	for _, kind := range kinds {
		subject, body, err := Render(kind, map[string]string{"employeeName": "Ada", "leaveType": "Sick Leave"})
		require.NoError(t, err, kind)
		assert.NotEmpty(t, subject, kind)
		assert.NotEmpty(t, body, kind)
	}
}
