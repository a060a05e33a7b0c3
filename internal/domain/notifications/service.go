package notifications

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"leavedesk/internal/domain/leave"
	"leavedesk/internal/platform/email"
	"leavedesk/internal/platform/jobs"
)

type Enqueuer interface {
	Enqueue(jobType string, run jobs.RunFunc) bool
}

// Service renders leave notifications and hands delivery to the job queue. Delivery failures
// are logged and never reach the caller.
type Service struct {
	queue       Enqueuer
	Mailer      email.Mailer
	DefaultFrom string
	log         zerolog.Logger
}

func New(queue Enqueuer, mailer email.Mailer, from string, log zerolog.Logger) *Service {
	if from == "" {
		from = "no-reply@example.com"
	}
	return &Service{
		queue:       queue,
		Mailer:      mailer,
		DefaultFrom: from,
		log:         log.With().Str("component", "notifications").Logger(),
	}
}

func (s *Service) Notify(_ context.Context, to leave.Recipient, kind leave.TemplateKind, payload map[string]string) {
	if strings.TrimSpace(to.Email) == "" {
		s.log.Warn().Str("userId", to.UserID).Str("kind", string(kind)).Msg("notification skipped, recipient has no email")
		return
	}
	subject, body, err := Render(kind, payload)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("notification render failed")
		return
	}
	queued := s.queue.Enqueue(jobs.JobNotification, func(ctx context.Context) (any, error) {
		if err := s.Mailer.Send(ctx, s.DefaultFrom, to.Email, subject, body); err != nil {
			return nil, fmt.Errorf("send %s to %s: %w", kind, to.Email, err)
		}
		return map[string]string{"kind": string(kind), "to": to.Email}, nil
	})
	if !queued {
		s.log.Warn().Str("kind", string(kind)).Str("userId", to.UserID).Msg("notification dropped")
	}
}

// Render produces the subject and body for kind.
func Render(kind leave.TemplateKind, payload map[string]string) (string, string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", kind)
	}
	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, payload); err != nil {
		return "", "", err
	}
	if err := tmpl.body.Execute(&body, payload); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}
