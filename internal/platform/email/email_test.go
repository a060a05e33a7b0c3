package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/platform/config"
)

func TestNewPicksMailer(t *testing.T) {
	_, ok := New(config.Config{}, zerolog.Nop()).(logMailer)
	assert.True(t, ok)

	m, ok := New(config.Config{EmailEnabled: true, SMTPHost: "smtp.example.com", SMTPPort: 2525, SMTPUser: "hr"}, zerolog.Nop()).(*smtpMailer)
	require.True(t, ok)
	assert.Equal(t, "smtp.example.com:2525", m.addr)
	assert.NotNil(t, m.auth)

	assert.NoError(t, New(config.Config{}, zerolog.Nop()).Send(context.Background(), "a@example.com", "b@example.com", "hi", "body"))
}

func TestMessageBytes(t *testing.T) {
	sentAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw, err := Message{From: "hr@example.com", To: "ada@example.com", Subject: "Leave approved", Body: "See you soon"}.Bytes(sentAt)
	require.NoError(t, err)

	msg := string(raw)
	assert.True(t, strings.HasPrefix(msg, "From: <hr@example.com>\r\nTo: <ada@example.com>\r\nSubject: Leave approved\r\n"))
	assert.Contains(t, msg, "Date: Mon, 02 Mar 2026 09:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(msg, "charset=\"UTF-8\"\r\n\r\nSee you soon"))
}

func TestMessageRejectsBadAddress(t *testing.T) {
	_, err := Message{From: "hr@example.com", To: "not an address"}.Bytes(time.Now())
	assert.Error(t, err)
}

func TestSMTPMailerNeedsRecipient(t *testing.T) {
	m := New(config.Config{EmailEnabled: true, SMTPHost: "smtp.example.com"}, zerolog.Nop())
	assert.ErrorIs(t, m.Send(context.Background(), "hr@example.com", "", "s", "b"), ErrNoRecipient)
}
