package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"leavedesk/internal/platform/config"
)

var ErrNoRecipient = errors.New("email: no recipient")

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Message is one plain-text notification email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Bytes renders the message in RFC 5322 form with CRLF line endings.
func (m Message) Bytes(sentAt time.Time) ([]byte, error) {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return nil, fmt.Errorf("email: sender %q: %w", m.From, err)
	}
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return nil, fmt.Errorf("email: recipient %q: %w", m.To, err)
	}

	var buf bytes.Buffer
	header := func(k, v string) { buf.WriteString(k + ": " + v + "\r\n") }
	header("From", from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", sentAt.UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	buf.WriteString("\r\n")
	buf.WriteString(m.Body)
	return buf.Bytes(), nil
}

type logMailer struct {
	log zerolog.Logger
}

func (m logMailer) Send(_ context.Context, _, to, subject, _ string) error {
	m.log.Debug().Str("to", to).Str("subject", subject).Msg("email disabled, message dropped")
	return nil
}

type smtpMailer struct {
	host     string
	addr     string
	startTLS bool
	auth     smtp.Auth
	timeout  time.Duration
	now      func() time.Time
}

// New returns an SMTP mailer, or one that only logs when email is switched off.
func New(cfg config.Config, log zerolog.Logger) Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return logMailer{log: log.With().Str("component", "email").Logger()}
	}
	m := &smtpMailer{
		host:     cfg.SMTPHost,
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		startTLS: cfg.SMTPUseTLS,
		timeout:  10 * time.Second,
		now:      time.Now,
	}
	if cfg.SMTPUser != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return m
}

func (s *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if to == "" {
		return ErrNoRecipient
	}
	data, err := Message{From: from, To: to, Subject: subject, Body: body}.Bytes(s.now())
	if err != nil {
		return err
	}
	return s.deliver(ctx, from, to, data)
}

func (s *smtpMailer) deliver(ctx context.Context, from, to string, data []byte) error {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("email: dial %s: %w", s.addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if s.startTLS {
		if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("email: starttls: %w", err)
		}
	}
	if s.auth != nil {
		if err := c.Auth(s.auth); err != nil {
			return fmt.Errorf("email: auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
