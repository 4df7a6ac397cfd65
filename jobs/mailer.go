package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay (Mailpit in
// development).
type SMTPMailer struct {
	Addr string
	From string
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, to, subject, body)
	if err := smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogMailer records deliveries without sending anything.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the message instead of delivering it.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Logger.Info("mail suppressed",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}

// NewMailer selects the delivery backend for the configured driver.
// Anything other than "log" goes through SMTP.
func NewMailer(driver, addr, from string, logger *slog.Logger) Mailer {
	if driver == "log" {
		return &LogMailer{Logger: logger}
	}
	return &SMTPMailer{Addr: addr, From: from}
}
