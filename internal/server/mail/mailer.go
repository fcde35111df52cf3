// Package mail sends transactional email for account flows.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer delivers account-related messages. Tokens are embedded into links
// built from the service base URL.
type Mailer interface {
	SendConfirmation(ctx context.Context, to string, username string, token string) error
	SendPasswordReset(ctx context.Context, to string, username string, token string) error
}

// SMTPMailer sends mail through a plain SMTP endpoint.
type SMTPMailer struct {
	addr    string
	auth    smtp.Auth
	from    string
	baseURL string
}

// sendMail is a seam for testing smtp.SendMail.
var sendMail = smtp.SendMail

func NewSMTPMailer(host string, port int, username, password, from, baseURL string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr:    fmt.Sprintf("%s:%d", host, port),
		auth:    auth,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (m *SMTPMailer) SendConfirmation(ctx context.Context, to string, username string, token string) error {
	link := fmt.Sprintf("%s/api/auth/confirmed_email/%s", m.baseURL, token)
	body := fmt.Sprintf("Hi %s,\r\n\r\nPlease confirm your email address:\r\n%s\r\n", username, link)
	return m.send(ctx, to, "Confirm your email", body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to string, username string, token string) error {
	link := fmt.Sprintf("%s/api/auth/reset_password?token=%s", m.baseURL, token)
	body := fmt.Sprintf("Hi %s,\r\n\r\nUse this link to reset your password:\r\n%s\r\n", username, link)
	return m.send(ctx, to, "Reset your password", body)
}

func (m *SMTPMailer) send(ctx context.Context, to string, subject string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := sendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	return nil
}
