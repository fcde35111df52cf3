package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func captureSendMail(t *testing.T, result error) *sentMail {
	t.Helper()
	captured := &sentMail{}
	orig := sendMail
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return result
	}
	t.Cleanup(func() { sendMail = orig })
	return captured
}

func TestSendConfirmation_BuildsLink(t *testing.T) {
	captured := captureSendMail(t, nil)

	m := NewSMTPMailer("smtp.local", 587, "mailer", "secret", "noreply@x.com", "https://api.x.com/")
	if err := m.SendConfirmation(context.Background(), "alice@x.com", "alice", "tok123"); err != nil {
		t.Fatalf("SendConfirmation error: %v", err)
	}

	if captured.addr != "smtp.local:587" {
		t.Fatalf("unexpected addr: %s", captured.addr)
	}
	if len(captured.to) != 1 || captured.to[0] != "alice@x.com" {
		t.Fatalf("unexpected recipients: %v", captured.to)
	}
	if !strings.Contains(captured.msg, "https://api.x.com/api/auth/confirmed_email/tok123") {
		t.Fatalf("confirmation link missing:\n%s", captured.msg)
	}
	if !strings.Contains(captured.msg, "Subject: Confirm your email") {
		t.Fatalf("subject missing:\n%s", captured.msg)
	}
}

func TestSendPasswordReset_BuildsLink(t *testing.T) {
	captured := captureSendMail(t, nil)

	m := NewSMTPMailer("smtp.local", 587, "", "", "noreply@x.com", "https://api.x.com")
	if err := m.SendPasswordReset(context.Background(), "alice@x.com", "alice", "tok456"); err != nil {
		t.Fatalf("SendPasswordReset error: %v", err)
	}

	if !strings.Contains(captured.msg, "https://api.x.com/api/auth/reset_password?token=tok456") {
		t.Fatalf("reset link missing:\n%s", captured.msg)
	}
}

func TestSend_WrapsSMTPError(t *testing.T) {
	captureSendMail(t, errors.New("connection refused"))

	m := NewSMTPMailer("smtp.local", 587, "", "", "noreply@x.com", "https://api.x.com")
	err := m.SendConfirmation(context.Background(), "alice@x.com", "alice", "tok")
	if err == nil || !strings.Contains(err.Error(), "smtp error") {
		t.Fatalf("expected wrapped smtp error, got %v", err)
	}
}

func TestSend_CancelledContext(t *testing.T) {
	captured := captureSendMail(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewSMTPMailer("smtp.local", 587, "", "", "noreply@x.com", "https://api.x.com")
	if err := m.SendConfirmation(ctx, "alice@x.com", "alice", "tok"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if captured.msg != "" {
		t.Fatal("mail sent despite cancelled context")
	}
}
