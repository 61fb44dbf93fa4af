package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/XCEIN/consyf-sub000/internal/infra/config"
)

func TestSMTPMailerComposesMessage(t *testing.T) {
	orig := sendMail
	defer func() { sendMail = orig }()

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	m := NewSMTPMailer(config.SMTPSettings{Host: "smtp.local", Port: 2525, From: "no-reply@market.local"})
	m.now = func() time.Time { return time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC) }

	if err := m.Send(context.Background(), "ann@x.com", "Verify your email", "Code: 4821\nThanks"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if gotAddr != "smtp.local:2525" || gotFrom != "no-reply@market.local" || len(gotTo) != 1 || gotTo[0] != "ann@x.com" {
		t.Fatalf("unexpected envelope addr=%s from=%s to=%v", gotAddr, gotFrom, gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Verify your email\r\n") {
		t.Fatalf("missing subject header: %q", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\nCode: 4821\r\nThanks") {
		t.Fatalf("unexpected body: %q", gotMsg)
	}
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	orig := sendMail
	defer func() { sendMail = orig }()
	sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatalf("sendMail must not be called")
		return nil
	}

	m := NewSMTPMailer(config.SMTPSettings{Host: "smtp.local", Port: 25})
	if err := m.Send(context.Background(), "ann@x.com\r\nBcc: eve@x.com", "s", "b"); err == nil {
		t.Fatalf("expected header injection to be rejected")
	}
}

func TestSMTPMailerWrapsFailure(t *testing.T) {
	orig := sendMail
	defer func() { sendMail = orig }()
	boom := errors.New("connection refused")
	sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	m := NewSMTPMailer(config.SMTPSettings{Host: "smtp.local", Port: 25})
	if err := m.Send(context.Background(), "ann@x.com", "s", "b"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
}

func TestNewFallsBackToLoggingMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mailer := New(config.SMTPSettings{}, zap.New(core))

	if _, ok := mailer.(*LoggingMailer); !ok {
		t.Fatalf("expected LoggingMailer, got %T", mailer)
	}
	if err := mailer.Send(context.Background(), "ann@x.com", "Verify", "Code: 4821"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one info entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["to"] != "a***@x.com" {
		t.Fatalf("expected masked recipient, got %v", entries[0].ContextMap())
	}
}
