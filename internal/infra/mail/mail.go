package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/infra/config"
	"github.com/XCEIN/consyf-sub000/internal/infra/logger"
)

// sendMail is replaced in tests.
var sendMail = smtp.SendMail

// SMTPMailer delivers plain-text mail through an SMTP relay.
// smtp.SendMail upgrades to STARTTLS whenever the server offers it.
type SMTPMailer struct {
	cfg config.SMTPSettings
	now func() time.Time
}

// NewSMTPMailer constructs a mailer for the configured relay.
func NewSMTPMailer(cfg config.SMTPSettings) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, now: time.Now}
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("mail: header injection rejected")
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := sendMail(addr, auth, m.cfg.From, []string{to}, m.compose(to, subject, body)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) compose(to, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}

// LoggingMailer writes messages to the log instead of sending them.
// Bodies are logged at debug level only, they carry one-time secrets.
type LoggingMailer struct {
	logger *zap.Logger
}

// NewLoggingMailer constructs a development mailer.
func NewLoggingMailer(log *zap.Logger) *LoggingMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingMailer{logger: log}
}

// Send logs the message.
func (m *LoggingMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("mail captured", zap.String("to", logger.MaskEmail(to)), zap.String("subject", subject))
	m.logger.Debug("mail body", zap.String("to", to), zap.String("body", body))
	return nil
}

// New picks the SMTP mailer when a relay host is configured.
func New(cfg config.SMTPSettings, log *zap.Logger) port.Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return NewLoggingMailer(log)
	}
	return NewSMTPMailer(cfg)
}

var (
	_ port.Mailer = (*SMTPMailer)(nil)
	_ port.Mailer = (*LoggingMailer)(nil)
)
