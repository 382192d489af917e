package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/config"
)

// Mailer sends notification emails over SMTP. A zero SMTPHost disables sending,
// which keeps local environments quiet.
type Mailer struct {
	cfg    config.EmailConfig
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a Mailer from config.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Enabled reports whether SMTP is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.SMTPHost != ""
}

// Send delivers a plain-text email to a single recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		m.logger.Debug("smtp disabled, skipping email", zap.String("to", to))
		return nil
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.cfg.FromName, m.cfg.FromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	if err := m.send(addr, auth, m.cfg.FromAddress, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
