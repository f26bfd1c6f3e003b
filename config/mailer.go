package config

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

// Mailer sends HTML mail through the configured SMTP relay.
type Mailer struct {
	cfg SMTPConfig
}

// NewMailer builds a mailer from SMTP settings.
func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Configured reports whether host and sender are set.
func (m *Mailer) Configured() bool {
	return m != nil && m.cfg.Host != "" && m.cfg.From != ""
}

// SendMail delivers one message. text is attached as the plain alternative when non-empty.
func (m *Mailer) SendMail(to []string, subject, html, text string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.Configured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	if text != "" {
		msg.SetBody("text/plain", text)
		msg.AddAlternative("text/html", html)
	} else {
		msg.SetBody("text/html", html)
	}

	d := mail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Pass)

	// STARTTLS is mandatory on 587.
	d.StartTLSPolicy = mail.MandatoryStartTLS

	// ServerName must match the relay host unless verification is skipped (dev only).
	d.TLSConfig = &tls.Config{
		ServerName:         m.cfg.Host,
		InsecureSkipVerify: m.cfg.SkipTLSVerify,
	}

	return d.DialAndSend(msg)
}
