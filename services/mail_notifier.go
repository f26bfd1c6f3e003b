package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log"
	texttemplate "text/template"

	"officer-review-api/config"
	"officer-review-api/models"
	"officer-review-api/utils"
)

// MailSender is the outgoing mail transport.
type MailSender interface {
	SendMail(to []string, subject, html, text string) error
}

type compiledTemplate struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// MailNotifier renders notification templates and sends them over SMTP.
type MailNotifier struct {
	sender    MailSender
	templates map[models.NotificationKind]compiledTemplate
}

// NewMailNotifier compiles one template per notification kind. Every kind
// must be present in set.
func NewMailNotifier(sender MailSender, set map[string]config.NotificationTemplate) (*MailNotifier, error) {
	n := &MailNotifier{sender: sender, templates: map[models.NotificationKind]compiledTemplate{}}
	for _, kind := range models.NotificationKinds() {
		raw, ok := set[string(kind)]
		if !ok || raw.Subject == "" || raw.HTML == "" {
			return nil, fmt.Errorf("notification template %q is missing subject or html body", kind)
		}
		subject, err := texttemplate.New(string(kind) + ".subject").Parse(raw.Subject)
		if err != nil {
			return nil, fmt.Errorf("notification template %q subject: %w", kind, err)
		}
		html, err := htmltemplate.New(string(kind) + ".html").Parse(raw.HTML)
		if err != nil {
			return nil, fmt.Errorf("notification template %q html: %w", kind, err)
		}
		compiled := compiledTemplate{subject: subject, html: html}
		if raw.Text != "" {
			text, err := texttemplate.New(string(kind) + ".text").Parse(raw.Text)
			if err != nil {
				return nil, fmt.Errorf("notification template %q text: %w", kind, err)
			}
			compiled.text = text
		}
		n.templates[kind] = compiled
	}
	return n, nil
}

// Notify renders and sends one message. Failures are logged and reported as false.
func (n *MailNotifier) Notify(ctx context.Context, recipient Recipient, kind models.NotificationKind, data NotificationData) bool {
	if err := ctx.Err(); err != nil {
		log.Printf("notification %s to officer %d skipped: %v", kind, recipient.OfficerID, err)
		return false
	}
	if !utils.ValidateEmail(recipient.Email) {
		log.Printf("notification %s skipped: officer %d has no valid email", kind, recipient.OfficerID)
		return false
	}
	subject, html, text, err := n.render(kind, data)
	if err != nil {
		log.Printf("notification %s render failed: %v", kind, err)
		return false
	}
	if err := n.sender.SendMail([]string{recipient.Email}, subject, html, text); err != nil {
		log.Printf("notification %s to %s failed: %v", kind, recipient.Email, err)
		return false
	}
	return true
}

func (n *MailNotifier) render(kind models.NotificationKind, data NotificationData) (string, string, string, error) {
	tmpl, ok := n.templates[kind]
	if !ok {
		return "", "", "", fmt.Errorf("no template for %q", kind)
	}

	var subject, html, text bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", "", err
	}
	if err := tmpl.html.Execute(&html, data); err != nil {
		return "", "", "", err
	}
	if tmpl.text != nil {
		if err := tmpl.text.Execute(&text, data); err != nil {
			return "", "", "", err
		}
	}
	return subject.String(), html.String(), text.String(), nil
}

// LogNotifier stands in for the mail notifier when SMTP is not configured.
// It logs the notification and reports it as undelivered.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, recipient Recipient, kind models.NotificationKind, data NotificationData) bool {
	log.Printf("notification %s for officer %d not sent (mail disabled): %s", kind, recipient.OfficerID, data.URL)
	return false
}
