package services

import (
	"context"
	"errors"
	"testing"

	"officer-review-api/config"
	"officer-review-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	to                  []string
	subject, html, text string
}

type fakeSender struct {
	sent []capturedMail
	err  error
}

func (s *fakeSender) SendMail(to []string, subject, html, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, capturedMail{to: to, subject: subject, html: html, text: text})
	return nil
}

func newTestMailNotifier(t *testing.T, sender MailSender) *MailNotifier {
	t.Helper()
	set, err := config.LoadTemplates("")
	require.NoError(t, err)
	n, err := NewMailNotifier(sender, set)
	require.NoError(t, err)
	return n
}

func TestMailNotifierRendersTemplates(t *testing.T) {
	sender := &fakeSender{}
	n := newTestMailNotifier(t, sender)

	ok := n.Notify(context.Background(), Recipient{OfficerID: 2, Name: "Dana", Email: "dana@example.com"}, models.NotifyAssignmentCreated, NotificationData{
		RecipientName: "Dana",
		OfficerName:   "Sam <Ops>",
		PeriodName:    "FY2026 H1",
		URL:           "https://reviews.example.com/assignments/9",
	})
	require.True(t, ok)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"dana@example.com"}, msg.to)
	assert.Equal(t, "Assessment Assignment: Sam <Ops> - FY2026 H1", msg.subject)
	assert.Contains(t, msg.html, "Sam &lt;Ops&gt;")
	assert.Contains(t, msg.html, "https://reviews.example.com/assignments/9")
	assert.Contains(t, msg.text, "Hello Dana,")
}

func TestMailNotifierReportsFailures(t *testing.T) {
	recipient := Recipient{OfficerID: 2, Name: "Dana", Email: "dana@example.com"}

	failing := newTestMailNotifier(t, &fakeSender{err: errors.New("relay down")})
	assert.False(t, failing.Notify(context.Background(), recipient, models.NotifyResultsReleased, NotificationData{}))

	sender := &fakeSender{}
	n := newTestMailNotifier(t, sender)
	assert.False(t, n.Notify(context.Background(), Recipient{OfficerID: 3, Email: "not-an-address"}, models.NotifyDueReminder, NotificationData{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, n.Notify(ctx, recipient, models.NotifyDueReminder, NotificationData{}))
	assert.Empty(t, sender.sent)
}

func TestNewMailNotifierRequiresEveryKind(t *testing.T) {
	set, err := config.LoadTemplates("")
	require.NoError(t, err)
	delete(set, string(models.NotifyDueReminder))

	_, err = NewMailNotifier(&fakeSender{}, set)
	assert.ErrorContains(t, err, "due_reminder")
}

func TestLogNotifierNeverDelivers(t *testing.T) {
	assert.False(t, LogNotifier{}.Notify(context.Background(), Recipient{OfficerID: 1}, models.NotifyResultsReleased, NotificationData{}))
}
