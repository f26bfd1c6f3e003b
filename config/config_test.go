package config

import (
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "APP_BASE_URL", "DB_DRIVER", "SMTP_PORT", "SUMMARY_TIMEOUT", "EVENT_DEDUP_WINDOW", "REMINDER_DAYS", "RATE_LIMIT_RPS", "TRUSTED_PROXIES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "http://localhost:8080", cfg.AppBaseURL)
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 30*time.Second, cfg.Summary.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Workflow.EventDedupWindow)
	assert.Equal(t, 3, cfg.Workflow.ReminderDays)
	assert.Equal(t, 10.0, cfg.Limits.RPS)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("APP_BASE_URL", "https://reviews.example.com/")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("SUMMARY_TIMEOUT", "45s")
	t.Setenv("EVENT_DEDUP_WINDOW", "2s")
	t.Setenv("REMINDER_DAYS", "-4")
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.1 ")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://reviews.example.com", cfg.AppBaseURL)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 45*time.Second, cfg.Summary.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Workflow.EventDedupWindow)
	assert.Equal(t, 3, cfg.Workflow.ReminderDays, "non-positive values fall back")
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}

func TestDialectorFor(t *testing.T) {
	mysqlDialector, err := dialectorFor(DBConfig{Host: "db", Port: "3306", Database: "reviews", Username: "app", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", mysqlDialector.Name())

	pg, err := dialectorFor(DBConfig{Driver: "postgres", Host: "db", Port: "5432", Database: "reviews"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", pg.Name())

	_, err = dialectorFor(DBConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "oracle")
}

func TestLoadTemplatesBuiltIn(t *testing.T) {
	set, err := LoadTemplates("")
	require.NoError(t, err)
	for _, kind := range []string{"assignment_created", "reviewers_released", "results_released", "due_reminder"} {
		tmpl, ok := set[kind]
		require.True(t, ok, kind)
		assert.NotEmpty(t, tmpl.Subject, kind)
		assert.NotEmpty(t, tmpl.HTML, kind)
	}
}

func TestLoadTemplatesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
due_reminder:
  subject: "Reminder: {{.PeriodName}}"
  html: "<p>{{.DaysRemaining}} days left</p>"
`), 0o644))

	set, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, "Reminder: {{.PeriodName}}", set["due_reminder"].Subject)
	assert.Empty(t, set["due_reminder"].Text)
	assert.Contains(t, set["assignment_created"].Subject, "Assessment Assignment")
}

func TestLoadTemplatesErrors(t *testing.T) {
	_, err := LoadTemplates(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read")

	_, err = ParseTemplates([]byte("  \n"))
	assert.ErrorContains(t, err, "empty")

	_, err = ParseTemplates([]byte("due_reminder: [not, a, template"))
	assert.ErrorContains(t, err, "decode")
}

func TestMailerConfigured(t *testing.T) {
	var nilMailer *Mailer
	assert.False(t, nilMailer.Configured())
	assert.False(t, NewMailer(SMTPConfig{Host: "smtp.example.com"}).Configured())
	assert.True(t, NewMailer(SMTPConfig{Host: "smtp.example.com", From: "reviews@example.com"}).Configured())

	assert.NoError(t, NewMailer(SMTPConfig{}).SendMail(nil, "s", "h", ""))
	assert.ErrorContains(t, NewMailer(SMTPConfig{}).SendMail([]string{"a@example.com"}, "s", "h", ""), "smtp not configured")
}

func TestInitLoggingWritesFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		LogWriter = os.Stdout
	})
	lc := LogConfig{Dir: filepath.Join(t.TempDir(), "nested"), File: "api.log"}

	closer, w := InitLogging(lc)
	require.NotNil(t, closer)
	log.Print("workflow started")
	require.NoError(t, closer.Close())

	assert.Same(t, w, LogWriter)
	data, err := os.ReadFile(lc.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "workflow started")
}

func TestInitLoggingFallsBackToStdout(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	closer, w := InitLogging(LogConfig{Dir: blocker, File: "api.log"})
	assert.Nil(t, closer)
	assert.Equal(t, os.Stdout, w)
}
