package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment.
type Config struct {
	Environment string
	GinMode     string
	ServerPort  string
	JWTSecret   string
	AppBaseURL  string

	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are believed. Empty trusts none.
	TrustedProxies []string

	DB       DBConfig
	Log      LogConfig
	SMTP     SMTPConfig
	Summary  SummaryConfig
	Limits   LimitConfig
	Workflow WorkflowConfig
}

// DBConfig selects and addresses the database.
type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	Database string
	Username string
	Password string
	DebugSQL bool
}

// SMTPConfig configures outgoing notification mail.
type SMTPConfig struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string
	SkipTLSVerify bool
}

// SummaryConfig points at the text summarization service.
type SummaryConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// LimitConfig is the per-client request budget.
type LimitConfig struct {
	RPS   float64
	Burst int
}

// WorkflowConfig tunes the review workflow.
type WorkflowConfig struct {
	TemplatesPath    string
	EventDedupWindow time.Duration
	ReminderDays     int
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		Environment: strings.ToLower(os.Getenv("ENVIRONMENT")),
		GinMode:     os.Getenv("GIN_MODE"),
		ServerPort:  envOr("SERVER_PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AppBaseURL:  strings.TrimRight(envOr("APP_BASE_URL", "http://localhost:8080"), "/"),

		TrustedProxies: envList("TRUSTED_PROXIES"),

		DB: DBConfig{
			Driver:   strings.ToLower(envOr("DB_DRIVER", "mysql")),
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			Database: os.Getenv("DB_DATABASE"),
			Username: os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			DebugSQL: strings.ToLower(os.Getenv("DEBUG_SQL")) == "true",
		},
		Log: LogConfig{
			Dir:  envOr("LOG_DIR", "logs"),
			File: envOr("LOG_FILE", "officer-review-api.log"),
		},
		SMTP: SMTPConfig{
			Host:          os.Getenv("SMTP_HOST"),
			Port:          envInt("SMTP_PORT", 587),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			From:          os.Getenv("SMTP_FROM"),
			SkipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
		},
		Summary: SummaryConfig{
			URL:     os.Getenv("SUMMARY_API_URL"),
			APIKey:  os.Getenv("SUMMARY_API_KEY"),
			Model:   envOr("SUMMARY_MODEL", "gpt-4o-mini"),
			Timeout: envDuration("SUMMARY_TIMEOUT", 30*time.Second),
		},
		Limits: LimitConfig{
			RPS:   envFloat("RATE_LIMIT_RPS", 10),
			Burst: envInt("RATE_LIMIT_BURST", 20),
		},
		Workflow: WorkflowConfig{
			TemplatesPath:    os.Getenv("NOTIFICATION_TEMPLATES"),
			EventDedupWindow: envDuration("EVENT_DEDUP_WINDOW", 5*time.Second),
			ReminderDays:     envInt("REMINDER_DAYS", 3),
		},
	}
}

// IsProduction reports whether ENVIRONMENT=production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
