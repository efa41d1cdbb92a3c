package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL and REDIS_URL are
// required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Counter store (rate limits, health window, opt-out flags)
	RedisURL string

	// WhatsApp provider
	WhatsAppBaseURL    string
	WhatsAppToken      string
	WhatsAppTimeout    time.Duration
	DefaultCountryCode string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTimeout  time.Duration

	// Worker pool (one pool shared across all channels)
	Workers         int
	DispatchTimeout time.Duration

	// Per-channel dispatch rate, tokens per second
	ChannelRate int

	// Per-recipient window for manual sends
	RecipientLimit  int
	RecipientWindow time.Duration

	// Health monitor rolling window
	HealthWindow time.Duration

	// In-process retry tier delays: index 0 = first re-enqueue delay, etc.
	AttemptBackoff []time.Duration

	// Scheduler
	SchedulerInterval time.Duration
	SweepTimeout      time.Duration
	ScheduledBatch    int
	RetryBatch        int
	StalledBatch      int
	RetryDelay        time.Duration
	BackoffBase       time.Duration
	JitterMax         time.Duration
	RequeueTimeout    time.Duration

	// Reminder engine
	ReminderHorizon   time.Duration
	ReminderLookahead time.Duration
	BirthdayWindow    time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisURL: redisURL,

		WhatsAppBaseURL:    getEnv("WHATSAPP_BASE_URL", "https://graph.example.com/v1"),
		WhatsAppToken:      getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppTimeout:    getDuration("WHATSAPP_TIMEOUT", 10*time.Second),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "91"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@school.example"),
		SMTPTimeout:  getDuration("SMTP_TIMEOUT", 15*time.Second),

		Workers:         getInt("WORKERS", 10),
		DispatchTimeout: getDuration("DISPATCH_TIMEOUT", 120*time.Second),

		ChannelRate: getInt("CHANNEL_RATE_PER_SECOND", 50),

		RecipientLimit:  getInt("RECIPIENT_LIMIT", 30),
		RecipientWindow: getDuration("RECIPIENT_WINDOW", time.Hour),

		HealthWindow: getDuration("HEALTH_WINDOW", 5*time.Minute),

		AttemptBackoff: []time.Duration{
			getDuration("ATTEMPT_BACKOFF_1", 60*time.Second),
			getDuration("ATTEMPT_BACKOFF_2", 300*time.Second),
			getDuration("ATTEMPT_BACKOFF_3", 900*time.Second),
		},

		SchedulerInterval: getDuration("SCHEDULER_INTERVAL", 60*time.Second),
		SweepTimeout:      getDuration("SWEEP_TIMEOUT", 300*time.Second),
		ScheduledBatch:    getInt("SCHEDULED_BATCH", 100),
		RetryBatch:        getInt("RETRY_BATCH", 50),
		StalledBatch:      getInt("STALLED_BATCH", 50),
		RetryDelay:        getDuration("RETRY_DELAY", time.Minute),
		BackoffBase:       getDuration("BACKOFF_BASE", 5*time.Minute),
		JitterMax:         getDuration("JITTER_MAX", 30*time.Second),
		RequeueTimeout:    getDuration("REQUEUE_TIMEOUT", 20*time.Minute),

		ReminderHorizon:   getDuration("REMINDER_HORIZON", 5*time.Minute),
		ReminderLookahead: getDuration("REMINDER_LOOKAHEAD", 48*time.Hour),
		BirthdayWindow:    getDuration("BIRTHDAY_WINDOW", 168*time.Hour),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
