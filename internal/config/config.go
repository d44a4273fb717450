package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
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

	// Channel gateway endpoints. Channels without a URL get no sender
	// registered and are reported as not implemented by the processor.
	WebhookURLs    map[domain.Channel]string
	AdapterTimeout time.Duration

	// Rate limiting: maximum sends per second per channel
	RateLimit int

	// Processing trigger
	ProcessInterval  time.Duration
	ProcessBatchSize int

	// Maintenance (cron specs, robfig/cron syntax)
	CleanupSchedule  string
	RetentionDays    int
	EscalateSchedule string
	EscalateAfter    time.Duration
	EscalateStep     int
	ReapSchedule     string
	ReapAfter        time.Duration
	DepthSchedule    string

	// Kafka ingest; disabled when no brokers are configured
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		WebhookURLs: map[domain.Channel]string{
			domain.ChannelTelegram: os.Getenv("TELEGRAM_GATEWAY_URL"),
			domain.ChannelWhatsApp: os.Getenv("WHATSAPP_GATEWAY_URL"),
			domain.ChannelEmail:    os.Getenv("EMAIL_GATEWAY_URL"),
			domain.ChannelInApp:    os.Getenv("IN_APP_GATEWAY_URL"),
		},
		AdapterTimeout: getDuration("ADAPTER_TIMEOUT", 10*time.Second),

		RateLimit: getInt("RATE_LIMIT_PER_CHANNEL", 100),

		ProcessInterval:  getDuration("PROCESS_INTERVAL", 10*time.Second),
		ProcessBatchSize: getInt("PROCESS_BATCH_SIZE", 50),

		CleanupSchedule:  getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),
		RetentionDays:    getInt("RETENTION_DAYS", 30),
		EscalateSchedule: getEnv("ESCALATE_SCHEDULE", "@every 1m"),
		EscalateAfter:    getDuration("ESCALATE_AFTER", 10*time.Minute),
		EscalateStep:     getInt("ESCALATE_STEP", 1),
		ReapSchedule:     getEnv("REAP_SCHEDULE", "@every 1m"),
		ReapAfter:        getDuration("REAP_AFTER", 15*time.Minute),
		DepthSchedule:    getEnv("DEPTH_SCHEDULE", "@every 15s"),

		KafkaBrokers: getList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "notification-enqueue"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "delivery-queue"),
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

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
