package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/storm-alert-triage/internal/pipeline"
	"github.com/couchcryptid/storm-alert-triage/internal/priority"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka ingestion; empty brokers disables the feed adapter.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Shared fingerprint cache; empty URL keeps dedup in-process.
	RedisURL string

	BatchSize          int
	BatchFlushInterval time.Duration
	GridResolution     float64
	IndexRetention     time.Duration

	// Rate limiting per recipient.
	RequestsPerMinute int
	BurstSize         int
	BlockDuration     time.Duration
	SweepInterval     time.Duration

	// Delivery channels.
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMSFromNumber     string
	WebhookDefaultURL string
	WebhookTimeout    time.Duration

	Routes []pipeline.Route
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	blockDuration, err := parseDuration("RATE_LIMIT_BLOCK_DURATION", "5m")
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parseDuration("SWEEP_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	indexRetention, err := parseDuration("INDEX_RETENTION", "1h")
	if err != nil {
		return nil, err
	}
	webhookTimeout, err := parseDuration("WEBHOOK_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	routes, err := parseRoutes(envOrDefault("ALERT_ROUTES",
		"webhook::LOW,email:ops@example.com:HIGH,sms:+15550100100:CRITICAL"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "raw-weather-alerts"),
		KafkaGroupID: envOrDefault("KAFKA_GROUP_ID", "storm-alert-triage"),

		RedisURL: os.Getenv("REDIS_URL"),

		BatchSize:          parseIntOrDefault("BATCH_SIZE", 50),
		BatchFlushInterval: flushInterval,
		GridResolution:     parseFloatOrDefault("GRID_RESOLUTION", 0.1),
		IndexRetention:     indexRetention,

		RequestsPerMinute: parseIntOrDefault("RATE_LIMIT_PER_MINUTE", 60),
		BurstSize:         parseIntOrDefault("RATE_LIMIT_BURST", 10),
		BlockDuration:     blockDuration,
		SweepInterval:     sweepInterval,

		SMTPHost:          envOrDefault("SMTP_HOST", "localhost"),
		SMTPPort:          parseIntOrDefault("SMTP_PORT", 587),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMSFromNumber:     envOrDefault("SMS_FROM_NUMBER", "+15550100000"),
		WebhookDefaultURL: os.Getenv("WEBHOOK_DEFAULT_URL"),
		WebhookTimeout:    webhookTimeout,

		Routes: routes,
	}

	if cfg.BatchSize <= 0 {
		return nil, errors.New("BATCH_SIZE must be positive")
	}
	if cfg.BurstSize <= 0 {
		return nil, errors.New("RATE_LIMIT_BURST must be positive")
	}
	if cfg.RequestsPerMinute <= 0 {
		return nil, errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// parseRoutes parses "channel:recipient:minTier" triples separated by
// commas. The recipient may be empty for channels with a default target;
// recipients containing colons (URLs) are supported by splitting from both
// ends.
func parseRoutes(value string) ([]pipeline.Route, error) {
	var routes []pipeline.Route
	for _, item := range parseList(value) {
		channel, rest, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("invalid route %q: want channel:recipient:minTier", item)
		}
		idx := strings.LastIndex(rest, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid route %q: want channel:recipient:minTier", item)
		}
		recipient, tierName := rest[:idx], rest[idx+1:]

		tier := priority.Tier(strings.ToUpper(strings.TrimSpace(tierName)))
		if tier.Rank() == 0 {
			return nil, fmt.Errorf("invalid route %q: unknown tier %q", item, tierName)
		}

		routes = append(routes, pipeline.Route{
			Channel:   strings.TrimSpace(channel),
			Recipient: strings.TrimSpace(recipient),
			MinTier:   tier,
		})
	}
	return routes, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseIntOrDefault(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

func parseFloatOrDefault(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, s)
	}
	return d, nil
}
