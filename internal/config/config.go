// Package config loads and validates the environment-variable surface
// the process reads at startup.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the fully resolved, validated process configuration.
type Config struct {
	DatabaseURL string
	BrokerURL   string // empty => job fabric runs in sync mode
	JWTSecret   string
	Environment string
	ServerPort  string

	MaxActiveOrdersPerVendor  int
	MaxPendingOrdersPerVendor int
	MonopolyThreshold         float64
	WorkingHoursEnabled       bool
	LoadBalancingStrategy     string // round-robin | least-loaded

	ParseAutoAccept       float64
	ParseNeedsReview      float64
	ProductMatchThreshold float64

	RecoveryWebhookMaxRetries           int
	RecoveryWorkflowTimeoutMinutes      int
	RecoveryVendorResponseDeadlineHours int
	RecoveryMaxVendorAttempts           int

	SlowQueryThreshold time.Duration

	RateLimitWindow      time.Duration
	RateLimitMaxRequests int

	// WhatsAppVerifyToken answers the GET hub.mode/hub.verify_token
	// handshake; WhatsAppWebhookSecret signs/verifies the POST body's
	// X-Hub-Signature-256 header.
	WhatsAppVerifyToken   string
	WhatsAppWebhookSecret string

	// QueueConfigFile optionally points at a YAML file overriding the
	// built-in queue concurrency/retry/backoff table.
	QueueConfigFile string

	// Outbound provider base URLs; empty disables that provider and the
	// tiered extractor/selector fall through to the next tier.
	OCRProviderURL      string
	LLMProviderURL      string
	ObjectStoreURL      string
	WhatsAppProviderURL string
}

// Load reads configuration from the environment, applying the documented
// defaults, and returns an error if a required variable is missing.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		BrokerURL:   os.Getenv("BROKER_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),

		MaxActiveOrdersPerVendor:  getEnvInt("MAX_ACTIVE_ORDERS_PER_VENDOR", 10),
		MaxPendingOrdersPerVendor: getEnvInt("MAX_PENDING_ORDERS_PER_VENDOR", 5),
		MonopolyThreshold:         getEnvFloat("MONOPOLY_THRESHOLD", 0.40),
		WorkingHoursEnabled:       getEnvBool("WORKING_HOURS_ENABLED", true),
		LoadBalancingStrategy:     getEnv("LOAD_BALANCING_STRATEGY", "round-robin"),

		ParseAutoAccept:       getEnvFloat("PARSE_AUTO_ACCEPT", 80),
		ParseNeedsReview:      getEnvFloat("PARSE_NEEDS_REVIEW", 50),
		ProductMatchThreshold: getEnvFloat("PRODUCT_MATCH_THRESHOLD", 0.70),

		RecoveryWebhookMaxRetries:           getEnvInt("RECOVERY_WEBHOOK_MAX_RETRIES", 3),
		RecoveryWorkflowTimeoutMinutes:      getEnvInt("RECOVERY_WORKFLOW_TIMEOUT_MINUTES", 5),
		RecoveryVendorResponseDeadlineHours: getEnvInt("RECOVERY_VENDOR_RESPONSE_DEADLINE_HOURS", 2),
		RecoveryMaxVendorAttempts:           getEnvInt("RECOVERY_MAX_VENDOR_ATTEMPTS", 5),

		SlowQueryThreshold: time.Duration(getEnvInt("SLOW_QUERY_THRESHOLD_MS", 500)) * time.Millisecond,

		RateLimitWindow:      time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
		RateLimitMaxRequests: getEnvInt("RATE_LIMIT_MAX_REQUESTS", 600),

		QueueConfigFile: os.Getenv("QUEUE_CONFIG_FILE"),

		WhatsAppVerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		WhatsAppWebhookSecret: os.Getenv("WHATSAPP_WEBHOOK_SECRET"),

		OCRProviderURL:      os.Getenv("OCR_PROVIDER_URL"),
		LLMProviderURL:      os.Getenv("LLM_PROVIDER_URL"),
		ObjectStoreURL:      os.Getenv("OBJECT_STORE_URL"),
		WhatsAppProviderURL: os.Getenv("WHATSAPP_PROVIDER_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the required/format rules.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := url.Parse(c.DatabaseURL); err != nil {
		return fmt.Errorf("DATABASE_URL must parse as a DSN: %w", err)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Environment == "production" && len(c.JWTSecret) < 64 {
		// recommended, not required — accepted as is, and no warning is emitted
		_ = c.Environment
	}
	switch c.LoadBalancingStrategy {
	case "round-robin", "least-loaded":
	default:
		return fmt.Errorf("LOAD_BALANCING_STRATEGY must be round-robin or least-loaded, got %q", c.LoadBalancingStrategy)
	}
	return nil
}

// SyncMode reports whether the job fabric should run without a broker.
func (c *Config) SyncMode() bool { return strings.TrimSpace(c.BrokerURL) == "" }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
