package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every knob the pipeline consumes. Values come from the
// environment so main stays lean; services receive only the fields they need.
type Config struct {
	Addr string

	// Crypto
	EncryptionKeyHex string

	// Registry clients
	RegistryBaseURL    string
	RegistryServiceID  string
	CompanyRegistryURL string
	CompanySecretKey   string
	RequestTimeout     time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration

	// Outbound rate limiting
	RateLimitPerMinute int

	// Queue
	MaxConcurrent   int
	MaxQueueSize    int
	RetryAttempts   int
	RetryDelay      time.Duration
	RetentionWindow time.Duration

	// Bulk jobs
	BatchSize int

	// Health and budget
	HealthCheckInterval time.Duration
	ErrorRateThreshold  float64
	ErrorRateMinSample  int
	DailyCallLimit      int
	MonthlyCallLimit    int
	DailyCostLimit      float64
	MonthlyCostLimit    float64
	CostPerCall         float64

	// Link tokens
	LinkSigningKey string
	LinkTTL        time.Duration

	// Optional backends
	RedisURL    string
	PostgresDSN string
}

// FromEnv builds a Config from environment variables with development
// defaults. Production deployments override everything that matters.
func FromEnv() Config {
	return Config{
		Addr: envStr("KYCFLOW_ADDR", ":8080"),

		EncryptionKeyHex: os.Getenv("ENCRYPTION_KEY"),

		RegistryBaseURL:    envStr("REGISTRY_API_URL", "https://api.registry.example"),
		RegistryServiceID:  os.Getenv("REGISTRY_SERVICE_ID"),
		CompanyRegistryURL: envStr("COMPANY_REGISTRY_URL", "https://company.registry.example"),
		CompanySecretKey:   os.Getenv("COMPANY_REGISTRY_SECRET"),
		RequestTimeout:     envDuration("REGISTRY_TIMEOUT", 30*time.Second),
		MaxRetries:         envInt("REGISTRY_MAX_RETRIES", 3),
		RetryBaseDelay:     envDuration("REGISTRY_RETRY_BASE_DELAY", time.Second),

		RateLimitPerMinute: envInt("REGISTRY_RATE_LIMIT_PER_MINUTE", 50),

		MaxConcurrent:   envInt("QUEUE_MAX_CONCURRENT", 10),
		MaxQueueSize:    envInt("QUEUE_MAX_SIZE", 1000),
		RetryAttempts:   envInt("QUEUE_RETRY_ATTEMPTS", 3),
		RetryDelay:      envDuration("QUEUE_RETRY_DELAY", 2*time.Second),
		RetentionWindow: envDuration("QUEUE_RETENTION_WINDOW", 5*time.Minute),

		BatchSize: envInt("BULK_BATCH_SIZE", 10),

		HealthCheckInterval: envDuration("HEALTH_CHECK_INTERVAL", 5*time.Minute),
		ErrorRateThreshold:  envFloat("ERROR_RATE_THRESHOLD", 0.10),
		ErrorRateMinSample:  envInt("ERROR_RATE_MIN_SAMPLE", 10),
		DailyCallLimit:      envInt("DAILY_API_CALL_LIMIT", 1000),
		MonthlyCallLimit:    envInt("MONTHLY_API_CALL_LIMIT", 20000),
		DailyCostLimit:      envFloat("DAILY_API_COST_LIMIT", 10000),
		MonthlyCostLimit:    envFloat("MONTHLY_API_COST_LIMIT", 200000),
		CostPerCall:         envFloat("API_COST_PER_CALL", 10),

		LinkSigningKey: os.Getenv("LINK_SIGNING_KEY"),
		LinkTTL:        envDuration("LINK_TTL", 72*time.Hour),

		RedisURL:    os.Getenv("REDIS_URL"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
