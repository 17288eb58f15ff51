package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Env  string
	Port string

	// JWT
	JWTSecret string
	JWTIssuer string

	// Pipeline endpoints (external job runner)
	PipelineAPIKey string

	// Create-transaction rate limit: CreateTxBurst requests, refilled
	// CreateTxPerHour times per hour, per user.
	CreateTxPerHour int
	CreateTxBurst   int

	// Email
	ResendAPIKey string
	ResendURL    string
	EmailFrom    string

	// Insights
	GeminiAPIKey string
	GeminiModel  string

	// Work queue
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Jobs
	RecurringCron      string
	BudgetAlertCron    string
	MonthlyReportCron  string
	RecurringPerMinute int
	WorkerConcurrency  int
	RequestTimeout     time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		CreateTxPerHour: getEnvInt("CREATE_TX_PER_HOUR", 2),
		CreateTxBurst:   getEnvInt("CREATE_TX_BURST", 2),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		ResendURL:    getEnv("RESEND_URL", "https://api.resend.com"),
		EmailFrom:    getEnv("EMAIL_FROM", "Spendwise <onboarding@resend.dev>"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendwise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "recurring-transactions"),

		RecurringCron:      getEnv("RECURRING_CRON", "0 0 * * *"),
		BudgetAlertCron:    getEnv("BUDGET_ALERT_CRON", "0 */6 * * *"),
		MonthlyReportCron:  getEnv("MONTHLY_REPORT_CRON", "0 0 1 * *"),
		RecurringPerMinute: getEnvInt("RECURRING_PER_MINUTE", 10),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
	}

	timeoutStr := getEnv("REQUEST_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout <= 0 {
		log.Printf("Warning: invalid REQUEST_TIMEOUT value '%s', falling back to 30s\n", timeoutStr)
		timeout = 30 * time.Second
	}
	config.RequestTimeout = timeout

	return config, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}
