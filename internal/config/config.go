package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds every environment-driven setting of the server, worker and CLI.
type Config struct {
	Env    string
	Port   string
	AppURL string

	DatabaseURL string
	RedisURL    string
	LogLevel    string

	FirebaseCredentialsPath string
	FirebaseAPIKey          string
	FirebaseAuthDomain      string
	FirebaseProjectID       string

	DuitkuMerchantCode  string
	DuitkuAPIKey        string
	DuitkuBaseURL       string
	DuitkuExpiryMinutes int

	MidtransServerKey    string
	MidtransClientKey    string
	MidtransIsProduction bool

	WAGatewayBaseURL     string
	WAGatewayAdminToken  string
	WANotifySessionToken string

	InternalAPIKey string

	KafkaBrokers      []string
	KafkaPaymentTopic string

	SMTPHost  string
	SMTPPort  string
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	ManualPaymentExpiryHours int
	// SweepSchedule is the cron spec the worker polls due tasks with.
	SweepSchedule    string
	SweepMinInterval time.Duration
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		zap.S().Info("No .env file found, using system environment")
	}

	return Config{
		Env:    getEnv("ENV", "development"),
		Port:   getEnv("PORT", "8080"),
		AppURL: strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),
		FirebaseAPIKey:          os.Getenv("FIREBASE_API_KEY"),
		FirebaseAuthDomain:      os.Getenv("FIREBASE_AUTH_DOMAIN"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),

		DuitkuMerchantCode:  os.Getenv("DUITKU_MERCHANT_CODE"),
		DuitkuAPIKey:        os.Getenv("DUITKU_API_KEY"),
		DuitkuBaseURL:       strings.TrimRight(getEnv("DUITKU_BASE_URL", "https://sandbox.duitku.com"), "/"),
		DuitkuExpiryMinutes: getEnvInt("DUITKU_EXPIRY_MINUTES", 60),

		MidtransServerKey:    os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransClientKey:    os.Getenv("MIDTRANS_CLIENT_KEY"),
		MidtransIsProduction: os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",

		WAGatewayBaseURL:     strings.TrimRight(getEnv("WA_GATEWAY_BASE_URL", "http://wuzapi:8080"), "/"),
		WAGatewayAdminToken:  os.Getenv("WA_GATEWAY_ADMIN_TOKEN"),
		WANotifySessionToken: os.Getenv("WA_NOTIFY_SESSION_TOKEN"),

		InternalAPIKey: os.Getenv("INTERNAL_API_KEY"),

		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaPaymentTopic: getEnv("KAFKA_PAYMENT_TOPIC", "payment.status_changed"),

		SMTPHost:  os.Getenv("SMTP_HOST"),
		SMTPPort:  os.Getenv("SMTP_PORT"),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		EmailFrom: os.Getenv("EMAIL_FROM"),

		ManualPaymentExpiryHours: getEnvInt("MANUAL_PAYMENT_EXPIRY_HOURS", 24),
		SweepSchedule:            getEnv("SWEEP_SCHEDULE", "@every 1m"),
		SweepMinInterval:         time.Duration(getEnvInt("SWEEP_MIN_INTERVAL_SECONDS", 30)) * time.Second,
	}
}

// IsProduction reports whether the process runs with ENV=production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		zap.S().Warnw("invalid integer env, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
