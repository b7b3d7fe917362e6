package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppPort     string
	DBDSN       string
	JWTSecret   string
	CORSOrigins string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// "redis" or "local"
	LockBackend string
	LockTTL     time.Duration

	StripeSecretKey      string
	StripeWebhookSecret  string
	PaymentGatewayMock   bool
	SandboxWebhookSecret string
	PaymentCurrency      string

	LogLevel  string
	LogFormat string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(get("REDIS_DB", "0"))
	lockTTL, err := time.ParseDuration(get("LOCK_TTL", "15s"))
	if err != nil {
		lockTTL = 15 * time.Second
	}

	// sandbox only when asked for; a live deployment must carry both stripe secrets
	mock := strings.EqualFold(get("PAYMENT_GATEWAY_MOCK", "false"), "true")
	var stripeKey, stripeHook, sandboxSecret string
	if mock {
		sandboxSecret = must("SANDBOX_WEBHOOK_SECRET")
	} else {
		stripeKey = must("STRIPE_SECRET_KEY")
		stripeHook = must("STRIPE_WEBHOOK_SECRET")
	}

	return Config{
		AppPort:     get("APP_PORT", "8080"),
		DBDSN:       must("DB_DSN"),
		JWTSecret:   must("JWT_SECRET"),
		CORSOrigins: get("CORS_ORIGINS", "http://127.0.0.1:3000, http://localhost:3000"),

		RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: get("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		LockBackend: strings.ToLower(get("LOCK_BACKEND", "redis")),
		LockTTL:     lockTTL,

		StripeSecretKey:      stripeKey,
		StripeWebhookSecret:  stripeHook,
		PaymentGatewayMock:   mock,
		SandboxWebhookSecret: sandboxSecret,
		PaymentCurrency:      strings.ToLower(get("PAYMENT_CURRENCY", "usd")),

		LogLevel:  get("LOG_LEVEL", "info"),
		LogFormat: get("LOG_FORMAT", "json"),
	}
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
