package config

import (
	"os"
	"strconv"
)

// Config holds all runtime settings read from the environment.
type Config struct {
	Port            string
	Env             string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	AMQPURL         string
	AuditExchange   string
	AuditRoutingKey string
	OTLPEndpoint    string
	RateLimitPerMin int
	RateLimitBurst  int
	DebugRoutes     bool
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load reads the configuration from the environment with defaults
// suitable for local development.
func Load() Config {
	env := getenv("APP_ENV", "dev")
	return Config{
		Port:            getenv("PORT", "8083"),
		Env:             env,
		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		RedisDB:         getint("REDIS_DB", 0),
		JWTSecret:       getenv("JWT_SECRET", "dev-secret-change-me"),
		AMQPURL:         getenv("AMQP_URL", ""),
		AuditExchange:   getenv("AUDIT_EXCHANGE", "audit"),
		AuditRoutingKey: getenv("AUDIT_ROUTING_KEY", "audit_log.messenger"),
		OTLPEndpoint:    getenv("OTLP_ENDPOINT", ""),
		RateLimitPerMin: getint("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:  getint("RATE_LIMIT_BURST", 20),
		DebugRoutes:     env == "dev",
	}
}
