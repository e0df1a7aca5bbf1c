package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration for the auth core.
type Server struct {
	Addr string

	// Session lifetimes. Admin sessions are short-lived by policy; end-user
	// sessions may outlive them.
	AdminSessionTTL time.Duration
	UserSessionTTL  time.Duration

	// CSRF token envelope.
	CSRFSigningKey string
	CSRFTokenTTL   time.Duration

	// OTP challenge policy.
	OTPCodeTTL     time.Duration
	OTPMaxAttempts int

	// CookieSecure controls the Secure attribute on session/CSRF cookies.
	// Disabled only for local development over plain HTTP.
	CookieSecure bool

	// Backing stores. Empty URLs fall back to in-memory stores so the binary
	// runs standalone in dev and tests.
	RedisURL    string
	DatabaseURL string

	Redis RedisConfig
}

// RedisConfig holds Redis connection tuning.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("REGDESK_ADDR", ":8080"),
		AdminSessionTTL: durationOr("ADMIN_SESSION_TTL", 7*24*time.Hour),
		UserSessionTTL:  durationOr("USER_SESSION_TTL", 30*24*time.Hour),
		CSRFSigningKey:  os.Getenv("CSRF_SIGNING_KEY"),
		CSRFTokenTTL:    durationOr("CSRF_TOKEN_TTL", 24*time.Hour),
		OTPCodeTTL:      durationOr("OTP_CODE_TTL", 10*time.Minute),
		OTPMaxAttempts:  intOr("OTP_MAX_ATTEMPTS", 5),
		CookieSecure:    os.Getenv("COOKIE_INSECURE") != "true",
		RedisURL:        os.Getenv("REDIS_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
	}

	if cfg.CSRFSigningKey == "" {
		// Use a default for development - must be overridden in production
		cfg.CSRFSigningKey = "dev-secret-key-change-in-production"
	}

	cfg.Redis = RedisConfig{
		URL:          cfg.RedisURL,
		PoolSize:     intOr("REDIS_POOL_SIZE", 10),
		MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
