package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string

	// Hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often a pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	DB DBConfig

	Session SessionConfig

	// Location is the single timezone used to interpret booking dates and times.
	// Instants are stored as timestamptz, so comparisons never depend on the server default.
	Location *time.Location

	Sweep SweepConfig

	// AMQPURL is the RabbitMQ broker used for booking status events. Empty disables publishing.
	AMQPURL string

	Redis RedisConfig

	// AllowedOrigins is a comma-separated allowlist for the customer web app. Example:
	//   https://app.example.com,http://localhost:5173
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type SessionConfig struct {
	Secret   string
	Audience string
	TTL      time.Duration
}

type SweepConfig struct {
	// Grace is subtracted from "now" before selecting due bookings.
	Grace     time.Duration
	BatchSize int
	LockTTL   time.Duration
}

type RedisConfig struct {
	// Addr empty means no Redis; the sweeper then runs without a throttle lock.
	Addr     string
	Password string
	DB       int
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8080"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "carwash"),
			User:     env("DB_USER", "carwash"),
			Password: env("DB_PASSWORD", "carwash"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		Session: SessionConfig{
			Secret:   os.Getenv("SESSION_SECRET"),
			Audience: env("SESSION_AUDIENCE", "carwash-api"),
			TTL:      envDuration("SESSION_TTL", 12*time.Hour),
		},
		Location: location(env("APP_TIMEZONE", "Europe/Istanbul")),
		Sweep: SweepConfig{
			Grace:     envDuration("SWEEP_GRACE", 0),
			BatchSize: envInt("SWEEP_BATCH_SIZE", 200),
			LockTTL:   envDuration("SWEEP_LOCK_TTL", 4*time.Minute),
		},
		AMQPURL: os.Getenv("AMQP_URL"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		AllowedOrigins: envList("ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:       env("LOG_LEVEL", "info"),
		LogFormat:      env("LOG_FORMAT", ""),
	}
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: invalid duration for %s: %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("config: unknown timezone %q, falling back to UTC", name)
		return time.UTC
	}
	return loc
}

func envList(key, fallbackCSV string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallbackCSV
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			s := v[start:i]
			start = i + 1
			// trim spaces
			for len(s) > 0 && (s[0] == ' ' || s[0] == '\t' || s[0] == '\n' || s[0] == '\r') {
				s = s[1:]
			}
			for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t' || s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
				s = s[:len(s)-1]
			}
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
