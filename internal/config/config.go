package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SessionMemory   = "memory"
	SessionRedis    = "redis"
	SessionPostgres = "postgres"

	PolicyRoles  = "roles"
	PolicyCasbin = "casbin"
)

type Config struct {
	Env  string
	Port int

	BackendURL     string
	BackendTimeout time.Duration

	SessionSecret  string
	SessionBackend string
	SessionTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DBURL string

	AdminRoles []string
	PolicyMode string

	DefaultPageLimit int
	OptionsCacheTTL  time.Duration
	ConfirmTTL       time.Duration

	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string
	OTelSampleRatio float64

	LoginRateLimit  int
	LoginRateWindow time.Duration
	MaxBodyBytes    int64

	SweepInterval time.Duration
	SweeperPort   int
}

// Load reads the environment, after an optional .env file in the working directory.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "err", err)
	}

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		BackendURL:     getEnv("BACKEND_API_URL", "http://localhost:5000"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),

		SessionSecret:  getEnv("SESSION_SECRET", "dev-session-secret-change-me"),
		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", SessionMemory)),
		SessionTTL:     getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBURL: buildDBURL(),

		AdminRoles: getEnvList("ADMIN_ROLES", []string{"ADMIN", "SUPER_ADMIN"}),
		PolicyMode: strings.ToLower(getEnv("POLICY_MODE", PolicyRoles)),

		DefaultPageLimit: getEnvInt("DEFAULT_PAGE_LIMIT", 50),
		OptionsCacheTTL:  getEnvDuration("OPTIONS_CACHE_TTL", 30*time.Second),
		ConfirmTTL:       getEnvDuration("CONFIRM_TTL", 5*time.Minute),

		OTelEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "shopadmin"),
		OTelSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: getEnvDuration("LOGIN_RATE_WINDOW", time.Minute),
		MaxBodyBytes:    int64(getEnvInt("MAX_BODY_BYTES", 8<<20)),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		SweeperPort:   getEnvInt("SWEEPER_PORT", 8081),
	}
}

func (c Config) IsDev() bool { return c.Env == "dev" }

func buildDBURL() string {
	if v := os.Getenv("DB_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "shopadmin")
	pass := getEnv("DB_PASSWORD", "shopadmin")
	name := getEnv("DB_NAME", "shopadmin")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env value, using default", "key", key, "value", v)
			return fallback
		}
		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env value, using default", "key", key, "value", v)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid float env value, using default", "key", key, "value", v)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env value, using default", "key", key, "value", v)
			return fallback
		}
		return d
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
