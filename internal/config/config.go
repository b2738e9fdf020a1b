package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	// seeded ADMIRAL account
	AdminEmail    string
	AdminPassword string
	AdminUsername string
	AdminRole     string

	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ExtractorPDFURL         string
	ExtractorScreenshotsURL string
	ExtractorToken          string
	ExtractorTimeout        time.Duration

	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	ChargeLeaseTTL time.Duration
	StartingPoints int
	MaxUploadBytes int64

	CORSOrigins  []string
	OTELEndpoint string
}

func Load() Config {
	// a missing .env is fine, real deployments inject the environment directly
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: getEnv("DATABASE_URL", buildDBURL()),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", "admiral"),
		AdminRole:     getEnv("ADMIN_ROLE", "ADMIRAL"),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 7),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ExtractorPDFURL:         getEnv("EXTRACTOR_PDF_URL", "https://api.fayda.pro.et/api/v1/process"),
		ExtractorScreenshotsURL: getEnv("EXTRACTOR_SCREENSHOTS_URL", "https://api.affiliate.pro.et/api/v1/process-screenshots"),
		ExtractorToken:          getEnv("EXTRACTOR_TOKEN", ""),
		ExtractorTimeout:        getEnvDuration("EXTRACTOR_TIMEOUT", 30*time.Second),

		BreakerFailureThreshold: getEnvInt("EXTRACTOR_BREAKER_FAILURES", 5),
		BreakerCooldown:         getEnvDuration("EXTRACTOR_BREAKER_COOLDOWN", 20*time.Second),

		ChargeLeaseTTL: getEnvDuration("CHARGE_LEASE_TTL", 45*time.Second),
		StartingPoints: getEnvInt("STARTING_POINTS", 0),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		CORSOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "idprint")
	pass := getEnv("DB_PASSWORD", "idprint")
	name := getEnv("DB_NAME", "idprint")
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	num, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config: invalid integer, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}

	return num
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config: invalid duration, using fallback", "key", key, "value", v, "fallback", fallback.String())
		return fallback
	}

	return d
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
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
