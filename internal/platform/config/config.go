// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"vsauth/internal/ratelimit"
	"vsauth/pkg/domain"
)

// Store backends selectable via VSAUTH_STORE.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Addr string

	// AdminToken guards registration endpoints; empty disables the guard
	// (dev mode). JWTSigningKey additionally accepts HS256 bearer tokens.
	AdminToken    string
	JWTSigningKey string

	// Store selects the persistence backend.
	Store       string
	CodesFile   string
	DatabaseURL string

	// SourceURL points at the external product catalog; empty runs with the
	// built-in mock.
	SourceURL     string
	SourceTimeout time.Duration

	CodeLength    int
	MinCodeLength int

	RateLimit       int
	RateLimitWindow time.Duration
	RedisURL        string

	KafkaBrokers []string
	KafkaTopic   string

	// PublicVerifyBaseURL is the frontend QR codes deep-link into.
	PublicVerifyBaseURL string
	CORSOrigins         []string
}

// FromEnv reads the configuration with development-friendly defaults.
func FromEnv() Config {
	return Config{
		Addr:                envOr("VSAUTH_ADDR", ":8080"),
		AdminToken:          os.Getenv("VSAUTH_ADMIN_TOKEN"),
		JWTSigningKey:       os.Getenv("VSAUTH_JWT_SIGNING_KEY"),
		Store:               envOr("VSAUTH_STORE", StoreMemory),
		CodesFile:           envOr("VSAUTH_CODES_FILE", "data/codes.json"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SourceURL:           os.Getenv("VSAUTH_SOURCE_URL"),
		SourceTimeout:       envDuration("VSAUTH_SOURCE_TIMEOUT", 3*time.Second),
		CodeLength:          envInt("VSAUTH_CODE_LENGTH", domain.DefaultCodeLength),
		MinCodeLength:       envInt("VSAUTH_MIN_CODE_LENGTH", 4),
		RateLimit:           envInt("VSAUTH_RATE_LIMIT", ratelimit.DefaultLimit),
		RateLimitWindow:     envDuration("VSAUTH_RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),
		RedisURL:            os.Getenv("REDIS_URL"),
		KafkaBrokers:        envList("VSAUTH_KAFKA_BROKERS"),
		KafkaTopic:          envOr("VSAUTH_KAFKA_TOPIC", "vsauth.verifications"),
		PublicVerifyBaseURL: envOr("VSAUTH_PUBLIC_VERIFY_BASE_URL", "http://localhost:3000"),
		CORSOrigins:         envListOr("VSAUTH_CORS_ORIGINS", []string{"*"}),
	}
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(name))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(name))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envList(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envListOr(name string, fallback []string) []string {
	if list := envList(name); list != nil {
		return list
	}
	return fallback
}
