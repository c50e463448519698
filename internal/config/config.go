package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Caller identity tokens presented by the clinic frontend.
	JWTSecret string

	// Clinic backend API.
	BackendBaseURL string
	BackendAPIKey  string
	BackendTimeout time.Duration

	// Language model provider (OpenAI-compatible).
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTemperature float64

	// Session store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Optional long-term transcript archive.
	DatabaseURL string

	// Per-IP request throttle; zero RPS disables it.
	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8000"),
		BackendAPIKey:  getEnv("BACKEND_API_KEY", ""),
		BackendTimeout: getEnvAsDuration("BACKEND_TIMEOUT", 30*time.Second),

		LLMAPIKey:      getEnv("OPENAI_API_KEY", ""),
		LLMBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.2),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
