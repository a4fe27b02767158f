package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config centralizes runtime settings for the API and the executor.
type Config struct {
	Port string

	AuthToken   string
	CORSOrigins []string

	DatabaseURL string

	VisionAPIKey     string
	VisionBaseURL    string
	VisionTimeoutMS  int
	VisionMaxRetries int

	GeneratorAPIKey        string
	GeneratorBaseURL       string
	GeneratorTimeoutMS     int
	GeneratorMaxRetries    int
	GeneratorModelPrimary  string
	GeneratorModelFallback string
	GeneratorTemperature   float64

	LeaseTTLSeconds    int
	WriteFanOut        int
	MaxCardsPerJob     int
	SweepIntervalSec   int
	ExecutorHolderID   string
	TriggerBufferSize  int
	StatusCacheTTLSec  int
	StatusCacheEntries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisGroup    string
	RedisConsumer string

	RateLimitRPS   float64
	RateLimitBurst int

	SeedVersion   int
	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken:   getEnv("API_AUTH_TOKEN", ""),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		VisionAPIKey:     getEnv("VISION_API_KEY", ""),
		VisionBaseURL:    getEnv("VISION_BASE_URL", ""),
		VisionTimeoutMS:  getEnvInt("VISION_TIMEOUT_MS", 20000),
		VisionMaxRetries: getEnvInt("VISION_MAX_RETRIES", 2),

		GeneratorAPIKey:        getEnv("GENERATOR_API_KEY", ""),
		GeneratorBaseURL:       getEnv("GENERATOR_BASE_URL", ""),
		GeneratorTimeoutMS:     getEnvInt("GENERATOR_TIMEOUT_MS", 30000),
		GeneratorMaxRetries:    getEnvInt("GENERATOR_MAX_RETRIES", 2),
		GeneratorModelPrimary:  getEnv("GENERATOR_MODEL_PRIMARY", "gpt-4.1-mini"),
		GeneratorModelFallback: getEnv("GENERATOR_MODEL_FALLBACK", "gpt-4.1-nano"),
		GeneratorTemperature:   getEnvFloat("GENERATOR_TEMPERATURE", 0.4),

		LeaseTTLSeconds:    getEnvInt("JOB_LEASE_TTL_SECONDS", 120),
		WriteFanOut:        getEnvInt("WRITE_FAN_OUT", 8),
		MaxCardsPerJob:     getEnvInt("MAX_CARDS_PER_JOB", 200),
		SweepIntervalSec:   getEnvInt("SWEEP_INTERVAL_SECONDS", 30),
		ExecutorHolderID:   getEnv("EXECUTOR_HOLDER_ID", "executor-1"),
		TriggerBufferSize:  getEnvInt("TRIGGER_BUFFER_SIZE", 512),
		StatusCacheTTLSec:  getEnvInt("STATUS_CACHE_TTL_SECONDS", 2),
		StatusCacheEntries: getEnvInt("STATUS_CACHE_MAX_ENTRIES", 5000),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "card_jobs"),
		RedisGroup:    getEnv("REDIS_GROUP", "card_executors"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "executor-1"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		SeedVersion:   getEnvInt("SEED_VERSION", 1),
		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

// LeaseTTL returns the lease TTL as a duration.
func (c Config) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// SweepInterval returns the executor sweep period as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
