package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageDynamoDB = "dynamodb"
)

// LLM providers accepted by LLM_PROVIDER.
const (
	LLMProviderBedrock = "bedrock"
	LLMProviderGemini  = "gemini"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	StorageBackend string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	KVTable        string
	PolicyKey      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Reasoning service
	LLMProvider        string
	BedrockModelID     string
	GeminiAPIKey       string
	GeminiModelID      string
	LLMFallbackEnabled bool
	LLMCallTimeout     time.Duration
	LLMMaxIterations   int
	LLMMaxTokens       int

	AdminJWTSecret string

	// HTTP edge
	MessagesRateLimitRPS   float64
	MessagesRateLimitBurst int
	CORSAllowedOrigins     []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StorageBackend: strings.ToLower(strings.TrimSpace(getEnv("STORAGE_BACKEND", StorageMemory))),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		KVTable:        getEnv("KV_TABLE", "concierge_kv"),
		PolicyKey:      getEnv("POLICY_KEY", "policy:config"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		LLMProvider:        strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", LLMProviderBedrock))),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:      getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMFallbackEnabled: getEnvAsBool("LLM_FALLBACK_ENABLED", false),
		LLMCallTimeout:     getEnvAsDuration("LLM_CALL_TIMEOUT", 4*time.Second),
		LLMMaxIterations:   getEnvAsInt("LLM_MAX_ITERATIONS", 6),
		LLMMaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 512),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		MessagesRateLimitRPS:   getEnvAsFloat("MESSAGES_RATE_LIMIT_RPS", 2),
		MessagesRateLimitBurst: getEnvAsInt("MESSAGES_RATE_LIMIT_BURST", 10),
		CORSAllowedOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
