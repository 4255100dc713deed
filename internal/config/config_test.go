package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("LLM_CALL_TIMEOUT", "")
	t.Setenv("LLM_MAX_ITERATIONS", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, LLMProviderBedrock, cfg.LLMProvider)
	assert.Equal(t, 4*time.Second, cfg.LLMCallTimeout)
	assert.Equal(t, 6, cfg.LLMMaxIterations)
	assert.Equal(t, "policy:config", cfg.PolicyKey)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", " Redis ")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("LLM_CALL_TIMEOUT", "2500ms")
	t.Setenv("LLM_MAX_ITERATIONS", "3")
	t.Setenv("LLM_PROVIDER", "GEMINI")

	cfg := Load()
	assert.Equal(t, StorageRedis, cfg.StorageBackend)
	assert.True(t, cfg.RedisTLS)
	assert.Equal(t, 2500*time.Millisecond, cfg.LLMCallTimeout)
	assert.Equal(t, 3, cfg.LLMMaxIterations)
	assert.Equal(t, LLMProviderGemini, cfg.LLMProvider)
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("LLM_MAX_ITERATIONS", "lots")
	t.Setenv("LLM_CALL_TIMEOUT", "soon")
	t.Setenv("REDIS_TLS", "maybe")

	cfg := Load()
	assert.Equal(t, 6, cfg.LLMMaxIterations)
	assert.Equal(t, 4*time.Second, cfg.LLMCallTimeout)
	assert.False(t, cfg.RedisTLS)
}

func TestLoad_HTTPEdge(t *testing.T) {
	t.Setenv("MESSAGES_RATE_LIMIT_RPS", "0.5")
	t.Setenv("MESSAGES_RATE_LIMIT_BURST", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://clinic.example , ,https://admin.example")

	cfg := Load()
	assert.InDelta(t, 0.5, cfg.MessagesRateLimitRPS, 1e-9)
	assert.Equal(t, 10, cfg.MessagesRateLimitBurst)
	assert.Equal(t, []string{"https://clinic.example", "https://admin.example"}, cfg.CORSAllowedOrigins)
}
