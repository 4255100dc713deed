package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/medspa-concierge/internal/config"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		StorageBackend:         appconfig.StorageMemory,
		AWSRegion:              "us-east-1",
		AWSAccessKeyID:         "test",
		AWSSecretAccessKey:     "test",
		LLMProvider:            appconfig.LLMProviderBedrock,
		BedrockModelID:         "anthropic.claude-3-haiku",
		LLMMaxIterations:       6,
		AdminJWTSecret:         "secret",
		MessagesRateLimitRPS:   5,
		MessagesRateLimitBurst: 5,
	}
}

func TestNewApp_ServesHealthAndMetrics(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(), logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "medspa_concierge_turn_round_trips"))

	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/policy", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestNewApp_RedisRestoresAppointments(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.StorageBackend = appconfig.StorageRedis
	cfg.RedisAddr = mr.Addr()

	a, err := newApp(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	upcoming, err := a.appointments.ListUpcoming(context.Background())
	require.NoError(t, err)
	assert.Empty(t, upcoming)
}

func TestNewApp_RejectsBadStorage(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = "sqlite"
	_, err := newApp(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestNewApp_RequiresModel(t *testing.T) {
	cfg := testConfig()
	cfg.BedrockModelID = ""
	_, err := newApp(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
	assert.ErrorContains(t, err, "BEDROCK_MODEL_ID")
}
