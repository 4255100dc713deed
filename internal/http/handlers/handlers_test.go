package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-concierge/internal/appointments"
	"github.com/wolfman30/medspa-concierge/internal/kv"
	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/internal/timemath"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

type echoResponder struct {
	text, from string
}

func (e *echoResponder) HandleMessage(_ context.Context, text, from string) string {
	e.text, e.from = text, from
	return "you said: " + text
}

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonError(rec, "oops", http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "oops", body["error"])
}

func TestMessagesHandler(t *testing.T) {
	responder := &echoResponder{}
	h := NewMessagesHandler(responder, logging.Discard())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"text":"  hi there ","from":"+15550001111"}`))
	h.Post(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "you said: hi there", resp.Reply)
	assert.Equal(t, "+15550001111", responder.from)
}

func TestMessagesHandler_BadRequests(t *testing.T) {
	h := NewMessagesHandler(&echoResponder{}, logging.Discard())
	for name, body := range map[string]string{
		"invalid json": `{"text":`,
		"empty text":   `{"text":"   "}`,
		"too large":    `{"text":"` + strings.Repeat("a", maxBodyBytes) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Post(rec, httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAdminPolicyHandler_GetAndPut(t *testing.T) {
	store := policy.NewStore(kv.NewMemory(), policy.DefaultKey, logging.Discard())
	h := NewAdminPolicyHandler(store, logging.Discard())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/admin/policy", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var current map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, "America/New_York", current["timezone"])

	rec = httptest.NewRecorder()
	h.Put(rec, httptest.NewRequest(http.MethodPut, "/admin/policy", strings.NewReader(`{"tone":"professional","timezone":"America/Chicago"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, float64(1), saved["version"])

	loaded := store.Load(context.Background())
	assert.Equal(t, policy.ToneProfessional, loaded.Tone)
	assert.Equal(t, "America/Chicago", loaded.Timezone)
}

func TestAdminPolicyHandler_RejectsInvalid(t *testing.T) {
	store := policy.NewStore(kv.NewMemory(), policy.DefaultKey, logging.Discard())
	h := NewAdminPolicyHandler(store, logging.Discard())

	for name, body := range map[string]string{
		"unknown field": `{"colour":"blue"}`,
		"bad tone":      `{"tone":"sarcastic"}`,
		"bad hours":     `{"booking":{"business_hours":["mon 18:00-08:00"]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Put(rec, httptest.NewRequest(http.MethodPut, "/admin/policy", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Equal(t, 0, store.Load(context.Background()).Version)
}

type failingPolicyStore struct{}

func (failingPolicyStore) Load(context.Context) *policy.Config { return policy.Default() }
func (failingPolicyStore) Save(context.Context, *policy.Config) (*policy.Config, error) {
	return nil, errors.New("dynamodb unavailable")
}

func TestAdminPolicyHandler_SaveFailure(t *testing.T) {
	h := NewAdminPolicyHandler(failingPolicyStore{}, logging.Discard())
	rec := httptest.NewRecorder()
	h.Put(rec, httptest.NewRequest(http.MethodPut, "/admin/policy", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dynamodb")
}

func TestAdminAppointmentsHandler(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	store := appointments.NewStore(appointments.WithClock(timemath.Fixed(now)), appointments.WithLogger(logging.Discard()))
	_, err := store.Create(context.Background(), appointments.CreateRequest{
		PatientContact: "+15550001111", Provider: "Paula Mendes", Service: "Botox", Start: now.Add(6 * time.Hour),
	})
	require.NoError(t, err)
	_, err = store.Create(context.Background(), appointments.CreateRequest{
		PatientContact: "+15550002222", Provider: "Paula Mendes", Start: now.Add(-2 * time.Hour),
	})
	require.NoError(t, err)

	h := NewAdminAppointmentsHandler(store, logging.Discard())
	rec := httptest.NewRecorder()
	h.ListUpcoming(rec, httptest.NewRequest(http.MethodGet, "/admin/appointments", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Appointments []appointments.Appointment `json:"appointments"`
		Count        int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Appointments, 1)
	assert.Equal(t, "Botox", body.Appointments[0].Service)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
