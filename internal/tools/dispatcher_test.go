package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-concierge/internal/appointments"
	"github.com/wolfman30/medspa-concierge/internal/availability"
	"github.com/wolfman30/medspa-concierge/internal/llm"
	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/internal/timemath"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

// Monday 2026-10-19 08:00 UTC.
var monday8 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

const clinicPolicy = `{
	"timezone": "UTC",
	"booking": {"business_hours": ["mon-fri 08:00-18:00"], "min_notice_minutes": 60},
	"provider_aliases": {"Dr. Paula": "Paula Mendes"},
	"faq": {
		"address": "12 Main St",
		"price": "Botox is $12 per unit",
		"entries": [{"question": "Do you offer financing for filler?", "answer": "Yes, through Cherry."}]
	}
}`

type fixture struct {
	cfg   *policy.Config
	store *appointments.Store
	d     *Dispatcher
}

func newFixture(t *testing.T, doc string) fixture {
	t.Helper()
	cfg, err := policy.Decode([]byte(doc))
	require.NoError(t, err)
	store := appointments.NewStore(
		appointments.WithClock(timemath.Fixed(monday8)),
		appointments.WithPlanner(availability.NewPlanner(policy.Static{Config: cfg})),
		appointments.WithLogger(logging.Discard()),
	)
	d := NewDispatcher(store, logging.Discard(), WithClock(timemath.Fixed(monday8)))
	return fixture{cfg: cfg, store: store, d: d}
}

func (f fixture) call(t *testing.T, name Name, args any) Result {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return f.d.Dispatch(context.Background(), f.cfg, llm.ToolCall{ID: "call-1", Name: string(name), Arguments: raw})
}

func createArgs(start string) map[string]any {
	return map[string]any{
		"patient_contact": "+15550001111",
		"provider":        "Dr. Paula",
		"service":         "Botox",
		"start":           start,
	}
}

func TestDispatch_GetAvailabilityTrimsNoticeHorizon(t *testing.T) {
	f := newFixture(t, clinicPolicy)
	res := f.call(t, CreateAppointment, createArgs("2026-10-19T14:00"))
	require.True(t, res.OK, res.JSON())

	res = f.call(t, GetAvailability, map[string]any{"provider": "dr. PAULA", "date": "2026-10-19"})
	require.True(t, res.OK, res.JSON())
	data := res.Data.(AvailabilityData)
	assert.Equal(t, "Paula Mendes", data.Provider)
	assert.Equal(t, "2026-10-19", data.Date)
	require.Len(t, data.Slots, 17)
	assert.Equal(t, "09:00", data.Slots[0])
	assert.NotContains(t, data.Slots, "08:30")
	assert.NotContains(t, data.Slots, "14:00")
	assert.Equal(t, "17:30", data.Slots[len(data.Slots)-1])
}

func TestDispatch_GetAvailabilityClosedDay(t *testing.T) {
	f := newFixture(t, clinicPolicy)
	res := f.call(t, GetAvailability, map[string]any{"provider": "Paula Mendes", "date": "2026-10-24"})
	require.True(t, res.OK)
	assert.Empty(t, res.Data.(AvailabilityData).Slots)
	assert.Contains(t, res.JSON(), `"slots":[]`)
}

func TestDispatch_CreateAppointment(t *testing.T) {
	f := newFixture(t, clinicPolicy)
	res := f.call(t, CreateAppointment, createArgs("2026-10-19T14:00"))
	require.True(t, res.OK, res.JSON())
	assert.Equal(t, "call-1", res.CallID)

	appt := res.Data.(AppointmentData)
	assert.Equal(t, "Paula Mendes", appt.Provider)
	assert.Equal(t, "2026-10-19T14:00:00Z", appt.Start)
	assert.Equal(t, "2026-10-19T14:30:00Z", appt.End)
	assert.Equal(t, "confirmed", appt.Status)
}

func TestDispatch_CreatePolicyViolations(t *testing.T) {
	f := newFixture(t, clinicPolicy)
	cases := map[string]string{
		"inside notice":  "2026-10-19T08:30",
		"in the past":    "2026-10-16T10:00",
		"after close":    "2026-10-19T17:45",
		"before opening": "2026-10-20T07:30",
		"weekend":        "2026-10-24T10:00",
	}
	for name, start := range cases {
		t.Run(name, func(t *testing.T) {
			res := f.call(t, CreateAppointment, createArgs(start))
			require.False(t, res.OK)
			assert.Equal(t, KindPolicy, res.Error.Kind)
			assert.Equal(t, "start", res.Error.Field)
		})
	}
}

func TestDispatch_CreateRequiresPatientConfirmation(t *testing.T) {
	f := newFixture(t, `{"timezone":"UTC","booking":{"auto_confirm":false}}`)

	res := f.call(t, CreateAppointment, createArgs("2026-10-19T10:00"))
	require.False(t, res.OK)
	assert.Equal(t, KindPolicy, res.Error.Kind)
	assert.Equal(t, "patient_confirmed", res.Error.Field)

	args := createArgs("2026-10-19T10:00")
	args["patient_confirmed"] = true
	res = f.call(t, CreateAppointment, args)
	assert.True(t, res.OK, res.JSON())
}

func TestDispatch_CreateConflict(t *testing.T) {
	f := newFixture(t, clinicPolicy)
	first := f.call(t, CreateAppointment, createArgs("2026-10-19T14:00"))
	require.True(t, first.OK)

	res := f.call(t, CreateAppointment, createArgs("2026-10-19T14:00"))
	require.False(t, res.OK)
	assert.Equal(t, KindConflict, res.Error.Kind)
	assert.Equal(t, first.Data.(AppointmentData).ID, res.Error.ConflictingID)
	assert.Contains(t, res.JSON(), `"conflicting_id"`)
}

func TestDispatch_ValidationErrors(t *testing.T) {
	f := newFixture(t, clinicPolicy)
	cases := []struct {
		name  string
		tool  Name
		raw   string
		field string
	}{
		{"unknown field", GetAvailability, `{"provider":"p","date":"2026-10-19","room":"2"}`, "room"},
		{"wrong type", GetAvailability, `{"provider":7,"date":"2026-10-19"}`, "provider"},
		{"missing field", CreateAppointment, `{"patient_contact":"c","provider":"p","service":"s"}`, "start"},
		{"blank field", CancelAppointment, `{"id":"  "}`, "id"},
		{"bool type", CreateAppointment, `{"patient_contact":"c","provider":"p","service":"s","start":"2026-10-19T10:00","patient_confirmed":"yes"}`, "patient_confirmed"},
		{"bad date", GetAvailability, `{"provider":"p","date":"Oct 19"}`, "date"},
		{"bad instant", RescheduleAppointment, `{"id":"x","new_start":"tomorrow"}`, ""},
		{"bad topic", FAQ, `{"topic":"parking"}`, "topic"},
		{"not an object", CancelAppointment, `["id"]`, ""},
		{"trailing data", CancelAppointment, `{"id":"a"}{"id":"b"}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.d.Dispatch(context.Background(), f.cfg, llm.ToolCall{ID: "x", Name: string(tc.tool), Arguments: json.RawMessage(tc.raw)})
			require.False(t, res.OK)
			if tc.name == "bad instant" {
				// unknown id is checked before the time is parsed
				assert.Equal(t, KindNotFound, res.Error.Kind)
				return
			}
			assert.Equal(t, KindValidation, res.Error.Kind, res.JSON())
			if tc.field != "" {
				assert.Equal(t, tc.field, res.Error.Field)
			}
		})
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	f := newFixture(t, clinicPolicy)
	res := f.d.Dispatch(context.Background(), f.cfg, llm.ToolCall{ID: "z", Name: "delete_everything"})
	require.False(t, res.OK)
	assert.Equal(t, KindUnknownTool, res.Error.Kind)
	assert.Equal(t, "unknown_tool", res.Status())
}

func TestDispatch_RescheduleCancelConfirm(t *testing.T) {
	f := newFixture(t, clinicPolicy)
	a := f.call(t, CreateAppointment, createArgs("2026-10-19T10:00")).Data.(AppointmentData)
	b := f.call(t, CreateAppointment, createArgs("2026-10-19T11:00")).Data.(AppointmentData)

	res := f.call(t, RescheduleAppointment, map[string]any{"id": b.ID, "new_start": "2026-10-19T10:00"})
	require.False(t, res.OK)
	assert.Equal(t, KindConflict, res.Error.Kind)
	assert.Equal(t, a.ID, res.Error.ConflictingID)

	res = f.call(t, RescheduleAppointment, map[string]any{"id": b.ID, "new_start": "2026-10-20T09:30:00Z"})
	require.True(t, res.OK, res.JSON())
	assert.Equal(t, "2026-10-20T09:30:00Z", res.Data.(AppointmentData).Start)

	res = f.call(t, RescheduleAppointment, map[string]any{"id": b.ID, "new_start": "2026-10-20T20:00"})
	require.False(t, res.OK)
	assert.Equal(t, KindPolicy, res.Error.Kind)
	assert.Equal(t, "new_start", res.Error.Field)

	res = f.call(t, RescheduleAppointment, map[string]any{"id": "nope", "new_start": "2026-10-20T10:00"})
	require.False(t, res.OK)
	assert.Equal(t, KindNotFound, res.Error.Kind)

	res = f.call(t, CancelAppointment, map[string]any{"id": a.ID})
	require.True(t, res.OK)
	assert.Equal(t, StatusData{ID: a.ID, Changed: true, Status: "cancelled"}, res.Data)
	res = f.call(t, CancelAppointment, map[string]any{"id": a.ID})
	require.True(t, res.OK)
	assert.False(t, res.Data.(StatusData).Changed)

	res = f.call(t, ConfirmAppointment, map[string]any{"id": a.ID})
	require.True(t, res.OK)
	assert.Equal(t, StatusData{ID: a.ID, Changed: true, Status: "confirmed"}, res.Data)

	res = f.call(t, ConfirmAppointment, map[string]any{"id": "missing"})
	require.False(t, res.OK)
	assert.Equal(t, KindNotFound, res.Error.Kind)
}

func TestDispatch_FAQ(t *testing.T) {
	f := newFixture(t, clinicPolicy)

	res := f.call(t, FAQ, map[string]any{"topic": "address"})
	require.True(t, res.OK)
	assert.Equal(t, FAQData{Topic: "address", Answer: "12 Main St"}, res.Data)

	res = f.call(t, FAQ, map[string]any{"topic": "plans", "question": "can I get financing for filler"})
	require.True(t, res.OK, res.JSON())
	data := res.Data.(FAQData)
	assert.Equal(t, "Yes, through Cherry.", data.Answer)
	assert.Equal(t, "Do you offer financing for filler?", data.MatchedQuestion)

	res = f.call(t, FAQ, map[string]any{"topic": "plans"})
	require.False(t, res.OK)
	assert.Equal(t, KindNotFound, res.Error.Kind)
}

// countingSource serves a fixed policy and counts how often it is read.
type countingSource struct {
	mu    sync.Mutex
	cfg   *policy.Config
	loads int
}

func (c *countingSource) Load(context.Context) *policy.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	return c.cfg
}

func TestDispatch_GetAvailabilityUsesTurnPolicy(t *testing.T) {
	closed, err := policy.Decode([]byte(`{"timezone":"UTC","booking":{"business_hours":["sat 08:00-09:00"]}}`))
	require.NoError(t, err)
	source := &countingSource{cfg: closed}
	store := appointments.NewStore(
		appointments.WithClock(timemath.Fixed(monday8)),
		appointments.WithPlanner(availability.NewPlanner(source)),
		appointments.WithLogger(logging.Discard()),
	)
	turn, err := policy.Decode([]byte(clinicPolicy))
	require.NoError(t, err)
	d := NewDispatcher(store, logging.Discard(), WithClock(timemath.Fixed(monday8)))

	res := d.Dispatch(context.Background(), turn, llm.ToolCall{ID: "1", Name: string(GetAvailability), Arguments: json.RawMessage(`{"provider":"Dr. Paula","date":"2026-10-19"}`)})
	require.True(t, res.OK, res.JSON())
	data := res.Data.(AvailabilityData)
	assert.Len(t, data.Slots, 18)
	assert.Zero(t, source.loads)
}

type brokenScheduler struct {
	appointments.Store
	panicOnCancel bool
}

func (b *brokenScheduler) Availability(context.Context, *policy.Config, string, time.Time) ([]timemath.TimeOfDay, error) {
	return nil, errors.New("redis: connection refused")
}

func (b *brokenScheduler) Cancel(context.Context, string) (bool, error) {
	if b.panicOnCancel {
		panic("nil map write")
	}
	return false, nil
}

func TestDispatch_InternalFailuresAreResults(t *testing.T) {
	cfg := policy.Default()
	d := NewDispatcher(&brokenScheduler{panicOnCancel: true}, logging.Discard(), WithClock(timemath.Fixed(monday8)))

	res := d.Dispatch(context.Background(), cfg, llm.ToolCall{ID: "1", Name: string(GetAvailability), Arguments: json.RawMessage(`{"provider":"p","date":"2026-10-19"}`)})
	require.False(t, res.OK)
	assert.Equal(t, KindInternal, res.Error.Kind)
	assert.NotContains(t, res.Error.Message, "redis")

	res = d.Dispatch(context.Background(), cfg, llm.ToolCall{ID: "2", Name: string(CancelAppointment), Arguments: json.RawMessage(`{"id":"a"}`)})
	require.False(t, res.OK)
	assert.Equal(t, "2", res.CallID)
	assert.Equal(t, KindInternal, res.Error.Kind)
}

func TestDefinitionsCoverEveryTool(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, len(Names))
	for i, def := range defs {
		assert.Equal(t, string(Names[i]), def.Name)
		require.NotNil(t, def.Parameters)
		assert.Equal(t, "object", def.Parameters.Type)
		for _, req := range def.Parameters.Required {
			assert.Contains(t, def.Parameters.Properties, req, "%s.%s", def.Name, req)
		}
	}
}

func TestParseName(t *testing.T) {
	n, ok := ParseName("faq")
	assert.True(t, ok)
	assert.Equal(t, FAQ, n)
	_, ok = ParseName("FAQ")
	assert.False(t, ok)
}
