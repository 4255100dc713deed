package appointments

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medspa-concierge/internal/availability"
	"github.com/wolfman30/medspa-concierge/internal/kv"
	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/internal/timemath"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

var appointmentsTracer = otel.Tracer("medspa.internal.appointments")

// Store owns every appointment. All mutations serialize on one write lock so the
// conflict check and the insert are a single critical section.
type Store struct {
	mu    sync.RWMutex
	items map[string]Appointment
	days  map[string]struct{}

	backend  kv.Backend
	resolve  func(string) string
	planner  *availability.Planner
	now      timemath.Clock
	duration time.Duration
	newID    func() string
	logger   *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBackend persists each appointment to backend as it changes.
func WithBackend(backend kv.Backend) Option {
	return func(s *Store) { s.backend = backend }
}

// WithPlanner sets the planner used by Availability.
func WithPlanner(p *availability.Planner) Option {
	return func(s *Store) {
		if p != nil {
			s.planner = p
		}
	}
}

// WithProviderResolver maps free-text provider names onto canonical ones before
// they are stored or compared, so aliases of one provider conflict.
func WithProviderResolver(fn func(string) string) Option {
	return func(s *Store) {
		if fn != nil {
			s.resolve = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock timemath.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithDuration sets the default appointment length.
func WithDuration(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.duration = d
		}
	}
}

// WithIDGenerator overrides uuid ids. Tests use it for stable output.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore builds an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		items:    make(map[string]Appointment),
		days:     make(map[string]struct{}),
		resolve:  strings.TrimSpace,
		planner:  availability.NewPlanner(nil),
		now:      timemath.SystemClock,
		duration: timemath.DefaultSlot,
		newID:    func() string { return uuid.NewString() },
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of one appointment.
func (s *Store) Get(_ context.Context, id string) (Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return appt, nil
}

// ListUpcoming returns appointments starting at or after now, earliest first.
func (s *Store) ListUpcoming(_ context.Context) ([]Appointment, error) {
	now := s.now()
	s.mu.RLock()
	out := make([]Appointment, 0, len(s.items))
	for _, appt := range s.items {
		if !appt.Start.Before(now) {
			out = append(out, appt)
		}
	}
	s.mu.RUnlock()
	sortAppointments(out)
	return out, nil
}

// BookedIntervals lists confirmed bookings for provider overlapping [from, to).
func (s *Store) BookedIntervals(_ context.Context, provider string, from, to time.Time) ([]availability.Interval, error) {
	provider = s.resolve(provider)
	s.mu.RLock()
	var out []availability.Interval
	for _, appt := range s.items {
		if !appt.Active() || !s.sameProvider(appt.Provider, provider) {
			continue
		}
		if timemath.Overlaps(appt.Start, appt.End, from, to) {
			out = append(out, availability.Interval{Start: appt.Start, End: appt.End})
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Availability returns free slot starts for provider on date under cfg. A nil
// cfg makes the planner load the current policy itself. No store lock is held
// while the planner runs.
func (s *Store) Availability(ctx context.Context, cfg *policy.Config, provider string, date time.Time) ([]timemath.TimeOfDay, error) {
	if cfg == nil {
		return s.planner.Plan(ctx, provider, date, s)
	}
	return s.planner.FreeSlots(ctx, cfg, provider, date, s)
}

// Create books a confirmed appointment unless the provider is already busy.
func (s *Store) Create(ctx context.Context, req CreateRequest) (Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(attribute.String("medspa.provider", req.Provider))

	if err := s.validate(req); err != nil {
		span.RecordError(err)
		return Appointment{}, err
	}
	length := req.Duration
	if length == 0 {
		length = s.duration
	}
	now := s.now().UTC()
	appt := Appointment{
		ID:             s.newID(),
		PatientContact: strings.TrimSpace(req.PatientContact),
		Provider:       strings.TrimSpace(req.Provider),
		Service:        strings.TrimSpace(req.Service),
		Start:          req.Start.UTC(),
		End:            timemath.End(req.Start.UTC(), length),
		Status:         StatusConfirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conflictLocked(appt.Provider, appt.Start, appt.End, ""); err != nil {
		return Appointment{}, s.fail(span, err)
	}
	s.items[appt.ID] = appt
	if err := s.persistLocked(ctx, appt, ""); err != nil {
		delete(s.items, appt.ID)
		return Appointment{}, s.fail(span, err)
	}

	span.SetAttributes(attribute.String("medspa.appointment_id", appt.ID))
	s.logger.Info("appointment created", "appointment_id", appt.ID, "provider", appt.Provider, "start", appt.Start)
	return appt, nil
}

// Reschedule moves an appointment to newStart keeping its length. A cancelled
// appointment becomes confirmed again.
func (s *Store) Reschedule(ctx context.Context, id string, newStart time.Time) (Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("medspa.appointment_id", id))

	if newStart.IsZero() {
		err := &InvalidError{Field: "new_start", Reason: "is required"}
		span.RecordError(err)
		return Appointment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.items[id]
	if !ok {
		return Appointment{}, s.fail(span, ErrNotFound)
	}
	start := newStart.UTC()
	end := timemath.End(start, prev.Duration())
	if err := s.conflictLocked(prev.Provider, start, end, id); err != nil {
		return Appointment{}, s.fail(span, err)
	}

	next := prev
	next.Start = start
	next.End = end
	next.Status = StatusConfirmed
	next.UpdatedAt = s.now().UTC()
	s.items[id] = next
	if err := s.persistLocked(ctx, next, dayOf(prev.Start)); err != nil {
		s.items[id] = prev
		return Appointment{}, s.fail(span, err)
	}

	s.logger.Info("appointment rescheduled", "appointment_id", id, "from", prev.Start, "to", next.Start)
	return next, nil
}

// Cancel marks an appointment cancelled. It reports whether the status changed.
func (s *Store) Cancel(ctx context.Context, id string) (bool, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("medspa.appointment_id", id))

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.items[id]
	if !ok {
		return false, s.fail(span, ErrNotFound)
	}
	if prev.Status == StatusCancelled {
		return false, nil
	}
	if err := s.setStatusLocked(ctx, prev, StatusCancelled); err != nil {
		return false, s.fail(span, err)
	}
	s.logger.Info("appointment cancelled", "appointment_id", id)
	return true, nil
}

// Confirm marks an appointment confirmed. Reviving a cancelled appointment
// fails with a *ConflictError if its slot has since been taken.
func (s *Store) Confirm(ctx context.Context, id string) (bool, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("medspa.appointment_id", id))

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.items[id]
	if !ok {
		return false, s.fail(span, ErrNotFound)
	}
	if prev.Status == StatusConfirmed {
		return false, nil
	}
	if err := s.conflictLocked(prev.Provider, prev.Start, prev.End, id); err != nil {
		return false, s.fail(span, err)
	}
	if err := s.setStatusLocked(ctx, prev, StatusConfirmed); err != nil {
		return false, s.fail(span, err)
	}
	s.logger.Info("appointment confirmed", "appointment_id", id)
	return true, nil
}

func (s *Store) setStatusLocked(ctx context.Context, prev Appointment, status Status) error {
	next := prev
	next.Status = status
	next.UpdatedAt = s.now().UTC()
	s.items[prev.ID] = next
	if err := s.persistLocked(ctx, next, dayOf(prev.Start)); err != nil {
		s.items[prev.ID] = prev
		return err
	}
	return nil
}

func (s *Store) validate(req CreateRequest) error {
	switch {
	case strings.TrimSpace(req.PatientContact) == "":
		return &InvalidError{Field: "patient_contact", Reason: "is required"}
	case strings.TrimSpace(req.Provider) == "":
		return &InvalidError{Field: "provider", Reason: "is required"}
	case req.Start.IsZero():
		return &InvalidError{Field: "start", Reason: "is required"}
	case req.Duration < 0:
		return &InvalidError{Field: "duration", Reason: "must be positive"}
	}
	return nil
}

// conflictLocked returns the earliest confirmed booking of provider overlapping
// [start, end), ignoring excludeID. provider must already be resolved. Callers
// hold the lock.
func (s *Store) conflictLocked(provider string, start, end time.Time, excludeID string) error {
	var hit *Appointment
	for id, appt := range s.items {
		if id == excludeID || !appt.Active() || !s.sameProvider(appt.Provider, provider) {
			continue
		}
		if !timemath.Overlaps(start, end, appt.Start, appt.End) {
			continue
		}
		if hit == nil || appt.Start.Before(hit.Start) || (appt.Start.Equal(hit.Start) && appt.ID < hit.ID) {
			a := appt
			hit = &a
		}
	}
	if hit == nil {
		return nil
	}
	return &ConflictError{ConflictingID: hit.ID, Provider: hit.Provider, Start: hit.Start, End: hit.End}
}

func (s *Store) fail(span trace.Span, err error) error {
	span.RecordError(err)
	s.logger.Warn("appointment mutation rejected", "error", err)
	return err
}

// sameProvider compares a stored provider against an already resolved name.
func (s *Store) sameProvider(stored, resolved string) bool {
	return strings.EqualFold(strings.TrimSpace(stored), resolved)
}

func sortAppointments(list []Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Start.Equal(list[j].Start) {
			return list[i].ID < list[j].ID
		}
		return list[i].Start.Before(list[j].Start)
	})
}
