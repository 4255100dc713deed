package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medspa-concierge/internal/appointments"
	"github.com/wolfman30/medspa-concierge/internal/llm"
	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/internal/timemath"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

// Scheduler is the appointment surface the dispatcher drives.
type Scheduler interface {
	Availability(ctx context.Context, cfg *policy.Config, provider string, date time.Time) ([]timemath.TimeOfDay, error)
	Create(ctx context.Context, req appointments.CreateRequest) (appointments.Appointment, error)
	Reschedule(ctx context.Context, id string, newStart time.Time) (appointments.Appointment, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Confirm(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (appointments.Appointment, error)
}

// Dispatcher validates tool calls, applies booking policy and runs them
// against the scheduler. It never returns a Go error; failures are Results.
type Dispatcher struct {
	scheduler Scheduler
	now       timemath.Clock
	length    time.Duration
	logger    *logging.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source used for minimum-notice checks.
func WithClock(clock timemath.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithAppointmentLength sets the length of booked appointments.
func WithAppointmentLength(length time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if length > 0 {
			d.length = length
		}
	}
}

// NewDispatcher builds a dispatcher over scheduler.
func NewDispatcher(scheduler Scheduler, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if scheduler == nil {
		panic("tools: scheduler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		scheduler: scheduler,
		now:       timemath.SystemClock,
		length:    timemath.DefaultSlot,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one tool call under cfg.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *policy.Config, call llm.ToolCall) (result Result) {
	if cfg == nil {
		cfg = policy.Default()
	}
	result = Result{CallID: call.ID, Tool: call.Name}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool call panicked", "tool", call.Name, "call_id", call.ID, "panic", fmt.Sprint(r))
			result = Result{CallID: call.ID, Tool: call.Name, Error: &Failure{Kind: KindInternal, Message: "the tool failed unexpectedly"}}
		}
	}()

	name, ok := ParseName(call.Name)
	if !ok {
		result.Error = &Failure{Kind: KindUnknownTool, Message: fmt.Sprintf("unknown tool %q", call.Name)}
		return result
	}
	args, failure := Decode(name, call.Arguments)
	if failure != nil {
		result.Error = failure
		return result
	}

	var data any
	switch a := args.(type) {
	case AvailabilityArgs:
		data, failure = d.availability(ctx, cfg, a)
	case CreateArgs:
		data, failure = d.create(ctx, cfg, a)
	case RescheduleArgs:
		data, failure = d.reschedule(ctx, cfg, a)
	case CancelArgs:
		data, failure = d.cancel(ctx, a)
	case ConfirmArgs:
		data, failure = d.confirm(ctx, a)
	case FAQArgs:
		data, failure = d.faq(cfg, a)
	default:
		failure = &Failure{Kind: KindUnknownTool, Message: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	if failure != nil {
		result.Error = failure
		d.logger.Info("tool call rejected", "tool", call.Name, "call_id", call.ID, "kind", failure.Kind, "field", failure.Field)
		return result
	}
	result.OK = true
	result.Data = data
	d.logger.Debug("tool call succeeded", "tool", call.Name, "call_id", call.ID)
	return result
}

func (d *Dispatcher) availability(ctx context.Context, cfg *policy.Config, a AvailabilityArgs) (any, *Failure) {
	loc := cfg.Location()
	date, err := timemath.ParseDate(a.Date, loc)
	if err != nil {
		return nil, &Failure{Kind: KindValidation, Field: "date", Message: "date must be YYYY-MM-DD"}
	}
	provider := cfg.ResolveProvider(a.Provider)
	slots, err := d.scheduler.Availability(ctx, cfg, provider, date)
	if err != nil {
		return nil, d.storeFailure(err)
	}

	earliest := d.now().Add(cfg.MinNotice())
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		if timemath.At(date, slot, loc).Before(earliest) {
			continue
		}
		out = append(out, slot.String())
	}
	return AvailabilityData{Provider: provider, Date: date.Format(timemath.DateLayout), Timezone: loc.String(), Slots: out}, nil
}

func (d *Dispatcher) create(ctx context.Context, cfg *policy.Config, a CreateArgs) (any, *Failure) {
	start, failure := d.bookableStart(cfg, "start", a.Start, d.length)
	if failure != nil {
		return nil, failure
	}
	if !cfg.AutoConfirm() && (a.PatientConfirmed == nil || !*a.PatientConfirmed) {
		return nil, &Failure{
			Kind:    KindPolicy,
			Field:   "patient_confirmed",
			Message: "confirm the details with the patient and set patient_confirmed=true before booking",
		}
	}
	appt, err := d.scheduler.Create(ctx, appointments.CreateRequest{
		PatientContact: a.PatientContact,
		Provider:       cfg.ResolveProvider(a.Provider),
		Service:        a.Service,
		Start:          start,
		Duration:       d.length,
	})
	if err != nil {
		return nil, d.storeFailure(err)
	}
	return appointmentData(appt, cfg.Location()), nil
}

func (d *Dispatcher) reschedule(ctx context.Context, cfg *policy.Config, a RescheduleArgs) (any, *Failure) {
	current, err := d.scheduler.Get(ctx, a.ID)
	if err != nil {
		return nil, d.storeFailure(err)
	}
	start, failure := d.bookableStart(cfg, "new_start", a.NewStart, current.Duration())
	if failure != nil {
		return nil, failure
	}
	appt, err := d.scheduler.Reschedule(ctx, a.ID, start)
	if err != nil {
		return nil, d.storeFailure(err)
	}
	return appointmentData(appt, cfg.Location()), nil
}

func (d *Dispatcher) cancel(ctx context.Context, a CancelArgs) (any, *Failure) {
	changed, err := d.scheduler.Cancel(ctx, a.ID)
	if err != nil {
		return nil, d.storeFailure(err)
	}
	return StatusData{ID: a.ID, Changed: changed, Status: string(appointments.StatusCancelled)}, nil
}

func (d *Dispatcher) confirm(ctx context.Context, a ConfirmArgs) (any, *Failure) {
	changed, err := d.scheduler.Confirm(ctx, a.ID)
	if err != nil {
		return nil, d.storeFailure(err)
	}
	return StatusData{ID: a.ID, Changed: changed, Status: string(appointments.StatusConfirmed)}, nil
}

func (d *Dispatcher) faq(cfg *policy.Config, a FAQArgs) (any, *Failure) {
	topic := policy.FAQTopic(strings.ToLower(strings.TrimSpace(a.Topic)))
	answer, ok := cfg.TopicAnswer(topic)
	if !ok {
		return nil, &Failure{Kind: KindValidation, Field: "topic", Message: "topic must be one of address, price, plans"}
	}
	data := FAQData{Topic: string(topic), Answer: answer}
	if q := strings.TrimSpace(a.Question); q != "" {
		if entry, matched := cfg.MatchQuestion(q); matched {
			data.Answer = entry.Answer
			data.MatchedQuestion = entry.Question
		}
	}
	if strings.TrimSpace(data.Answer) == "" {
		return nil, &Failure{Kind: KindNotFound, Field: "topic", Message: "no answer is configured for this topic"}
	}
	return data, nil
}

// bookableStart parses raw and applies the minimum-notice and business-hours rules.
func (d *Dispatcher) bookableStart(cfg *policy.Config, field, raw string, length time.Duration) (time.Time, *Failure) {
	start, err := timemath.ParseInstant(raw, cfg.Location())
	if err != nil {
		return time.Time{}, &Failure{Kind: KindValidation, Field: field, Message: field + " must be an ISO-8601 date and time"}
	}
	if notice := cfg.MinNotice(); start.Before(d.now().Add(notice)) {
		return time.Time{}, &Failure{
			Kind:    KindPolicy,
			Field:   field,
			Message: fmt.Sprintf("appointments need at least %d minutes notice", int(notice/time.Minute)),
		}
	}
	if !cfg.WithinHours(start, length) {
		return time.Time{}, &Failure{
			Kind:    KindPolicy,
			Field:   field,
			Message: "the requested time is outside business hours (" + cfg.HoursSummary() + ")",
		}
	}
	return start, nil
}

func (d *Dispatcher) storeFailure(err error) *Failure {
	var conflict *appointments.ConflictError
	var invalid *appointments.InvalidError
	switch {
	case errors.As(err, &conflict):
		return &Failure{Kind: KindConflict, Message: "that time is already booked", ConflictingID: conflict.ConflictingID}
	case errors.Is(err, appointments.ErrNotFound):
		return &Failure{Kind: KindNotFound, Field: "id", Message: "no appointment with that id"}
	case errors.As(err, &invalid):
		return &Failure{Kind: KindValidation, Field: invalid.Field, Message: invalid.Field + " " + invalid.Reason}
	case errors.Is(err, appointments.ErrInvalid):
		return &Failure{Kind: KindValidation, Message: err.Error()}
	}
	d.logger.Error("tool call failed", "error", err)
	return &Failure{Kind: KindInternal, Message: "the scheduling system is unavailable"}
}

func appointmentData(a appointments.Appointment, loc *time.Location) AppointmentData {
	return AppointmentData{
		ID:             a.ID,
		PatientContact: a.PatientContact,
		Provider:       a.Provider,
		Service:        a.Service,
		Start:          a.Start.In(loc).Format(time.RFC3339),
		End:            a.End.In(loc).Format(time.RFC3339),
		Status:         string(a.Status),
	}
}
