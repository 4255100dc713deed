package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Name identifies one of the operations the model may call.
type Name string

const (
	GetAvailability       Name = "get_availability"
	CreateAppointment     Name = "create_appointment"
	RescheduleAppointment Name = "reschedule_appointment"
	CancelAppointment     Name = "cancel_appointment"
	ConfirmAppointment    Name = "confirm_appointment"
	FAQ                   Name = "faq"
)

// Names lists every tool in declaration order.
var Names = []Name{GetAvailability, CreateAppointment, RescheduleAppointment, CancelAppointment, ConfirmAppointment, FAQ}

// ParseName reports whether s names a known tool.
func ParseName(s string) (Name, bool) {
	for _, n := range Names {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// Args is the decoded argument set of one tool call. The set of
// implementations is closed.
type Args interface {
	Tool() Name
	missing() string
}

type AvailabilityArgs struct {
	Provider string `json:"provider"`
	Date     string `json:"date"`
}

type CreateArgs struct {
	PatientContact   string `json:"patient_contact"`
	Provider         string `json:"provider"`
	Service          string `json:"service"`
	Start            string `json:"start"`
	PatientConfirmed *bool  `json:"patient_confirmed,omitempty"`
}

type RescheduleArgs struct {
	ID       string `json:"id"`
	NewStart string `json:"new_start"`
}

type CancelArgs struct {
	ID string `json:"id"`
}

type ConfirmArgs struct {
	ID string `json:"id"`
}

type FAQArgs struct {
	Topic    string `json:"topic"`
	Question string `json:"question,omitempty"`
}

func (AvailabilityArgs) Tool() Name { return GetAvailability }
func (CreateArgs) Tool() Name       { return CreateAppointment }
func (RescheduleArgs) Tool() Name   { return RescheduleAppointment }
func (CancelArgs) Tool() Name       { return CancelAppointment }
func (ConfirmArgs) Tool() Name      { return ConfirmAppointment }
func (FAQArgs) Tool() Name          { return FAQ }

func (a AvailabilityArgs) missing() string {
	return firstBlank("provider", a.Provider, "date", a.Date)
}

func (a CreateArgs) missing() string {
	return firstBlank("patient_contact", a.PatientContact, "provider", a.Provider, "service", a.Service, "start", a.Start)
}

func (a RescheduleArgs) missing() string { return firstBlank("id", a.ID, "new_start", a.NewStart) }
func (a CancelArgs) missing() string     { return firstBlank("id", a.ID) }
func (a ConfirmArgs) missing() string    { return firstBlank("id", a.ID) }
func (a FAQArgs) missing() string        { return firstBlank("topic", a.Topic) }

func firstBlank(pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return pairs[i]
		}
	}
	return ""
}

// Decode strictly parses raw into the argument struct for name. Unknown
// fields, wrong types and missing required fields are validation failures.
func Decode(name Name, raw json.RawMessage) (Args, *Failure) {
	switch name {
	case GetAvailability:
		return decodeInto(raw, &AvailabilityArgs{})
	case CreateAppointment:
		return decodeInto(raw, &CreateArgs{})
	case RescheduleAppointment:
		return decodeInto(raw, &RescheduleArgs{})
	case CancelAppointment:
		return decodeInto(raw, &CancelArgs{})
	case ConfirmAppointment:
		return decodeInto(raw, &ConfirmArgs{})
	case FAQ:
		return decodeInto(raw, &FAQArgs{})
	}
	return nil, &Failure{Kind: KindUnknownTool, Message: fmt.Sprintf("unknown tool %q", name)}
}

type argsPtr[T Args] interface {
	*T
}

func decodeInto[T Args, P argsPtr[T]](raw json.RawMessage, dst P) (Args, *Failure) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return nil, decodeFailure(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &Failure{Kind: KindValidation, Message: "arguments must be a single JSON object"}
	}
	args := *dst
	if field := args.missing(); field != "" {
		return nil, &Failure{Kind: KindValidation, Field: field, Message: field + " is required"}
	}
	return args, nil
}

func decodeFailure(err error) *Failure {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return &Failure{Kind: KindValidation, Message: "arguments must be a JSON object"}
		}
		return &Failure{
			Kind:    KindValidation,
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()),
		}
	}
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		field := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return &Failure{Kind: KindValidation, Field: field, Message: fmt.Sprintf("unknown field %q", field)}
	}
	return &Failure{Kind: KindValidation, Message: "arguments are not valid JSON"}
}
