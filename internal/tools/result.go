package tools

import (
	"encoding/json"
)

// Kind classifies a failed tool call for the model.
type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindPolicy      Kind = "policy_violation"
	KindConflict    Kind = "conflict"
	KindNotFound    Kind = "not_found"
	KindInternal    Kind = "internal_error"
	KindUnknownTool Kind = "unknown_tool"
)

// Failure is the error half of a Result.
type Failure struct {
	Kind          Kind   `json:"kind"`
	Message       string `json:"message"`
	Field         string `json:"field,omitempty"`
	ConflictingID string `json:"conflicting_id,omitempty"`
}

// Result is what a tool call returns to the model. Exactly one of Data and Error is set.
type Result struct {
	CallID string   `json:"call_id"`
	Tool   string   `json:"tool"`
	OK     bool     `json:"ok"`
	Data   any      `json:"data,omitempty"`
	Error  *Failure `json:"error,omitempty"`
}

// JSON renders the result as the tool message content.
func (r Result) JSON() string {
	raw, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(Result{
			CallID: r.CallID,
			Tool:   r.Tool,
			Error:  &Failure{Kind: KindInternal, Message: "result could not be encoded"},
		})
		return string(fallback)
	}
	return string(raw)
}

// Status is "ok" or the failure kind, for metrics and logs.
func (r Result) Status() string {
	if r.OK {
		return "ok"
	}
	if r.Error == nil {
		return string(KindInternal)
	}
	return string(r.Error.Kind)
}

// AvailabilityData answers get_availability.
type AvailabilityData struct {
	Provider string   `json:"provider"`
	Date     string   `json:"date"`
	Timezone string   `json:"timezone"`
	Slots    []string `json:"slots"`
}

// AppointmentData is an appointment rendered in clinic-local time.
type AppointmentData struct {
	ID             string `json:"id"`
	PatientContact string `json:"patient_contact"`
	Provider       string `json:"provider"`
	Service        string `json:"service,omitempty"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Status         string `json:"status"`
}

// StatusData answers cancel and confirm.
type StatusData struct {
	ID      string `json:"id"`
	Changed bool   `json:"changed"`
	Status  string `json:"status"`
}

// FAQData answers faq.
type FAQData struct {
	Topic           string `json:"topic"`
	Answer          string `json:"answer"`
	MatchedQuestion string `json:"matched_question,omitempty"`
}
