package appointments

import (
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Appointment is a booked visit. Start and End are kept in UTC.
type Appointment struct {
	ID             string    `json:"id"`
	PatientContact string    `json:"patient_contact"`
	Provider       string    `json:"provider"`
	Service        string    `json:"service,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Duration is End minus Start.
func (a Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Active reports whether the appointment holds its slot.
func (a Appointment) Active() bool {
	return a.Status == StatusConfirmed
}

// CreateRequest describes a new booking. A zero Duration uses the store default.
type CreateRequest struct {
	PatientContact string
	Provider       string
	Service        string
	Start          time.Time
	Duration       time.Duration
}
