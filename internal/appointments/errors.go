package appointments

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned for unknown appointment ids.
	ErrNotFound = errors.New("appointments: appointment not found")
	// ErrInvalid is returned when a request is malformed.
	ErrInvalid = errors.New("appointments: invalid request")
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("appointments: slot conflict")
)

// InvalidError names the offending field of a rejected request.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("appointments: invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalid) match.
func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

// ConflictError reports the confirmed appointment that already holds the interval.
type ConflictError struct {
	ConflictingID string
	Provider      string
	Start         time.Time
	End           time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("appointments: %s is already booked %s-%s (appointment %s)",
		e.Provider, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.ConflictingID)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
