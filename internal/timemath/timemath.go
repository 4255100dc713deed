// Package timemath holds the pure time arithmetic used by scheduling: slot
// stepping, appointment end computation, ISO range generation and parsing of
// wall-clock values in a clinic's location.
package timemath

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultSlot is the canonical appointment length and grid step.
const DefaultSlot = 30 * time.Minute

// DateLayout is the calendar date format exchanged with the reasoning service.
const DateLayout = "2006-01-02"

// ErrInvalidTime indicates a value could not be parsed as a time of day, date or instant.
var ErrInvalidTime = errors.New("timemath: invalid time")

// Clock returns the current instant. Tests substitute a fixed clock.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time { return time.Now() }

// Fixed returns a Clock pinned to t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// TimeOfDay is a wall-clock time expressed as minutes after midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" (24-hour, single-digit hours allowed).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidTime, s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) || len(s) > 5 {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidTime, s)
	}
	return NewTimeOfDay(h, m), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add shifts the time of day by d, truncated to whole minutes.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalText renders the "HH:MM" form so slot lists serialize as strings.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Of returns the wall-clock time of instant in loc.
func Of(instant time.Time, loc *time.Location) TimeOfDay {
	local := instant.In(loc)
	return NewTimeOfDay(local.Hour(), local.Minute())
}

// Steps generates slot starts from open while start+length <= close.
func Steps(open, close TimeOfDay, step, length time.Duration) []TimeOfDay {
	if step <= 0 || length <= 0 || close <= open {
		return nil
	}
	var out []TimeOfDay
	for t := open; t.Add(length) <= close; t = t.Add(step) {
		out = append(out, t)
	}
	return out
}

// End returns the exclusive end of an appointment starting at start.
func End(start time.Time, length time.Duration) time.Time {
	if length <= 0 {
		length = DefaultSlot
	}
	return start.Add(length)
}

// Overlaps reports whether half-open [aStart,aEnd) and [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// DayBounds returns midnight of date and the following midnight in loc.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// At combines a calendar date with a wall-clock time in loc.
func At(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	local := date.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), tod.Hour(), tod.Minute(), 0, 0, loc)
}

// ParseDate parses "YYYY-MM-DD" as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTime, s)
	}
	return d, nil
}

var localInstantLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseInstant accepts RFC 3339 instants or zone-less local date-times, which are
// interpreted in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localInstantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: instant %q", ErrInvalidTime, s)
}

// ISORange returns RFC 3339 renderings of every step in [from, to).
func ISORange(from, to time.Time, step time.Duration) []string {
	if step <= 0 || !to.After(from) {
		return nil
	}
	var out []string
	for t := from; t.Before(to); t = t.Add(step) {
		out = append(out, t.Format(time.RFC3339))
	}
	return out
}
