package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medspa-concierge/internal/timemath"
)

// Window is one business-hours entry: a set of weekdays and an open/close range.
type Window struct {
	Days  [7]bool // indexed by time.Weekday
	Open  timemath.TimeOfDay
	Close timemath.TimeOfDay
}

var dayIndex = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

var dayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ParseWindow parses "<days> <HH:MM>-<HH:MM>" where days is "daily", a single
// day ("mon"), a range ("mon-fri") or a list ("mon,wed,fri").
func ParseWindow(raw string) (Window, error) {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) != 2 {
		return Window{}, fmt.Errorf("%w: business hours %q: want \"<days> HH:MM-HH:MM\"", ErrInvalidConfig, raw)
	}
	var w Window
	if err := parseDays(fields[0], &w.Days); err != nil {
		return Window{}, fmt.Errorf("%w: business hours %q: %v", ErrInvalidConfig, raw, err)
	}
	openStr, closeStr, ok := strings.Cut(fields[1], "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: business hours %q: missing time range", ErrInvalidConfig, raw)
	}
	open, err := timemath.ParseTimeOfDay(openStr)
	if err != nil {
		return Window{}, fmt.Errorf("%w: business hours %q: %v", ErrInvalidConfig, raw, err)
	}
	closeAt, err := timemath.ParseTimeOfDay(closeStr)
	if err != nil {
		return Window{}, fmt.Errorf("%w: business hours %q: %v", ErrInvalidConfig, raw, err)
	}
	if closeAt <= open {
		return Window{}, fmt.Errorf("%w: business hours %q: close must be after open", ErrInvalidConfig, raw)
	}
	w.Open, w.Close = open, closeAt
	return w, nil
}

func parseDays(spec string, days *[7]bool) error {
	if spec == "daily" {
		for i := range days {
			days[i] = true
		}
		return nil
	}
	for _, part := range strings.Split(spec, ",") {
		from, to, isRange := strings.Cut(part, "-")
		start, ok := dayIndex[from]
		if !ok {
			return fmt.Errorf("unknown day %q", from)
		}
		if !isRange {
			days[start] = true
			continue
		}
		end, ok := dayIndex[to]
		if !ok {
			return fmt.Errorf("unknown day %q", to)
		}
		for d := start; ; d = (d + 1) % 7 {
			days[d] = true
			if d == end {
				break
			}
		}
	}
	return nil
}

// OpenOn reports whether the window applies to the weekday.
func (w Window) OpenOn(day time.Weekday) bool {
	return w.Days[day]
}

// String renders the window compactly, e.g. "Mon-Fri 08:00-18:00".
func (w Window) String() string {
	return fmt.Sprintf("%s %s-%s", renderDays(w.Days), w.Open, w.Close)
}

func renderDays(days [7]bool) string {
	all := true
	for _, open := range days {
		all = all && open
	}
	if all {
		return "Daily"
	}
	// Walk Monday-first so "Mon-Fri" reads naturally.
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	var parts []string
	for i := 0; i < len(order); {
		if !days[order[i]] {
			i++
			continue
		}
		j := i
		for j+1 < len(order) && days[order[j+1]] {
			j++
		}
		switch {
		case j == i:
			parts = append(parts, dayNames[order[i]])
		default:
			parts = append(parts, dayNames[order[i]]+"-"+dayNames[order[j]])
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

// WindowsOn returns the windows open on the weekday, in configured order.
func (c *Config) WindowsOn(day time.Weekday) []Window {
	var out []Window
	for _, w := range c.windows {
		if w.OpenOn(day) {
			out = append(out, w)
		}
	}
	return out
}

// WithinHours reports whether [start, start+length) lies entirely inside one
// business-hours window on start's local day.
func (c *Config) WithinHours(start time.Time, length time.Duration) bool {
	loc := c.Location()
	local := start.In(loc)
	begin := timemath.Of(local, loc)
	end := begin.Add(length)
	for _, w := range c.WindowsOn(local.Weekday()) {
		if begin >= w.Open && end <= w.Close {
			return true
		}
	}
	return false
}

// HoursSummary renders all windows compactly for the system prompt.
func (c *Config) HoursSummary() string {
	if len(c.windows) == 0 {
		return "by appointment only"
	}
	parts := make([]string, 0, len(c.windows))
	for _, w := range c.windows {
		parts = append(parts, w.String())
	}
	return strings.Join(parts, "; ")
}
