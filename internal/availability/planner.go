package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/internal/timemath"
)

// Interval is a booked half-open [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// BookingSource lists confirmed bookings for a provider overlapping [from, to).
type BookingSource interface {
	BookedIntervals(ctx context.Context, provider string, from, to time.Time) ([]Interval, error)
}

// Planner turns business hours into the free slot grid for a provider and date.
type Planner struct {
	policies policy.Source
}

// NewPlanner builds a planner reading hours from policies.
func NewPlanner(policies policy.Source) *Planner {
	if policies == nil {
		policies = policy.Static{}
	}
	return &Planner{policies: policies}
}

// Plan loads the current policy and returns the free slots.
func (p *Planner) Plan(ctx context.Context, provider string, date time.Time, source BookingSource) ([]timemath.TimeOfDay, error) {
	return p.FreeSlots(ctx, p.policies.Load(ctx), provider, date, source)
}

// FreeSlots returns the chronological slot starts on date that do not overlap a
// confirmed booking for provider. A day without business hours yields an empty slice.
func (p *Planner) FreeSlots(ctx context.Context, cfg *policy.Config, provider string, date time.Time, source BookingSource) ([]timemath.TimeOfDay, error) {
	if cfg == nil {
		cfg = policy.Default()
	}
	loc := cfg.Location()
	provider = cfg.ResolveProvider(provider)
	dayStart, dayEnd := timemath.DayBounds(date, loc)

	grid := Grid(cfg, dayStart)
	if len(grid) == 0 {
		return []timemath.TimeOfDay{}, nil
	}

	busy, err := source.BookedIntervals(ctx, provider, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("availability: booked intervals: %w", err)
	}

	slot := cfg.Slot()
	free := make([]timemath.TimeOfDay, 0, len(grid))
	for _, tod := range grid {
		start := timemath.At(dayStart, tod, loc)
		if overlapsAny(start, start.Add(slot), busy) {
			continue
		}
		free = append(free, tod)
	}
	return free, nil
}

// Grid is the canonical, de-duplicated slot grid for date's weekday.
func Grid(cfg *policy.Config, date time.Time) []timemath.TimeOfDay {
	weekday := date.In(cfg.Location()).Weekday()
	seen := make(map[timemath.TimeOfDay]struct{})
	var grid []timemath.TimeOfDay
	for _, w := range cfg.WindowsOn(weekday) {
		for _, tod := range timemath.Steps(w.Open, w.Close, cfg.Slot(), cfg.Slot()) {
			if _, dup := seen[tod]; dup {
				continue
			}
			seen[tod] = struct{}{}
			grid = append(grid, tod)
		}
	}
	sort.Slice(grid, func(i, j int) bool { return grid[i] < grid[j] })
	return grid
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if timemath.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
