package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Backend key layout. Each appointment is its own item so no single value
// grows with the booking count:
//
//	appointments:item:<id>   one Appointment
//	appointments:day:<date>  ids starting on that UTC date
//	appointments:days        every date that has an index
//
// The in-memory map is authoritative and indexes are rewritten from it, which
// assumes a single writer process per backend.
const (
	DaysKey       = "appointments:days"
	dayKeyPrefix  = "appointments:day:"
	itemKeyPrefix = "appointments:item:"
	dayLayout     = "2006-01-02"
)

// ItemKey is the backend key holding one appointment.
func ItemKey(id string) string { return itemKeyPrefix + id }

// DayKey is the backend key holding the ids that start on day (YYYY-MM-DD, UTC).
func DayKey(day string) string { return dayKeyPrefix + day }

func dayOf(t time.Time) string { return t.UTC().Format(dayLayout) }

// Load replaces the in-memory state with what the backend holds. Index entries
// whose item is missing are skipped.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	raw, err := s.backend.Get(ctx, DaysKey)
	if err != nil {
		return fmt.Errorf("appointments: load day list: %w", err)
	}
	if raw == nil {
		return nil
	}
	var days []string
	if err := json.Unmarshal(raw, &days); err != nil {
		return fmt.Errorf("appointments: decode day list: %w", err)
	}

	items := make(map[string]Appointment)
	known := make(map[string]struct{}, len(days))
	for _, day := range days {
		known[day] = struct{}{}
		ids, err := s.loadIDs(ctx, day)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := items[id]; ok {
				continue
			}
			appt, found, err := s.loadItem(ctx, id)
			if err != nil {
				return err
			}
			if found {
				items[appt.ID] = appt
			}
		}
	}

	s.mu.Lock()
	s.items = items
	s.days = known
	s.mu.Unlock()
	s.logger.Info("appointments loaded", "count", len(items), "days", len(known))
	return nil
}

func (s *Store) loadIDs(ctx context.Context, day string) ([]string, error) {
	raw, err := s.backend.Get(ctx, DayKey(day))
	if err != nil {
		return nil, fmt.Errorf("appointments: load day %s: %w", day, err)
	}
	if raw == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("appointments: decode day %s: %w", day, err)
	}
	return ids, nil
}

func (s *Store) loadItem(ctx context.Context, id string) (Appointment, bool, error) {
	raw, err := s.backend.Get(ctx, ItemKey(id))
	if err != nil {
		return Appointment{}, false, fmt.Errorf("appointments: load %s: %w", id, err)
	}
	if raw == nil {
		return Appointment{}, false, nil
	}
	var appt Appointment
	if err := json.Unmarshal(raw, &appt); err != nil {
		return Appointment{}, false, fmt.Errorf("appointments: decode %s: %w", id, err)
	}
	return appt, true, nil
}

// persistLocked writes appt after s.items already holds it. prevDay is the day
// it was indexed under before this mutation, empty for a new appointment.
// Indexes are written before the item so a reader never finds an unindexed
// item; an index pointing at a missing item is skipped on Load.
func (s *Store) persistLocked(ctx context.Context, appt Appointment, prevDay string) error {
	if s.backend == nil {
		return nil
	}
	day := dayOf(appt.Start)
	if day != prevDay {
		if err := s.writeDayLocked(ctx, day); err != nil {
			return err
		}
		if err := s.addDayLocked(ctx, day); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(appt)
	if err != nil {
		return fmt.Errorf("appointments: encode %s: %w", appt.ID, err)
	}
	if err := s.backend.Set(ctx, ItemKey(appt.ID), raw); err != nil {
		return fmt.Errorf("appointments: persist %s: %w", appt.ID, err)
	}

	if prevDay != "" && prevDay != day {
		if err := s.writeDayLocked(ctx, prevDay); err != nil {
			s.logger.Warn("stale day index left behind", "day", prevDay, "appointment_id", appt.ID, "error", err)
		}
	}
	return nil
}

// writeDayLocked rewrites the index for day from the in-memory map.
func (s *Store) writeDayLocked(ctx context.Context, day string) error {
	ids := make([]string, 0)
	for id, appt := range s.items {
		if dayOf(appt.Start) == day {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("appointments: encode day %s: %w", day, err)
	}
	if err := s.backend.Set(ctx, DayKey(day), raw); err != nil {
		return fmt.Errorf("appointments: persist day %s: %w", day, err)
	}
	return nil
}

func (s *Store) addDayLocked(ctx context.Context, day string) error {
	if _, ok := s.days[day]; ok {
		return nil
	}
	days := make([]string, 0, len(s.days)+1)
	for d := range s.days {
		days = append(days, d)
	}
	days = append(days, day)
	sort.Strings(days)
	raw, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("appointments: encode day list: %w", err)
	}
	if err := s.backend.Set(ctx, DaysKey, raw); err != nil {
		return fmt.Errorf("appointments: persist day list: %w", err)
	}
	s.days[day] = struct{}{}
	return nil
}
