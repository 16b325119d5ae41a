package schedule

import (
	"time"

	"barberbook/internal/domain"
)

// Occupancy is the set of occupied slots on the calendar, built by expanding
// every active booking (and blocked slot) into its constituent slot keys.
type Occupancy map[domain.SlotKey]struct{}

func (o Occupancy) Add(keys ...domain.SlotKey) {
	for _, k := range keys {
		o[k] = struct{}{}
	}
}

func (o Occupancy) Taken(k domain.SlotKey) bool {
	_, ok := o[k]
	return ok
}

// CanFit reports whether count consecutive slots starting at start fit on
// that day: the day is a working day, the whole range stays inside working
// hours, and no sub-slot is occupied. Pure; the caller supplies everything.
func CanFit(cfg domain.ScheduleConfig, start domain.SlotKey, count int, occupied Occupancy, loc *time.Location) bool {
	if count < 1 {
		count = 1
	}
	day := start.Time(loc)
	if day.IsZero() || !cfg.Workday(day.Weekday()) {
		return false
	}
	if start.Minute < cfg.StartHour*60 {
		return false
	}
	if start.Minute+count*domain.SlotMinutes > cfg.EndHour*60 {
		return false
	}
	for _, k := range start.Range(count) {
		if occupied.Taken(k) {
			return false
		}
	}
	return true
}

// FitStarts lists every start time on the given day where count consecutive
// slots fit, skipping starts that are already in the past relative to now.
func FitStarts(cfg domain.ScheduleConfig, day time.Time, count int, occupied Occupancy, now time.Time) []domain.SlotKey {
	if !cfg.Workday(day.Weekday()) {
		return nil
	}
	loc := day.Location()
	var out []domain.SlotKey
	for m := cfg.StartHour * 60; m+max(count, 1)*domain.SlotMinutes <= cfg.EndHour*60; m += domain.SlotMinutes {
		k := domain.SlotKey{Day: domain.FormatDay(day), Minute: m}
		if !k.Time(loc).After(now) {
			continue
		}
		if CanFit(cfg, k, count, occupied, loc) {
			out = append(out, k)
		}
	}
	return out
}

// WorkingDates returns the next n bookable dates starting from now's date.
func WorkingDates(cfg domain.ScheduleConfig, now time.Time, n int) []time.Time {
	cursor := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var out []time.Time
	for len(out) < n {
		if cfg.Workday(cursor.Weekday()) {
			out = append(out, cursor)
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return out
}
