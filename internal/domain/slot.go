package domain

import (
	"fmt"
	"time"
)

const (
	// SlotMinutes is the calendar granularity. Every slot starts on a
	// half-hour boundary.
	SlotMinutes = 30

	dayLayout = "2006-01-02"
	keyLayout = "2006-01-02 15:04"
)

// SlotKey addresses one slot of calendar time. Its textual shape is
// "YYYY-MM-DD HH:MM" with minutes restricted to 00 or 30; that literal form
// is what gets persisted and what timer job names embed.
type SlotKey struct {
	Day    string // "YYYY-MM-DD"
	Minute int    // minutes since midnight
}

// ParseSlotKey parses the canonical "YYYY-MM-DD HH:MM" form.
func ParseSlotKey(s string) (SlotKey, error) {
	t, err := time.Parse(keyLayout, s)
	if err != nil {
		return SlotKey{}, fmt.Errorf("bad slot key %q: %w", s, err)
	}
	k := SlotKey{Day: t.Format(dayLayout), Minute: t.Hour()*60 + t.Minute()}
	if !k.Valid() {
		return SlotKey{}, fmt.Errorf("bad slot key %q: not on a %d-minute boundary", s, SlotMinutes)
	}
	return k, nil
}

// Valid reports whether the key names a real date and a legal slot start.
func (k SlotKey) Valid() bool {
	if _, err := time.Parse(dayLayout, k.Day); err != nil {
		return false
	}
	return k.Minute >= 0 && k.Minute < 24*60 && k.Minute%SlotMinutes == 0
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s %s", k.Day, k.Clock())
}

// Clock renders the time-of-day part, "HH:MM".
func (k SlotKey) Clock() string {
	return fmt.Sprintf("%02d:%02d", k.Minute/60, k.Minute%60)
}

func (k SlotKey) Before(o SlotKey) bool {
	if k.Day != o.Day {
		return k.Day < o.Day
	}
	return k.Minute < o.Minute
}

// Add returns the key n slots later on the same day.
func (k SlotKey) Add(n int) SlotKey {
	return SlotKey{Day: k.Day, Minute: k.Minute + n*SlotMinutes}
}

// Range expands the key into count consecutive slots starting at it.
func (k SlotKey) Range(count int) []SlotKey {
	if count < 1 {
		count = 1
	}
	out := make([]SlotKey, count)
	for i := range out {
		out[i] = k.Add(i)
	}
	return out
}

// Time resolves the slot start as a wall-clock instant in loc. The zero
// time.Time signals an unparsable day.
func (k SlotKey) Time(loc *time.Location) time.Time {
	day, err := time.ParseInLocation(dayLayout, k.Day, loc)
	if err != nil {
		return time.Time{}
	}
	return day.Add(time.Duration(k.Minute) * time.Minute)
}

// ClockRange renders the occupied span, "10:30–12:00".
func (k SlotKey) ClockRange(count int) string {
	if count < 1 {
		count = 1
	}
	return k.Clock() + "–" + k.Add(count).Clock()
}

// FormatDay renders a date in the slot-key day shape.
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}

// ParseDay parses a "YYYY-MM-DD" date in loc, midnight-anchored.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dayLayout, s, loc)
}
