package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRejected  BookingStatus = "rejected"
)

// Active reports whether the booking still occupies calendar time.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

type Booking struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"user_id"`
	Name            string        `json:"name"`
	Phone           string        `json:"phone"`
	Lang            string        `json:"lang"`
	Slot            SlotKey       `json:"slot"`
	SlotCount       int           `json:"slot_count"`
	DurationMins    int           `json:"duration_mins"`
	Services        []string      `json:"services"`
	Status          BookingStatus `json:"status"`
	ApproverMsg     string        `json:"approver_msg,omitempty"`
	RescheduledFrom string        `json:"rescheduled_from,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
}

// Slots expands the booking into the consecutive slots it occupies.
func (b *Booking) Slots() []SlotKey {
	return b.Slot.Range(b.SlotCount)
}

// Overlaps reports whether two bookings occupy any common slot.
func (b *Booking) Overlaps(o *Booking) bool {
	if b.Slot.Day != o.Slot.Day {
		return false
	}
	bEnd := b.Slot.Minute + b.SlotCount*SlotMinutes
	oEnd := o.Slot.Minute + o.SlotCount*SlotMinutes
	return b.Slot.Minute < oEnd && o.Slot.Minute < bEnd
}

type Customer struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Lang   string `json:"lang"`
}

// Known reports whether the cached identity is complete enough to skip the
// name and phone steps of the booking dialog.
func (c *Customer) Known() bool {
	return c != nil && c.Name != "" && c.Phone != ""
}
