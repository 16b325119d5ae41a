package domain

import (
	"fmt"
	"time"
)

type TimerCategory string

const (
	TimerCustomerReminder TimerCategory = "customer_reminder"
	TimerApproverReminder TimerCategory = "approver_reminder"
	TimerPendingTimeout   TimerCategory = "pending_timeout"
)

// TimerRecord is the durable description of one delayed job. The engine holds
// only the booking id, never the booking itself: handlers resolve it against
// current store state when the timer fires.
type TimerRecord struct {
	Name      string        `json:"name"`
	Category  TimerCategory `json:"category"`
	FireAt    time.Time     `json:"fire_at"`
	BookingID int64         `json:"booking_id"`
}

// Job names are derived from the booking, so at most one live timer of a
// category can exist per booking: re-arming the same name replaces the timer.

func CustomerReminderJob(slot SlotKey) string {
	return "reminder_" + slot.String()
}

func ApproverReminderJob(slot SlotKey) string {
	return "approver_reminder_" + slot.String()
}

func PendingTimeoutJob(bookingID int64) string {
	return fmt.Sprintf("pending_timeout_%d", bookingID)
}
