package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"barberbook/internal/domain"
	"barberbook/internal/logger"
	"barberbook/internal/modules/approval"
	"barberbook/internal/modules/booking"
	"barberbook/internal/modules/conversation"
	"barberbook/internal/modules/reschedule"
	"barberbook/internal/notification"
	"barberbook/internal/schedule"
)

// Event is one inbound interaction: a free-text message or a control press,
// already attributed to a user. Data, when set, wins over Text.
type Event struct {
	UserID int64
	Text   string
	Data   string
}

func (e Event) payload() string {
	if e.Data != "" {
		return e.Data
	}
	return strings.TrimSpace(e.Text)
}

// Dispatcher routes inbound events to the workflows. Routing precedence is
// fixed and explicit:
//
//  1. a customer mid-dialog: everything goes to the conversation machine;
//  2. approver controls (approve/reject), honored only from the approver;
//  3. customer global controls (cancel, reschedule steps);
//  4. commands that open a new dialog.
type Dispatcher struct {
	notifier    notification.Notifier
	dialogs     *conversation.Manager
	approvals   *approval.Service
	reschedules *reschedule.Service
	store       *booking.Store
	approverID  int64
	daysAhead   int
}

func NewDispatcher(notifier notification.Notifier, dialogs *conversation.Manager, approvals *approval.Service, reschedules *reschedule.Service, store *booking.Store, approverID int64, daysAhead int) *Dispatcher {
	return &Dispatcher{
		notifier:    notifier,
		dialogs:     dialogs,
		approvals:   approvals,
		reschedules: reschedules,
		store:       store,
		approverID:  approverID,
		daysAhead:   daysAhead,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	payload := ev.payload()
	if payload == "" {
		return
	}

	if d.dialogs.Active(ev.UserID) {
		d.dialogs.Handle(ctx, ev.UserID, payload)
		return
	}

	if ev.UserID == d.approverID && d.approverControl(ctx, payload) {
		return
	}
	if d.customerControl(ctx, ev.UserID, payload) {
		return
	}
	d.command(ctx, ev.UserID, payload)
}

func (d *Dispatcher) approverControl(ctx context.Context, payload string) bool {
	if raw, ok := strings.CutPrefix(payload, "approve_"); ok {
		d.decide(ctx, raw, d.approvals.Approve)
		return true
	}
	if raw, ok := strings.CutPrefix(payload, "reject_"); ok {
		d.decide(ctx, raw, d.approvals.Reject)
		return true
	}
	return false
}

func (d *Dispatcher) decide(ctx context.Context, raw string, act func(context.Context, int64) (*domain.Booking, error)) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	if _, err := act(ctx, id); err != nil {
		// Double press or the timeout beat the approver to it.
		logger.InfoLogger.Infof("approver decision on #%d not applied: %v", id, err)
		d.tell(ctx, d.approverID, "This request has already been decided.")
	}
}

func (d *Dispatcher) customerControl(ctx context.Context, userID int64, payload string) bool {
	switch {
	case payload == "user_cancel":
		if _, err := d.approvals.CancelByCustomer(ctx, userID); err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				d.tell(ctx, userID, "You have no active booking.")
			} else {
				logger.ErrorLogger.Errorf("cancel by %d: %v", userID, err)
			}
			return true
		}
		d.tell(ctx, userID, "Your booking is cancelled.")
		return true

	case payload == "resched":
		d.promptRescheduleDates(ctx, userID)
		return true
	}

	if day, ok := strings.CutPrefix(payload, "rsd_date_"); ok {
		d.promptRescheduleTimes(ctx, userID, day)
		return true
	}
	if raw, ok := strings.CutPrefix(payload, "rsd_time_"); ok {
		d.executeReschedule(ctx, userID, raw)
		return true
	}
	return false
}

func (d *Dispatcher) command(ctx context.Context, userID int64, payload string) {
	switch strings.ToLower(payload) {
	case "/start", "start", "book", "/book":
		d.dialogs.Start(ctx, userID)
	case "my", "/my":
		d.showOwnBooking(ctx, userID)
	default:
		d.tell(ctx, userID, "Send \"book\" to make an appointment or \"my\" to see your booking.")
	}
}

func (d *Dispatcher) showOwnBooking(ctx context.Context, userID int64) {
	d.store.Lock()
	b := d.store.FindActiveByCustomer(userID)
	d.store.Unlock()
	if b == nil {
		d.tell(ctx, userID, "You have no active booking.")
		return
	}

	status := "awaiting confirmation"
	controls := []notification.Control{{Label: "Cancel", Data: "user_cancel"}}
	if b.Status == domain.BookingConfirmed {
		status = "confirmed"
		controls = append(controls, notification.Control{Label: "Reschedule", Data: "resched"})
	}
	text := fmt.Sprintf("Your booking: %s %s (%s)", b.Slot.Day, b.Slot.ClockRange(b.SlotCount), status)
	if _, err := d.notifier.Render(ctx, userID, text, controls); err != nil {
		logger.ErrorLogger.Errorf("render booking for %d: %v", userID, err)
	}
}

func (d *Dispatcher) promptRescheduleDates(ctx context.Context, userID int64) {
	if _, err := d.reschedules.Eligible(userID); err != nil {
		d.tell(ctx, userID, "Only a confirmed booking can be moved.")
		return
	}

	d.store.Lock()
	cfg := d.store.Settings().Current()
	now := d.store.Now()
	d.store.Unlock()

	days := schedule.WorkingDates(cfg, now, d.daysAhead)
	controls := make([]notification.Control, 0, len(days))
	for _, t := range days {
		day := domain.FormatDay(t)
		controls = append(controls, notification.Control{Label: day, Data: "rsd_date_" + day})
	}
	if _, err := d.notifier.Render(ctx, userID, "Pick a new date:", controls); err != nil {
		logger.ErrorLogger.Errorf("reschedule dates for %d: %v", userID, err)
	}
}

func (d *Dispatcher) promptRescheduleTimes(ctx context.Context, userID int64, day string) {
	t, err := domain.ParseDay(day, d.store.Location())
	if err != nil {
		d.promptRescheduleDates(ctx, userID)
		return
	}
	starts, err := d.reschedules.Options(userID, t)
	if err != nil {
		d.tell(ctx, userID, "Only a confirmed booking can be moved.")
		return
	}
	if len(starts) == 0 {
		d.tell(ctx, userID, "No free times on that date, pick another.")
		d.promptRescheduleDates(ctx, userID)
		return
	}
	controls := make([]notification.Control, 0, len(starts))
	for _, k := range starts {
		controls = append(controls, notification.Control{Label: k.Clock(), Data: "rsd_time_" + k.String()})
	}
	if _, err := d.notifier.Render(ctx, userID, "Pick a new time:", controls); err != nil {
		logger.ErrorLogger.Errorf("reschedule times for %d: %v", userID, err)
	}
}

func (d *Dispatcher) executeReschedule(ctx context.Context, userID int64, raw string) {
	key, err := domain.ParseSlotKey(raw)
	if err != nil {
		return
	}
	_, err = d.reschedules.Execute(ctx, userID, key)
	switch {
	case errors.Is(err, reschedule.ErrNotConfirmed):
		d.tell(ctx, userID, "Only a confirmed booking can be moved.")
	case errors.Is(err, booking.ErrSlotUnavailable):
		// The old booking is already cancelled at this point; there is no
		// rollback. The customer starts over with a fresh dialog.
		d.tell(ctx, userID, "That time was just taken and your previous booking is released. Send \"book\" to pick a new time.")
	case err != nil:
		logger.ErrorLogger.Errorf("reschedule by %d: %v", userID, err)
	}
}

func (d *Dispatcher) tell(ctx context.Context, userID int64, text string) {
	if _, err := d.notifier.Render(ctx, userID, text, nil); err != nil && !errors.Is(err, ErrOffline) {
		logger.ErrorLogger.Errorf("notify %d: %v", userID, err)
	}
}
