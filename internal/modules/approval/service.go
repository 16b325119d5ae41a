package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"barberbook/internal/catalog"
	"barberbook/internal/domain"
	"barberbook/internal/logger"
	"barberbook/internal/modules/booking"
	"barberbook/internal/modules/timer"
	"barberbook/internal/notification"
)

const (
	// PendingTimeout is how long the approver has before a request
	// auto-rejects.
	PendingTimeout = 30 * time.Minute
	// ReminderLead is how long before the slot start both reminders fire.
	ReminderLead = 30 * time.Minute
)

// Service governs a booking's pending lifecycle: submission to the approver,
// explicit approve/reject, the auto-rejection timeout, and the reminders that
// follow a confirmation.
type Service struct {
	store      *booking.Store
	timers     *timer.Scheduler
	notifier   notification.Notifier
	catalog    *catalog.Catalog
	approverID int64
}

func NewService(store *booking.Store, timers *timer.Scheduler, notifier notification.Notifier, cat *catalog.Catalog, approverID int64) *Service {
	return &Service{
		store:      store,
		timers:     timers,
		notifier:   notifier,
		catalog:    cat,
		approverID: approverID,
	}
}

// RegisterHandlers binds this workflow's timer categories.
func (s *Service) RegisterHandlers() {
	s.timers.Register(domain.TimerPendingTimeout, s.handlePendingTimeout)
	s.timers.Register(domain.TimerCustomerReminder, s.handleCustomerReminder)
	s.timers.Register(domain.TimerApproverReminder, s.handleApproverReminder)
}

// Submit creates the pending booking, arms its approval timeout, and sends
// the approver prompt. Mutations run in one critical section; the prompt is
// rendered after it, so a slow front-end cannot stall the calendar.
func (s *Service) Submit(ctx context.Context, b *domain.Booking) error {
	s.store.Lock()
	err := s.store.Create(ctx, b)
	if err == nil {
		err = s.ArmPendingTimeout(ctx, b.ID, b.CreatedAt.Add(PendingTimeout))
	}
	s.store.Unlock()
	if err != nil {
		return err
	}
	return s.Announce(ctx, b)
}

// Announce renders the approver prompt for an already-created pending booking
// and records the returned message handle on it. Call without the guard held.
func (s *Service) Announce(ctx context.Context, b *domain.Booking) error {
	ref, err := s.notifier.Render(ctx, s.approverID, s.approverPrompt(b), approvalControls(b.ID))
	if err != nil {
		logger.ErrorLogger.Errorf("approver notify failed for booking #%d: %v", b.ID, err)
		return nil
	}

	s.store.Lock()
	defer s.store.Unlock()
	if err := s.store.SetApproverMsg(ctx, b.ID, string(ref)); err != nil && !errors.Is(err, booking.ErrBookingNotFound) {
		return err
	}
	return nil
}

// Approve confirms a pending booking, disarms its timeout, and arms both
// reminders, unless the reminder moment has already passed, in which case
// the reminder is skipped rather than scheduled in the past.
func (s *Service) Approve(ctx context.Context, id int64) (*domain.Booking, error) {
	s.store.Lock()
	b, err := s.store.Transition(ctx, id, domain.BookingConfirmed)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}
	if derr := s.timers.Disarm(ctx, domain.PendingTimeoutJob(id)); derr != nil {
		logger.ErrorLogger.Errorf("disarm timeout for #%d: %v", id, derr)
	}
	if rerr := s.ArmReminders(ctx, b); rerr != nil {
		logger.ErrorLogger.Errorf("arm reminders for #%d: %v", id, rerr)
	}
	s.store.Unlock()

	s.notifyCustomer(ctx, b, fmt.Sprintf(
		"Booking confirmed!\n%s\n%s\nServices: %s",
		b.Slot.Day, b.Slot.ClockRange(b.SlotCount), s.serviceList(b)))
	s.retireApproverPrompt(ctx, b, "Approved")
	return b, nil
}

// Reject declines a pending booking on explicit approver action.
func (s *Service) Reject(ctx context.Context, id int64) (*domain.Booking, error) {
	s.store.Lock()
	b, err := s.store.Transition(ctx, id, domain.BookingRejected)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}
	if derr := s.timers.Disarm(ctx, domain.PendingTimeoutJob(id)); derr != nil {
		logger.ErrorLogger.Errorf("disarm timeout for #%d: %v", id, derr)
	}
	s.store.Unlock()

	s.notifyCustomer(ctx, b, fmt.Sprintf(
		"The provider could not take this booking.\n%s %s\nPlease pick another time.",
		b.Slot.Day, b.Slot.ClockRange(b.SlotCount)))
	s.retireApproverPrompt(ctx, b, "Rejected")
	return b, nil
}

// CancelConfirmed cancels a confirmed booking on the approver's behalf,
// freeing the slot and disarming both reminders.
func (s *Service) CancelConfirmed(ctx context.Context, id int64) (*domain.Booking, error) {
	s.store.Lock()
	b, err := s.store.Transition(ctx, id, domain.BookingCancelled)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}
	s.DisarmReminders(ctx, b)
	s.store.Unlock()

	s.notifyCustomer(ctx, b, fmt.Sprintf(
		"Your booking was cancelled by the provider.\n%s %s\nSorry! You are welcome to book another time.",
		b.Slot.Day, b.Slot.ClockRange(b.SlotCount)))
	return b, nil
}

// CancelByCustomer cancels the customer's own active booking, whatever state
// it is in, and tells the approver.
func (s *Service) CancelByCustomer(ctx context.Context, userID int64) (*domain.Booking, error) {
	s.store.Lock()
	b := s.store.FindActiveByCustomer(userID)
	if b == nil {
		s.store.Unlock()
		return nil, booking.ErrBookingNotFound
	}
	wasPending := b.Status == domain.BookingPending
	b, err := s.store.Transition(ctx, b.ID, domain.BookingCancelled)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}
	if wasPending {
		if derr := s.timers.Disarm(ctx, domain.PendingTimeoutJob(b.ID)); derr != nil {
			logger.ErrorLogger.Errorf("disarm timeout for #%d: %v", b.ID, derr)
		}
	} else {
		s.DisarmReminders(ctx, b)
	}
	s.store.Unlock()

	if _, err := s.notifier.Render(ctx, s.approverID, fmt.Sprintf(
		"Customer cancelled a booking.\n%s\n%s %s",
		b.Name, b.Slot.Day, b.Slot.ClockRange(b.SlotCount)), nil); err != nil {
		logger.ErrorLogger.Errorf("approver cancel notify failed: %v", err)
	}
	return b, nil
}

// ArmPendingTimeout (guard held) arms the auto-rejection timer for a pending
// booking. Rearm semantics: an existing timer of the same name is replaced.
func (s *Service) ArmPendingTimeout(ctx context.Context, id int64, deadline time.Time) error {
	return s.timers.Rearm(ctx, domain.TimerRecord{
		Name:      domain.PendingTimeoutJob(id),
		Category:  domain.TimerPendingTimeout,
		FireAt:    deadline,
		BookingID: id,
	})
}

// ArmReminders (guard held) arms both pre-slot reminders for a confirmed
// booking, skipping any whose moment has already passed.
func (s *Service) ArmReminders(ctx context.Context, b *domain.Booking) error {
	fireAt := b.Slot.Time(s.store.Location()).Add(-ReminderLead)
	if !fireAt.After(s.store.Now()) {
		return nil
	}
	if err := s.timers.Rearm(ctx, domain.TimerRecord{
		Name:      domain.CustomerReminderJob(b.Slot),
		Category:  domain.TimerCustomerReminder,
		FireAt:    fireAt,
		BookingID: b.ID,
	}); err != nil {
		return err
	}
	return s.timers.Rearm(ctx, domain.TimerRecord{
		Name:      domain.ApproverReminderJob(b.Slot),
		Category:  domain.TimerApproverReminder,
		FireAt:    fireAt,
		BookingID: b.ID,
	})
}

// DisarmReminders (guard held) drops both reminders for a booking's slot.
func (s *Service) DisarmReminders(ctx context.Context, b *domain.Booking) {
	if err := s.timers.Disarm(ctx, domain.CustomerReminderJob(b.Slot)); err != nil {
		logger.ErrorLogger.Errorf("disarm reminder %s: %v", b.Slot, err)
	}
	if err := s.timers.Disarm(ctx, domain.ApproverReminderJob(b.Slot)); err != nil {
		logger.ErrorLogger.Errorf("disarm approver reminder %s: %v", b.Slot, err)
	}
}

// handlePendingTimeout auto-rejects a booking the approver never decided.
// The booking may already be gone or decided by the time a late fire lands;
// both are silent no-ops.
func (s *Service) handlePendingTimeout(ctx context.Context, rec domain.TimerRecord) {
	s.store.Lock()
	b, err := s.store.Get(rec.BookingID)
	if err != nil || b.Status != domain.BookingPending {
		s.store.Unlock()
		return
	}
	b, err = s.store.Transition(ctx, rec.BookingID, domain.BookingRejected)
	s.store.Unlock()
	if err != nil {
		logger.ErrorLogger.Errorf("timeout transition for #%d: %v", rec.BookingID, err)
		return
	}
	logger.InfoLogger.Infof("pending #%d auto-timed-out: %s", b.ID, b.Slot)

	s.notifyCustomer(ctx, b, fmt.Sprintf(
		"Your booking request was not confirmed in time.\n%s %s\nPlease try again.",
		b.Slot.Day, b.Slot.ClockRange(b.SlotCount)))
	// Strike the stale approve/reject controls off the original prompt.
	s.retireApproverPrompt(ctx, b, "Expired (no response in 30 min)")
}

func (s *Service) handleCustomerReminder(ctx context.Context, rec domain.TimerRecord) {
	s.store.Lock()
	b, err := s.store.Get(rec.BookingID)
	s.store.Unlock()
	if err != nil || b.Status != domain.BookingConfirmed {
		return
	}
	s.notifyCustomer(ctx, b, fmt.Sprintf(
		"Reminder: your appointment starts in 30 minutes.\n%s",
		b.Slot.ClockRange(b.SlotCount)))
}

func (s *Service) handleApproverReminder(ctx context.Context, rec domain.TimerRecord) {
	s.store.Lock()
	b, err := s.store.Get(rec.BookingID)
	s.store.Unlock()
	if err != nil || b.Status != domain.BookingConfirmed {
		return
	}
	if _, err := s.notifier.Render(ctx, s.approverID, fmt.Sprintf(
		"In 30 min: %s\n%s\nServices: %s",
		b.Name, b.Slot.ClockRange(b.SlotCount), s.serviceList(b)), nil); err != nil {
		logger.ErrorLogger.Errorf("approver reminder failed: %v", err)
	}
}

func (s *Service) notifyCustomer(ctx context.Context, b *domain.Booking, text string) {
	if _, err := s.notifier.Render(ctx, b.UserID, text, nil); err != nil {
		logger.ErrorLogger.Errorf("customer notify failed for #%d: %v", b.ID, err)
	}
}

// retireApproverPrompt edits the stored approval prompt so its action
// controls disappear. The message may already be deleted on the front-end;
// that is logged and swallowed.
func (s *Service) retireApproverPrompt(ctx context.Context, b *domain.Booking, verdict string) {
	if b.ApproverMsg == "" {
		return
	}
	text := s.approverPrompt(b) + "\n\n" + verdict
	if err := s.notifier.Edit(ctx, notification.MessageRef(b.ApproverMsg), text, nil); err != nil {
		logger.ErrorLogger.Errorf("approver prompt edit failed for #%d: %v", b.ID, err)
	}
}

func (s *Service) approverPrompt(b *domain.Booking) string {
	lines := []string{
		"New booking request",
		b.Slot.Day,
		b.Slot.ClockRange(b.SlotCount),
		b.Name,
		b.Phone,
		"Services: " + s.serviceList(b),
		fmt.Sprintf("~%d min", b.DurationMins),
	}
	if b.RescheduledFrom != "" {
		lines = append(lines, "Rescheduled from "+b.RescheduledFrom)
	}
	if price := s.catalog.TotalPrice(b.Services); price > 0 {
		lines = append(lines, fmt.Sprintf("Price: %d", price))
	}
	return strings.Join(lines, "\n")
}

func (s *Service) serviceList(b *domain.Booking) string {
	labels := make([]string, 0, len(b.Services))
	for _, id := range b.Services {
		labels = append(labels, s.catalog.Label(id, "ru"))
	}
	return strings.Join(labels, ", ")
}

func approvalControls(id int64) []notification.Control {
	return []notification.Control{
		{Label: "Approve", Data: fmt.Sprintf("approve_%d", id)},
		{Label: "Reject", Data: fmt.Sprintf("reject_%d", id)},
	}
}
