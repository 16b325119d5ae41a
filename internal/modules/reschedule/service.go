package reschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/logger"
	"barberbook/internal/modules/approval"
	"barberbook/internal/modules/booking"
	"barberbook/internal/notification"
)

// ErrNotConfirmed: the customer has no confirmed booking to move. Pending
// requests are not reschedulable; cancel and rebook instead.
var ErrNotConfirmed = errors.New("no confirmed booking to reschedule")

// Service moves a confirmed booking to a new slot. The move is cancel-plus-
// recreate under one critical section: the old booking is cancelled, a fresh
// pending booking is created for the new slot, and approval starts over.
type Service struct {
	store     *booking.Store
	approvals *approval.Service
	notifier  notification.Notifier
}

func NewService(store *booking.Store, approvals *approval.Service, notifier notification.Notifier) *Service {
	return &Service{store: store, approvals: approvals, notifier: notifier}
}

// Eligible returns the customer's confirmed booking, or ErrNotConfirmed.
func (s *Service) Eligible(userID int64) (*domain.Booking, error) {
	s.store.Lock()
	defer s.store.Unlock()
	b := s.store.FindActiveByCustomer(userID)
	if b == nil || b.Status != domain.BookingConfirmed {
		return nil, ErrNotConfirmed
	}
	return b, nil
}

// Options lists the start times on day that can take the booking's span. The
// booking's own slots are excluded from occupancy, so staying close to the
// current time is offered too.
func (s *Service) Options(userID int64, day time.Time) ([]domain.SlotKey, error) {
	s.store.Lock()
	defer s.store.Unlock()
	b := s.store.FindActiveByCustomer(userID)
	if b == nil || b.Status != domain.BookingConfirmed {
		return nil, ErrNotConfirmed
	}
	return s.store.FitStarts(day, b.SlotCount, b.ID), nil
}

// Execute performs the move. On success the new pending booking is returned
// and the approver is re-prompted from scratch. If the new slot was raced
// away between selection and execution, ErrSlotUnavailable is returned and
// the old booking stays cancelled; the freed slot is not restored.
func (s *Service) Execute(ctx context.Context, userID int64, newSlot domain.SlotKey) (*domain.Booking, error) {
	s.store.Lock()
	old := s.store.FindActiveByCustomer(userID)
	if old == nil || old.Status != domain.BookingConfirmed {
		s.store.Unlock()
		return nil, ErrNotConfirmed
	}

	s.approvals.DisarmReminders(ctx, old)
	cancelled, err := s.store.Transition(ctx, old.ID, domain.BookingCancelled)
	if err != nil {
		s.store.Unlock()
		return nil, err
	}

	next := &domain.Booking{
		UserID:          old.UserID,
		Name:            old.Name,
		Phone:           old.Phone,
		Lang:            old.Lang,
		Slot:            newSlot,
		SlotCount:       old.SlotCount,
		DurationMins:    old.DurationMins,
		Services:        append([]string(nil), old.Services...),
		RescheduledFrom: old.Slot.String(),
	}
	if err := s.store.Create(ctx, next); err != nil {
		s.store.Unlock()
		logger.ErrorLogger.Errorf("reschedule for %d: old #%d cancelled, new slot %s lost: %v",
			userID, cancelled.ID, newSlot, err)
		return nil, err
	}
	if err := s.approvals.ArmPendingTimeout(ctx, next.ID, next.CreatedAt.Add(approval.PendingTimeout)); err != nil {
		logger.ErrorLogger.Errorf("arm timeout for rescheduled #%d: %v", next.ID, err)
	}
	s.store.Unlock()

	logger.InfoLogger.Infof("rescheduled: #%d %s -> #%d %s (user %d)",
		cancelled.ID, cancelled.Slot, next.ID, next.Slot, userID)
	if err := s.approvals.Announce(ctx, next); err != nil {
		logger.ErrorLogger.Errorf("announce rescheduled #%d: %v", next.ID, err)
	}
	if _, err := s.notifier.Render(ctx, userID, fmt.Sprintf(
		"Moved to %s %s, awaiting confirmation.",
		next.Slot.Day, next.Slot.ClockRange(next.SlotCount)), nil); err != nil {
		logger.ErrorLogger.Errorf("reschedule notify for %d: %v", userID, err)
	}
	return next, nil
}
