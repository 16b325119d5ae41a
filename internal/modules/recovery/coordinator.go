package recovery

import (
	"context"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/logger"
	"barberbook/internal/modules/approval"
	"barberbook/internal/modules/booking"
	"barberbook/internal/modules/timer"
)

// MinTimeoutDelay is how soon an overdue pending timeout fires after startup.
// Overdue means the 30-minute deadline passed while the process was down;
// firing near-immediately beats dropping it, but a few seconds of grace lets
// startup finish first.
const MinTimeoutDelay = 5 * time.Second

// Coordinator rebuilds in-memory state after a restart: the store projection
// from durable rows, then the live timers from persisted records. It is
// idempotent: rearm semantics mean a second run arms the same set.
type Coordinator struct {
	store     *booking.Store
	timers    *timer.Scheduler
	approvals *approval.Service
}

func NewCoordinator(store *booking.Store, timers *timer.Scheduler, approvals *approval.Service) *Coordinator {
	return &Coordinator{store: store, timers: timers, approvals: approvals}
}

// Run restores the projection and re-arms timers. A failure here is fatal to
// process start; the engine never runs on a partial projection.
func (c *Coordinator) Run(ctx context.Context) error {
	c.store.Lock()
	defer c.store.Unlock()

	if err := c.store.Restore(ctx); err != nil {
		return err
	}
	records, err := c.timers.Records(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]domain.TimerRecord, len(records))
	for _, rec := range records {
		byName[rec.Name] = rec
	}

	now := c.store.Now()
	rearmed := make(map[string]struct{})

	for _, b := range c.store.ListActive() {
		switch b.Status {
		case domain.BookingPending:
			name := domain.PendingTimeoutJob(b.ID)
			deadline := b.CreatedAt.Add(approval.PendingTimeout)
			if rec, ok := byName[name]; ok {
				deadline = rec.FireAt
			}
			if !deadline.After(now) {
				// Overdue while we were down; fire almost immediately.
				deadline = now.Add(MinTimeoutDelay)
			}
			if err := c.approvals.ArmPendingTimeout(ctx, b.ID, deadline); err != nil {
				return err
			}
			rearmed[name] = struct{}{}

		case domain.BookingConfirmed:
			// ArmReminders skips reminders whose moment already passed;
			// those are never fired retroactively.
			if err := c.approvals.ArmReminders(ctx, b); err != nil {
				return err
			}
			for _, name := range []string{
				domain.CustomerReminderJob(b.Slot),
				domain.ApproverReminderJob(b.Slot),
			} {
				if c.timers.Live(name) {
					rearmed[name] = struct{}{}
				}
			}
		}
	}

	// Sweep records that no longer map to a live timer: bookings decided
	// while we were down, or reminders whose moment has passed.
	for name := range byName {
		if _, ok := rearmed[name]; ok {
			continue
		}
		if err := c.timers.Disarm(ctx, name); err != nil {
			logger.ErrorLogger.Errorf("recovery: drop stale record %s: %v", name, err)
		}
	}

	logger.InfoLogger.Infof("recovery complete: %d timers live", len(c.timers.LiveNames()))
	return nil
}
