package timer

import (
	"context"
	"sort"
	"sync"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/logger"
)

// Handler runs when a timer of its category fires. It is invoked outside the
// engine guard and must re-acquire it, then re-check the referenced booking's
// current status before acting: a stale fire (booking gone or already
// decided) is a silent no-op, never an error. That re-check is what makes a
// disarm that races an in-flight fire safe.
type Handler func(ctx context.Context, rec domain.TimerRecord)

// TimerRepository persists scheduling metadata so timers survive restarts.
type TimerRepository interface {
	Save(ctx context.Context, rec domain.TimerRecord) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.TimerRecord, error)
}

type armed struct {
	rec   domain.TimerRecord
	timer *time.Timer
}

// Scheduler manages named, cancellable delayed jobs. It shares the booking
// store's lock (guard): Arm/Disarm/Rearm must be called with the guard held,
// and the fire path takes the guard itself for its bookkeeping.
type Scheduler struct {
	repo     TimerRepository
	guard    sync.Locker
	now      func() time.Time
	handlers map[domain.TimerCategory]Handler
	pending  map[string]*armed
}

func NewScheduler(repo TimerRepository, guard sync.Locker) *Scheduler {
	return &Scheduler{
		repo:     repo,
		guard:    guard,
		now:      time.Now,
		handlers: make(map[domain.TimerCategory]Handler),
		pending:  make(map[string]*armed),
	}
}

func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Register binds the handler for a category. Call during assembly, before
// any timer can fire.
func (s *Scheduler) Register(cat domain.TimerCategory, h Handler) {
	s.handlers[cat] = h
}

// Arm persists the record, then schedules the in-process delay, in that
// order, so recovery never loses a timer that was logically armed. Arming a
// name that is already live replaces it (idempotent replace, not duplicate).
func (s *Scheduler) Arm(ctx context.Context, rec domain.TimerRecord) error {
	if err := s.repo.Save(ctx, rec); err != nil {
		return err
	}
	if old, ok := s.pending[rec.Name]; ok {
		old.timer.Stop()
	}
	delay := rec.FireAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	name := rec.Name
	s.pending[name] = &armed{
		rec:   rec,
		timer: time.AfterFunc(delay, func() { s.fire(name) }),
	}
	logger.InfoLogger.Infof("timer armed: %s at %s", name, rec.FireAt.Format(time.RFC3339))
	return nil
}

// Disarm is best-effort cancel-before-fire: it stops the in-process delay if
// one is live and removes the durable record. Disarming an unknown name is a
// no-op; a fire already in flight is neutralized by the handler's status
// re-check instead.
func (s *Scheduler) Disarm(ctx context.Context, name string) error {
	if p, ok := s.pending[name]; ok {
		p.timer.Stop()
		delete(s.pending, name)
	}
	return s.repo.Delete(ctx, name)
}

// Rearm is disarm-then-arm under one guard hold.
func (s *Scheduler) Rearm(ctx context.Context, rec domain.TimerRecord) error {
	if err := s.Disarm(ctx, rec.Name); err != nil {
		return err
	}
	return s.Arm(ctx, rec)
}

func (s *Scheduler) fire(name string) {
	ctx := context.Background()

	s.guard.Lock()
	p, ok := s.pending[name]
	if !ok {
		// Disarmed between the timer firing and us taking the guard.
		s.guard.Unlock()
		return
	}
	delete(s.pending, name)
	if err := s.repo.Delete(ctx, name); err != nil {
		logger.ErrorLogger.Errorf("timer %s: record delete failed: %v", name, err)
	}
	h := s.handlers[p.rec.Category]
	s.guard.Unlock()

	if h == nil {
		logger.ErrorLogger.Errorf("timer %s: no handler for category %s", name, p.rec.Category)
		return
	}
	h(ctx, p.rec)
}

// Live reports whether a timer with the name is currently armed in-process.
func (s *Scheduler) Live(name string) bool {
	_, ok := s.pending[name]
	return ok
}

// LiveNames snapshots the armed timer names, sorted.
func (s *Scheduler) LiveNames() []string {
	out := make([]string, 0, len(s.pending))
	for name := range s.pending {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Records lists the persisted timer metadata, for recovery.
func (s *Scheduler) Records(ctx context.Context) ([]domain.TimerRecord, error) {
	return s.repo.List(ctx)
}

// Shutdown stops every in-process delay without touching durable records,
// so a restart re-arms them.
func (s *Scheduler) Shutdown() {
	for name, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, name)
	}
}
