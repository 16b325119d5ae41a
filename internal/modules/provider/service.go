package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"barberbook/internal/domain"
	"barberbook/internal/modules/approval"
	"barberbook/internal/modules/booking"
	"barberbook/internal/pkg/jwt"
)

var (
	ErrBadCredentials = errors.New("bad credentials")
	ErrSlotOccupied   = errors.New("slot has an active booking")
)

// Service is the management surface for the shop owner: calendar views,
// booking decisions, working-hours config, and manual slot blocking.
type Service struct {
	store        *booking.Store
	approvals    *approval.Service
	jwtService   *jwt.Service
	approverID   int64
	passwordHash string
}

func NewService(store *booking.Store, approvals *approval.Service, jwtService *jwt.Service, approverID int64, passwordHash string) *Service {
	return &Service{
		store:        store,
		approvals:    approvals,
		jwtService:   jwtService,
		approverID:   approverID,
		passwordHash: passwordHash,
	}
}

func (s *Service) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return s.jwtService.GenerateToken(s.approverID, "provider")
}

// DaySchedule renders one date: its pending and confirmed bookings in slot
// order plus the manually blocked slots.
func (s *Service) DaySchedule(day string) (*DayView, error) {
	if _, err := domain.ParseDay(day, s.store.Location()); err != nil {
		return nil, fmt.Errorf("bad date %q", day)
	}

	s.store.Lock()
	defer s.store.Unlock()
	return s.dayViewLocked(day), nil
}

// WeekSchedule renders seven consecutive dates starting at from.
func (s *Service) WeekSchedule(from time.Time) []DayView {
	s.store.Lock()
	defer s.store.Unlock()

	out := make([]DayView, 0, 7)
	for i := 0; i < 7; i++ {
		out = append(out, *s.dayViewLocked(domain.FormatDay(from.AddDate(0, 0, i))))
	}
	return out
}

func (s *Service) dayViewLocked(day string) *DayView {
	view := &DayView{
		Date:     day,
		Workday:  s.workday(day),
		Bookings: []BookingView{},
		Blocked:  []string{},
	}
	for _, b := range append(s.store.ListConfirmedForDate(day), s.store.ListPendingForDate(day)...) {
		view.Bookings = append(view.Bookings, s.toView(b))
	}
	for _, k := range s.store.BlockedSlots() {
		if k.Day == day {
			view.Blocked = append(view.Blocked, k.Clock())
		}
	}
	return view
}

func (s *Service) workday(day string) bool {
	t, err := domain.ParseDay(day, s.store.Location())
	if err != nil {
		return false
	}
	return s.store.Settings().Current().Workday(t.Weekday())
}

func (s *Service) toView(b *domain.Booking) BookingView {
	return BookingView{
		ID:       b.ID,
		Time:     b.Slot.ClockRange(b.SlotCount),
		Name:     b.Name,
		Phone:    b.Phone,
		Services: append([]string(nil), b.Services...),
		Minutes:  b.DurationMins,
		Status:   string(b.Status),
	}
}

func (s *Service) Approve(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.approvals.Approve(ctx, id)
}

func (s *Service) Reject(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.approvals.Reject(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.approvals.CancelConfirmed(ctx, id)
}

func (s *Service) Config() ConfigResponse {
	cfg := s.store.Settings().Current()
	days := make([]int, 0, len(cfg.WorkDays))
	for _, d := range cfg.WorkDays {
		days = append(days, int(d))
	}
	return ConfigResponse{StartHour: cfg.StartHour, EndHour: cfg.EndHour, WorkDays: days}
}

func (s *Service) UpdateConfig(ctx context.Context, req ConfigRequest) error {
	cfg := domain.ScheduleConfig{StartHour: req.StartHour, EndHour: req.EndHour}
	for _, d := range req.WorkDays {
		cfg.WorkDays = append(cfg.WorkDays, time.Weekday(d))
	}
	return s.store.Settings().Update(ctx, cfg)
}

// BlockSlot takes a free slot off the calendar. A slot covered by an active
// booking cannot be blocked; decide the booking instead.
func (s *Service) BlockSlot(ctx context.Context, raw string) error {
	key, err := domain.ParseSlotKey(raw)
	if err != nil {
		return err
	}

	s.store.Lock()
	defer s.store.Unlock()
	if _, err := s.store.FindBySlot(key); err == nil {
		return ErrSlotOccupied
	}
	return s.store.BlockSlot(ctx, key)
}

func (s *Service) UnblockSlot(ctx context.Context, raw string) error {
	key, err := domain.ParseSlotKey(raw)
	if err != nil {
		return err
	}

	s.store.Lock()
	defer s.store.Unlock()
	return s.store.UnblockSlot(ctx, key)
}
