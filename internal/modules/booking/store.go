package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/logger"
	"barberbook/internal/repository"
	"barberbook/internal/schedule"
)

// Store owns every booking record plus the customer identity cache and the
// provider-blocked slots. It is also the engine's single mutual-exclusion
// domain: workflows and timer callbacks hold the store lock across each
// mutation, so two mutations never interleave. Durable writes happen inside
// the critical section; the in-memory projection is updated only after the
// write succeeds.
//
// All methods below assume the caller holds the lock (workflow packages and
// the timer scheduler all follow that discipline).
type Store struct {
	mu sync.Mutex

	repo     BookingRepository
	custRepo CustomerRepository
	blkRepo  BlockedSlotRepository
	settings *schedule.Settings
	loc      *time.Location
	now      func() time.Time

	active    map[int64]*domain.Booking // pending + confirmed only
	customers map[int64]*domain.Customer
	blocked   map[domain.SlotKey]struct{}
}

func NewStore(repo BookingRepository, custRepo CustomerRepository, blkRepo BlockedSlotRepository, settings *schedule.Settings, loc *time.Location) *Store {
	return &Store{
		repo:      repo,
		custRepo:  custRepo,
		blkRepo:   blkRepo,
		settings:  settings,
		loc:       loc,
		now:       time.Now,
		active:    make(map[int64]*domain.Booking),
		customers: make(map[int64]*domain.Customer),
		blocked:   make(map[domain.SlotKey]struct{}),
	}
}

func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// Locker exposes the store as the shared critical section for the timer
// scheduler.
func (s *Store) Locker() sync.Locker { return s }

func (s *Store) Location() *time.Location      { return s.loc }
func (s *Store) Settings() *schedule.Settings  { return s.settings }
func (s *Store) Now() time.Time                { return s.now().In(s.loc) }
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Restore loads the projection from durable state. Failures here are fatal
// to process start; the engine never runs with a partial projection.
func (s *Store) Restore(ctx context.Context) error {
	bookings, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	customers, err := s.custRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	blocked, err := s.blkRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.active = make(map[int64]*domain.Booking, len(bookings))
	for _, b := range bookings {
		s.active[b.ID] = b
	}
	s.customers = make(map[int64]*domain.Customer, len(customers))
	for i := range customers {
		c := customers[i]
		s.customers[c.UserID] = &c
	}
	s.blocked = make(map[domain.SlotKey]struct{}, len(blocked))
	for _, k := range blocked {
		s.blocked[k] = struct{}{}
	}
	logger.InfoLogger.Infof("store restored: %d active bookings, %d customers, %d blocked slots",
		len(s.active), len(s.customers), len(s.blocked))
	return nil
}

// Occupancy expands every active booking and blocked slot into the occupied
// slot set. excludeID, when non-zero, leaves that booking's own range out;
// needed by reschedule so a booking does not block itself.
func (s *Store) Occupancy(excludeID int64) schedule.Occupancy {
	occ := make(schedule.Occupancy)
	for k := range s.blocked {
		occ.Add(k)
	}
	for _, b := range s.active {
		if b.ID == excludeID {
			continue
		}
		occ.Add(b.Slots()...)
	}
	return occ
}

// CanFit re-checks a candidate range against the current occupancy and the
// config in force.
func (s *Store) CanFit(start domain.SlotKey, count int, excludeID int64) bool {
	return schedule.CanFit(s.settings.Current(), start, count, s.Occupancy(excludeID), s.loc)
}

// FitStarts lists the start times on day where count consecutive slots fit.
func (s *Store) FitStarts(day time.Time, count int, excludeID int64) []domain.SlotKey {
	return schedule.FitStarts(s.settings.Current(), day, count, s.Occupancy(excludeID), s.now())
}

// Create inserts a new Pending booking. Availability is re-validated here, at
// the moment of insertion, which closes the race where two customers converge
// on the same slot: the loser gets ErrSlotUnavailable.
func (s *Store) Create(ctx context.Context, b *domain.Booking) error {
	if !b.Slot.Valid() {
		return ErrSlotUnavailable
	}
	if existing := s.FindActiveByCustomer(b.UserID); existing != nil {
		return ErrAlreadyBooked
	}
	if !s.CanFit(b.Slot, b.SlotCount, 0) {
		return ErrSlotUnavailable
	}

	b.Status = domain.BookingPending
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	if err := s.repo.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlot) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.active[b.ID] = b
	logger.InfoLogger.Infof("pending #%d: %s for user %d (%d slots)", b.ID, b.Slot, b.UserID, b.SlotCount)
	return nil
}

// legal transitions; everything else, including a transition to the current
// status, is ErrInvalidTransition.
func transitionAllowed(from, to domain.BookingStatus) bool {
	switch from {
	case domain.BookingPending:
		return to == domain.BookingConfirmed || to == domain.BookingRejected || to == domain.BookingCancelled
	case domain.BookingConfirmed:
		return to == domain.BookingCancelled
	default:
		return false
	}
}

// Transition moves a booking to a new status, write-through. Decided
// bookings leave the active projection; the returned copy carries the final
// state.
func (s *Store) Transition(ctx context.Context, id int64, to domain.BookingStatus) (*domain.Booking, error) {
	b, ok := s.active[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if !transitionAllowed(b.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}

	updated := *b
	updated.Status = to
	now := s.now()
	updated.DecidedAt = &now
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if updated.Status.Active() {
		s.active[id] = &updated
	} else {
		delete(s.active, id)
	}
	logger.InfoLogger.Infof("booking #%d: %s -> %s (%s)", id, b.Status, to, b.Slot)
	return &updated, nil
}

// SetApproverMsg records the front-end handle of the rendered approval
// prompt so the timeout path can later edit it.
func (s *Store) SetApproverMsg(ctx context.Context, id int64, ref string) error {
	b, ok := s.active[id]
	if !ok {
		return ErrBookingNotFound
	}
	updated := *b
	updated.ApproverMsg = ref
	if err := s.repo.Update(ctx, &updated); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.active[id] = &updated
	return nil
}

func (s *Store) Get(id int64) (*domain.Booking, error) {
	b, ok := s.active[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

// FindBySlot returns the active booking whose occupied range covers the slot.
func (s *Store) FindBySlot(key domain.SlotKey) (*domain.Booking, error) {
	for _, b := range s.active {
		for _, k := range b.Slots() {
			if k == key {
				cp := *b
				return &cp, nil
			}
		}
	}
	return nil, ErrBookingNotFound
}

func (s *Store) listForDate(day string, status domain.BookingStatus) []*domain.Booking {
	var out []*domain.Booking
	for _, b := range s.active {
		if b.Slot.Day == day && b.Status == status {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Before(out[j].Slot) })
	return out
}

func (s *Store) ListConfirmedForDate(day string) []*domain.Booking {
	return s.listForDate(day, domain.BookingConfirmed)
}

func (s *Store) ListPendingForDate(day string) []*domain.Booking {
	return s.listForDate(day, domain.BookingPending)
}

func (s *Store) ListPendingForCustomer(userID int64) []*domain.Booking {
	var out []*domain.Booking
	for _, b := range s.active {
		if b.UserID == userID && b.Status == domain.BookingPending {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Before(out[j].Slot) })
	return out
}

// FindActiveByCustomer returns the customer's pending or confirmed booking,
// or nil. At most one exists.
func (s *Store) FindActiveByCustomer(userID int64) *domain.Booking {
	for _, b := range s.active {
		if b.UserID == userID {
			cp := *b
			return &cp
		}
	}
	return nil
}

// ListActive snapshots the whole active projection, ordered by slot.
func (s *Store) ListActive() []*domain.Booking {
	out := make([]*domain.Booking, 0, len(s.active))
	for _, b := range s.active {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Before(out[j].Slot) })
	return out
}

// Customer returns the cached identity for a user, or nil.
func (s *Store) Customer(userID int64) *domain.Customer {
	if c, ok := s.customers[userID]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// SaveCustomer write-through updates the identity cache. Refreshed whenever
// the customer supplies new values.
func (s *Store) SaveCustomer(ctx context.Context, c domain.Customer) error {
	if c.Lang == "" {
		c.Lang = "ru"
	}
	if err := s.custRepo.Upsert(ctx, c); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.customers[c.UserID] = &c
	return nil
}

func (s *Store) BlockSlot(ctx context.Context, key domain.SlotKey) error {
	if !key.Valid() {
		return ErrSlotUnavailable
	}
	if err := s.blkRepo.Add(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.blocked[key] = struct{}{}
	logger.InfoLogger.Infof("slot blocked: %s", key)
	return nil
}

func (s *Store) UnblockSlot(ctx context.Context, key domain.SlotKey) error {
	if err := s.blkRepo.Remove(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	delete(s.blocked, key)
	logger.InfoLogger.Infof("slot unblocked: %s", key)
	return nil
}

func (s *Store) BlockedSlots() []domain.SlotKey {
	out := make([]domain.SlotKey, 0, len(s.blocked))
	for k := range s.blocked {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
