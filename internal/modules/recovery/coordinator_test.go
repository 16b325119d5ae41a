package recovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"barberbook/internal/catalog"
	"barberbook/internal/domain"
	"barberbook/internal/modules/approval"
	"barberbook/internal/modules/booking"
	"barberbook/internal/modules/timer"
	"barberbook/internal/notification"
	"barberbook/internal/schedule"
)

const approverID int64 = 99

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) ListActive(ctx context.Context) ([]*domain.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Booking), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Upsert(ctx context.Context, c domain.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCustomerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Customer), args.Error(1)
}

type MockBlockedSlotRepository struct {
	mock.Mock
}

func (m *MockBlockedSlotRepository) Add(ctx context.Context, key domain.SlotKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlockedSlotRepository) Remove(ctx context.Context, key domain.SlotKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlockedSlotRepository) List(ctx context.Context) ([]domain.SlotKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SlotKey), args.Error(1)
}

// recordingTimerRepo keeps the durable records in memory, so a second
// recovery run sees what the first one armed.
type recordingTimerRepo struct {
	mu      sync.Mutex
	records map[string]domain.TimerRecord
}

func newRecordingTimerRepo(seed ...domain.TimerRecord) *recordingTimerRepo {
	r := &recordingTimerRepo{records: make(map[string]domain.TimerRecord)}
	for _, rec := range seed {
		r.records[rec.Name] = rec
	}
	return r
}

func (r *recordingTimerRepo) Save(ctx context.Context, rec domain.TimerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Name] = rec
	return nil
}

func (r *recordingTimerRepo) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, name)
	return nil
}

func (r *recordingTimerRepo) List(ctx context.Context) ([]domain.TimerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TimerRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

func (r *recordingTimerRepo) get(name string) (domain.TimerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	return rec, ok
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Render(ctx context.Context, userID int64, text string, controls []notification.Control) (notification.MessageRef, error) {
	args := m.Called(ctx, userID, text, controls)
	return args.Get(0).(notification.MessageRef), args.Error(1)
}

func (m *MockNotifier) Edit(ctx context.Context, ref notification.MessageRef, text string, controls []notification.Control) error {
	args := m.Called(ctx, ref, text, controls)
	return args.Error(0)
}

func newRig(active []*domain.Booking, timerRepo *recordingTimerRepo) (*Coordinator, *booking.Store, *timer.Scheduler) {
	repo := new(MockBookingRepository)
	repo.On("ListActive", mock.Anything).Return(active, nil)

	custRepo := new(MockCustomerRepository)
	custRepo.On("List", mock.Anything).Return([]domain.Customer{}, nil)
	blkRepo := new(MockBlockedSlotRepository)
	blkRepo.On("List", mock.Anything).Return([]domain.SlotKey{}, nil)

	notifier := new(MockNotifier)
	notifier.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(notification.MessageRef("msg-1"), nil)
	notifier.On("Edit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	cat := catalog.New(map[string]catalog.Service{"haircut": {Minutes: 30}})

	store := booking.NewStore(repo, custRepo, blkRepo, schedule.NewSettings(nil), time.UTC)
	timers := timer.NewScheduler(timerRepo, store.Locker())
	approvals := approval.NewService(store, timers, notifier, cat, approverID)
	approvals.RegisterHandlers()

	return NewCoordinator(store, timers, approvals), store, timers
}

func TestCoordinator_RearmsPendingAndConfirmed(t *testing.T) {
	pendingSlot := domain.SlotKey{Day: "2030-05-01", Minute: 10 * 60}
	confirmedSlot := domain.SlotKey{Day: "2030-05-01", Minute: 14 * 60}
	active := []*domain.Booking{
		{ID: 1, UserID: 7, Slot: pendingSlot, SlotCount: 1, Status: domain.BookingPending,
			CreatedAt: time.Now().Add(-10 * time.Minute)},
		{ID: 2, UserID: 8, Slot: confirmedSlot, SlotCount: 1, Status: domain.BookingConfirmed},
	}
	timerRepo := newRecordingTimerRepo(domain.TimerRecord{
		Name:      domain.PendingTimeoutJob(1),
		Category:  domain.TimerPendingTimeout,
		FireAt:    time.Now().Add(20 * time.Minute),
		BookingID: 1,
	})

	coord, store, timers := newRig(active, timerRepo)
	defer timers.Shutdown()

	assert.NoError(t, coord.Run(context.Background()))

	store.Lock()
	assert.True(t, timers.Live(domain.PendingTimeoutJob(1)))
	assert.True(t, timers.Live(domain.CustomerReminderJob(confirmedSlot)))
	assert.True(t, timers.Live(domain.ApproverReminderJob(confirmedSlot)))
	assert.Len(t, store.ListActive(), 2)
	store.Unlock()

	// The persisted deadline survives; no re-derivation from CreatedAt.
	rec, ok := timerRepo.get(domain.PendingTimeoutJob(1))
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(20*time.Minute), rec.FireAt, time.Minute)
}

// An overdue timeout is floored to a short delay instead of being dropped.
func TestCoordinator_OverdueTimeoutFloored(t *testing.T) {
	active := []*domain.Booking{
		{ID: 1, UserID: 7, Slot: domain.SlotKey{Day: "2030-05-01", Minute: 10 * 60},
			SlotCount: 1, Status: domain.BookingPending,
			CreatedAt: time.Now().Add(-2 * time.Hour)},
	}
	timerRepo := newRecordingTimerRepo()

	coord, _, timers := newRig(active, timerRepo)
	defer timers.Shutdown()

	before := time.Now()
	assert.NoError(t, coord.Run(context.Background()))

	rec, ok := timerRepo.get(domain.PendingTimeoutJob(1))
	assert.True(t, ok)
	assert.True(t, rec.FireAt.After(before), "deadline must not be in the past")
	assert.WithinDuration(t, before.Add(MinTimeoutDelay), rec.FireAt, 2*time.Second)
}

// Reminders whose moment already passed are not fired retroactively.
func TestCoordinator_PastReminderSkipped(t *testing.T) {
	past := domain.SlotKey{Day: "2020-01-06", Minute: 10 * 60} // long gone Monday
	active := []*domain.Booking{
		{ID: 2, UserID: 8, Slot: past, SlotCount: 1, Status: domain.BookingConfirmed},
	}
	timerRepo := newRecordingTimerRepo(domain.TimerRecord{
		Name:      domain.CustomerReminderJob(past),
		Category:  domain.TimerCustomerReminder,
		FireAt:    past.Time(time.UTC).Add(-30 * time.Minute),
		BookingID: 2,
	})

	coord, _, timers := newRig(active, timerRepo)
	defer timers.Shutdown()

	assert.NoError(t, coord.Run(context.Background()))

	assert.False(t, timers.Live(domain.CustomerReminderJob(past)))
	_, ok := timerRepo.get(domain.CustomerReminderJob(past))
	assert.False(t, ok, "stale reminder record must be swept")
}

func TestCoordinator_SweepsRecordsForMissingBookings(t *testing.T) {
	timerRepo := newRecordingTimerRepo(domain.TimerRecord{
		Name:      domain.PendingTimeoutJob(42),
		Category:  domain.TimerPendingTimeout,
		FireAt:    time.Now().Add(10 * time.Minute),
		BookingID: 42, // decided while the process was down
	})

	coord, _, timers := newRig([]*domain.Booking{}, timerRepo)
	defer timers.Shutdown()

	assert.NoError(t, coord.Run(context.Background()))

	assert.False(t, timers.Live(domain.PendingTimeoutJob(42)))
	_, ok := timerRepo.get(domain.PendingTimeoutJob(42))
	assert.False(t, ok)
}

// Running recovery twice yields the same live timer set as running it once.
func TestCoordinator_Idempotent(t *testing.T) {
	active := []*domain.Booking{
		{ID: 1, UserID: 7, Slot: domain.SlotKey{Day: "2030-05-01", Minute: 10 * 60},
			SlotCount: 1, Status: domain.BookingPending,
			CreatedAt: time.Now().Add(-10 * time.Minute)},
		{ID: 2, UserID: 8, Slot: domain.SlotKey{Day: "2030-05-01", Minute: 14 * 60},
			SlotCount: 1, Status: domain.BookingConfirmed},
	}
	timerRepo := newRecordingTimerRepo()

	coord, store, timers := newRig(active, timerRepo)
	defer timers.Shutdown()

	assert.NoError(t, coord.Run(context.Background()))
	store.Lock()
	first := timers.LiveNames()
	store.Unlock()

	assert.NoError(t, coord.Run(context.Background()))
	store.Lock()
	second := timers.LiveNames()
	store.Unlock()

	assert.Equal(t, first, second)
	assert.Len(t, second, 3)
}
