package conversation

import (
	"context"
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
	nextID int64
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	args := m.Called(ctx, b)
	if args.Error(0) == nil {
		m.nextID++
		b.ID = m.nextID
	}
	return args.Error(0)
}

func (m *MockBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) ListActive(ctx context.Context) ([]*domain.Booking, error) {
	args := m.Called(ctx)
	return nil, args.Error(1)
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
	return nil, args.Error(1)
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
	return nil, args.Error(1)
}

type MockTimerRepository struct {
	mock.Mock
}

func (m *MockTimerRepository) Save(ctx context.Context, rec domain.TimerRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockTimerRepository) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockTimerRepository) List(ctx context.Context) ([]domain.TimerRecord, error) {
	args := m.Called(ctx)
	return nil, args.Error(1)
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

type rig struct {
	store   *booking.Store
	timers  *timer.Scheduler
	manager *Manager
	day     string // a strictly-future working date inside the horizon
}

func newRig() *rig {
	repo := new(MockBookingRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	custRepo := new(MockCustomerRepository)
	custRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	timerRepo := new(MockTimerRepository)
	timerRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	timerRepo.On("Delete", mock.Anything, mock.Anything).Return(nil)

	notifier := new(MockNotifier)
	notifier.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(notification.MessageRef("msg-1"), nil)
	notifier.On("Edit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	cat := catalog.New(map[string]catalog.Service{
		"haircut": {ClientLabels: map[string]string{"ru": "Стрижка"}, Minutes: 30, PriceUZS: 80000},
		"beard":   {ClientLabels: map[string]string{"ru": "Борода"}, Minutes: 15, PriceUZS: 50000},
	})

	store := booking.NewStore(repo, custRepo, new(MockBlockedSlotRepository),
		schedule.NewSettings(nil), time.UTC)
	timers := timer.NewScheduler(timerRepo, store.Locker())
	approvals := approval.NewService(store, timers, notifier, cat, approverID)
	approvals.RegisterHandlers()

	days := schedule.WorkingDates(domain.DefaultScheduleConfig(), time.Now().UTC(), 3)

	return &rig{
		store:   store,
		timers:  timers,
		manager: NewManager(store, approvals, cat, notifier, 14),
		day:     domain.FormatDay(days[1]), // skip today, its slots may be gone
	}
}

func (r *rig) stateOf(t *testing.T, userID int64) State {
	t.Helper()
	s, ok := r.manager.State(userID)
	assert.True(t, ok, "dialog should be active")
	return s
}

func TestManager_FullDialog_SubmitsPendingBooking(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	r.manager.Start(ctx, 7)
	assert.Equal(t, StateLang, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "lang_ru")
	assert.Equal(t, StateDate, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "date_"+r.day)
	assert.Equal(t, StateTime, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "time_"+r.day+" 10:00")
	assert.Equal(t, StateName, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "Aziz")
	assert.Equal(t, StatePhone, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "+998 90 123 45 67")
	assert.Equal(t, StateServices, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "svc_haircut")
	r.manager.Handle(ctx, 7, "svc_beard")
	assert.Equal(t, StateServices, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "svc_done")
	assert.Equal(t, StateConfirm, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "confirm_yes")
	assert.False(t, r.manager.Active(7))

	r.store.Lock()
	defer r.store.Unlock()
	b := r.store.FindActiveByCustomer(7)
	assert.NotNil(t, b)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.SlotKey{Day: r.day, Minute: 10 * 60}, b.Slot)
	assert.Equal(t, 2, b.SlotCount) // 45 min of services round up
	assert.Equal(t, "Aziz", b.Name)
	assert.True(t, r.timers.Live(domain.PendingTimeoutJob(b.ID)))
}

// A customer the engine already knows skips the name and phone questions.
func TestManager_CachedIdentity_SkipsNameAndPhone(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	r.store.Lock()
	assert.NoError(t, r.store.SaveCustomer(ctx, domain.Customer{
		UserID: 7, Name: "Aziz", Phone: "+998901234567", Lang: "ru",
	}))
	r.store.Unlock()

	r.manager.Start(ctx, 7)
	r.manager.Handle(ctx, 7, "lang_ru")
	r.manager.Handle(ctx, 7, "date_"+r.day)
	r.manager.Handle(ctx, 7, "time_"+r.day+" 10:00")

	assert.Equal(t, StateServices, r.stateOf(t, 7))
}

// Invalid input re-emits the same state's prompt; the dialog does not move.
func TestManager_InvalidInput_RepeatsState(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	r.manager.Start(ctx, 7)
	r.manager.Handle(ctx, 7, "lang_ru")

	r.manager.Handle(ctx, 7, "date_2019-01-01") // outside horizon
	assert.Equal(t, StateDate, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "date_"+r.day)
	r.manager.Handle(ctx, 7, "time_"+r.day+" 10:15") // mid-slot
	assert.Equal(t, StateTime, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "time_"+r.day+" 10:00")
	r.manager.Handle(ctx, 7, "A") // too short
	assert.Equal(t, StateName, r.stateOf(t, 7))

	r.manager.Handle(ctx, 7, "Aziz")
	r.manager.Handle(ctx, 7, "no digits here")
	assert.Equal(t, StatePhone, r.stateOf(t, 7))
}

func TestManager_DoneWithoutServices_StaysInServices(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	r.manager.Start(ctx, 7)
	r.manager.Handle(ctx, 7, "lang_ru")
	r.manager.Handle(ctx, 7, "date_"+r.day)
	r.manager.Handle(ctx, 7, "time_"+r.day+" 10:00")
	r.manager.Handle(ctx, 7, "Aziz")
	r.manager.Handle(ctx, 7, "+998901234567")

	r.manager.Handle(ctx, 7, "svc_done")
	assert.Equal(t, StateServices, r.stateOf(t, 7))
}

// Cancel works from any state and leaves nothing behind.
func TestManager_Cancel_NoSideEffects(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	r.manager.Start(ctx, 7)
	r.manager.Handle(ctx, 7, "lang_ru")
	r.manager.Handle(ctx, 7, "date_"+r.day)
	r.manager.Handle(ctx, 7, "time_"+r.day+" 10:00")
	r.manager.Handle(ctx, 7, CancelInput)

	assert.False(t, r.manager.Active(7))

	r.store.Lock()
	defer r.store.Unlock()
	assert.Empty(t, r.store.ListActive())
}

func TestManager_ConfirmNo_EndsWithoutBooking(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	r.manager.Start(ctx, 7)
	r.manager.Handle(ctx, 7, "lang_ru")
	r.manager.Handle(ctx, 7, "date_"+r.day)
	r.manager.Handle(ctx, 7, "time_"+r.day+" 10:00")
	r.manager.Handle(ctx, 7, "Aziz")
	r.manager.Handle(ctx, 7, "+998901234567")
	r.manager.Handle(ctx, 7, "svc_haircut")
	r.manager.Handle(ctx, 7, "svc_done")
	r.manager.Handle(ctx, 7, "confirm_no")

	assert.False(t, r.manager.Active(7))

	r.store.Lock()
	defer r.store.Unlock()
	assert.Nil(t, r.store.FindActiveByCustomer(7))
}

// The slot picked at one-slot granularity may not hold the final selection;
// the dialog sends the customer back to pick a time that fits.
func TestManager_ServiceTotalNoLongerFits_BackToTime(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	// Another booking right after the picked slot.
	r.store.Lock()
	err := r.store.Create(ctx, &domain.Booking{
		UserID: 8, Name: "Botir", Phone: "+998900000000",
		Slot:      domain.SlotKey{Day: r.day, Minute: 10*60 + 30},
		SlotCount: 1, Services: []string{"haircut"},
	})
	r.store.Unlock()
	assert.NoError(t, err)

	r.manager.Start(ctx, 7)
	r.manager.Handle(ctx, 7, "lang_ru")
	r.manager.Handle(ctx, 7, "date_"+r.day)
	r.manager.Handle(ctx, 7, "time_"+r.day+" 10:00") // fits one slot
	r.manager.Handle(ctx, 7, "Aziz")
	r.manager.Handle(ctx, 7, "+998901234567")
	r.manager.Handle(ctx, 7, "svc_haircut")
	r.manager.Handle(ctx, 7, "svc_beard") // now needs two slots

	r.manager.Handle(ctx, 7, "svc_done")
	assert.Equal(t, StateTime, r.stateOf(t, 7))
}
