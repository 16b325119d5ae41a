package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"barberbook/internal/catalog"
	"barberbook/internal/domain"
	"barberbook/internal/modules/approval"
	"barberbook/internal/modules/booking"
	"barberbook/internal/modules/conversation"
	"barberbook/internal/modules/reschedule"
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
	store      *booking.Store
	dialogs    *conversation.Manager
	approvals  *approval.Service
	dispatcher *Dispatcher
	day        string
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
		"haircut": {Minutes: 30, PriceUZS: 80000},
	})

	store := booking.NewStore(repo, custRepo, new(MockBlockedSlotRepository),
		schedule.NewSettings(nil), time.UTC)
	timers := timer.NewScheduler(timerRepo, store.Locker())
	approvals := approval.NewService(store, timers, notifier, cat, approverID)
	approvals.RegisterHandlers()
	dialogs := conversation.NewManager(store, approvals, cat, notifier, 14)
	reschedules := reschedule.NewService(store, approvals, notifier)

	days := schedule.WorkingDates(domain.DefaultScheduleConfig(), time.Now().UTC(), 3)

	return &rig{
		store:     store,
		dialogs:   dialogs,
		approvals: approvals,
		dispatcher: NewDispatcher(notifier, dialogs, approvals, reschedules,
			store, approverID, 14),
		day: domain.FormatDay(days[1]),
	}
}

func (r *rig) pendingBooking(t *testing.T, userID int64) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		UserID: userID, Name: "Aziz", Phone: "+998901234567",
		Slot:      domain.SlotKey{Day: r.day, Minute: 10 * 60},
		SlotCount: 1, Services: []string{"haircut"},
	}
	assert.NoError(t, r.approvals.Submit(context.Background(), b))
	return b
}

func TestDispatcher_CommandOpensDialog(t *testing.T) {
	r := newRig()

	r.dispatcher.Dispatch(context.Background(), Event{UserID: 7, Text: "book"})

	assert.True(t, r.dialogs.Active(7))
}

// A customer mid-dialog owns every input, even ones that look like global
// controls.
func TestDispatcher_ActiveDialogTakesPrecedence(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	r.dispatcher.Dispatch(ctx, Event{UserID: 7, Text: "book"})
	r.dispatcher.Dispatch(ctx, Event{UserID: 7, Data: "lang_ru"})

	state, ok := r.dialogs.State(7)
	assert.True(t, ok)
	assert.Equal(t, conversation.StateDate, state)

	// "user_cancel" is a global control, but mid-dialog it is just invalid
	// input for the date state.
	r.dispatcher.Dispatch(ctx, Event{UserID: 7, Data: "user_cancel"})
	state, _ = r.dialogs.State(7)
	assert.Equal(t, conversation.StateDate, state)
	assert.True(t, r.dialogs.Active(7))
}

func TestDispatcher_ApproverControls(t *testing.T) {
	r := newRig()
	b := r.pendingBooking(t, 7)

	r.dispatcher.Dispatch(context.Background(), Event{
		UserID: approverID,
		Data:   fmt.Sprintf("approve_%d", b.ID),
	})

	r.store.Lock()
	got, err := r.store.Get(b.ID)
	r.store.Unlock()
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
}

// Approval controls from anyone but the approver are dead input.
func TestDispatcher_ApproverControlsIgnoredFromCustomers(t *testing.T) {
	r := newRig()
	b := r.pendingBooking(t, 7)

	r.dispatcher.Dispatch(context.Background(), Event{
		UserID: 8,
		Data:   fmt.Sprintf("approve_%d", b.ID),
	})

	r.store.Lock()
	got, err := r.store.Get(b.ID)
	r.store.Unlock()
	assert.NoError(t, err)
	assert.Equal(t, domain.BookingPending, got.Status)
}

func TestDispatcher_CustomerCancelControl(t *testing.T) {
	r := newRig()
	r.pendingBooking(t, 7)

	r.dispatcher.Dispatch(context.Background(), Event{UserID: 7, Data: "user_cancel"})

	r.store.Lock()
	defer r.store.Unlock()
	assert.Nil(t, r.store.FindActiveByCustomer(7))
}

func TestDispatcher_RescheduleFlow(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	b := r.pendingBooking(t, 7)
	_, err := r.approvals.Approve(ctx, b.ID)
	assert.NoError(t, err)

	newSlot := domain.SlotKey{Day: r.day, Minute: 15 * 60}
	r.dispatcher.Dispatch(ctx, Event{UserID: 7, Data: "rsd_time_" + newSlot.String()})

	r.store.Lock()
	defer r.store.Unlock()
	moved := r.store.FindActiveByCustomer(7)
	assert.NotNil(t, moved)
	assert.Equal(t, newSlot, moved.Slot)
	assert.Equal(t, domain.BookingPending, moved.Status)
}

func TestDispatcher_EmptyPayloadIgnored(t *testing.T) {
	r := newRig()
	r.dispatcher.Dispatch(context.Background(), Event{UserID: 7, Text: "   "})
	assert.False(t, r.dialogs.Active(7))
}
