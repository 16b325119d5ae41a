package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"barberbook/internal/catalog"
	"barberbook/internal/domain"
	"barberbook/internal/logger"
	"barberbook/internal/modules/approval"
	"barberbook/internal/modules/booking"
	"barberbook/internal/notification"
	"barberbook/internal/schedule"
)

// State of one customer's booking dialog. Each state validates its own input
// and re-emits its own prompt on invalid input instead of advancing.
type State int

const (
	StateLang State = iota
	StateDate
	StateTime
	StateName
	StatePhone
	StateServices
	StateConfirm
)

// CancelInput aborts the dialog from any state, with no side effects beyond
// ending it.
const CancelInput = "cancel"

type session struct {
	state    State
	lang     string
	day      string
	slot     domain.SlotKey
	name     string
	phone    string
	services []string
}

func (s *session) toggleService(id string) {
	for i, have := range s.services {
		if have == id {
			s.services = append(s.services[:i], s.services[i+1:]...)
			return
		}
	}
	s.services = append(s.services, id)
}

func (s *session) hasService(id string) bool {
	for _, have := range s.services {
		if have == id {
			return true
		}
	}
	return false
}

// Manager runs the per-customer booking dialog. Session state is dialog-local
// and volatile; nothing here survives a restart, and nothing needs to; the
// only durable effect of a dialog is the booking it submits at the end.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*session

	store     *booking.Store
	approvals *approval.Service
	catalog   *catalog.Catalog
	notifier  notification.Notifier
	daysAhead int
}

func NewManager(store *booking.Store, approvals *approval.Service, cat *catalog.Catalog, notifier notification.Notifier, daysAhead int) *Manager {
	return &Manager{
		sessions:  make(map[int64]*session),
		store:     store,
		approvals: approvals,
		catalog:   cat,
		notifier:  notifier,
		daysAhead: daysAhead,
	}
}

// Active reports whether the customer is mid-dialog. The gateway routes an
// active customer's input here before any global handler.
func (m *Manager) Active(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// State returns the customer's current dialog state.
func (m *Manager) State(userID int64) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.state, true
	}
	return 0, false
}

// Start opens a fresh dialog, replacing any stale one.
func (m *Manager) Start(ctx context.Context, userID int64) {
	m.mu.Lock()
	m.sessions[userID] = &session{state: StateLang}
	m.mu.Unlock()

	m.render(ctx, userID, "Выберите язык / Tilni tanlang:", []notification.Control{
		{Label: "Русский", Data: "lang_ru"},
		{Label: "O'zbek", Data: "lang_uz"},
	})
}

// Handle advances the dialog by one input. Inputs are the opaque payloads the
// gateway extracts from messages and button presses.
func (m *Manager) Handle(ctx context.Context, userID int64, input string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	m.mu.Unlock()
	if !ok {
		return
	}

	if input == CancelInput {
		m.end(userID)
		m.render(ctx, userID, tr(sess.lang, "cancelled"), nil)
		return
	}

	switch sess.state {
	case StateLang:
		m.handleLang(ctx, userID, sess, input)
	case StateDate:
		m.handleDate(ctx, userID, sess, input)
	case StateTime:
		m.handleTime(ctx, userID, sess, input)
	case StateName:
		m.handleName(ctx, userID, sess, input)
	case StatePhone:
		m.handlePhone(ctx, userID, sess, input)
	case StateServices:
		m.handleServices(ctx, userID, sess, input)
	case StateConfirm:
		m.handleConfirm(ctx, userID, sess, input)
	}
}

func (m *Manager) handleLang(ctx context.Context, userID int64, sess *session, input string) {
	lang, ok := strings.CutPrefix(input, "lang_")
	if !ok || (lang != "ru" && lang != "uz") {
		m.Start(ctx, userID)
		return
	}
	sess.lang = lang

	m.store.Lock()
	c := m.store.Customer(userID)
	if c == nil {
		c = &domain.Customer{UserID: userID}
	}
	c.Lang = lang
	if err := m.store.SaveCustomer(ctx, *c); err != nil {
		logger.ErrorLogger.Errorf("save customer %d: %v", userID, err)
	}
	m.store.Unlock()

	sess.state = StateDate
	m.promptDate(ctx, userID, sess)
}

func (m *Manager) promptDate(ctx context.Context, userID int64, sess *session) {
	m.store.Lock()
	cfg := m.store.Settings().Current()
	now := m.store.Now()
	m.store.Unlock()

	days := schedule.WorkingDates(cfg, now, m.daysAhead)
	controls := make([]notification.Control, 0, len(days))
	for _, d := range days {
		day := domain.FormatDay(d)
		controls = append(controls, notification.Control{Label: day, Data: "date_" + day})
	}
	m.render(ctx, userID, tr(sess.lang, "choose_date"), controls)
}

func (m *Manager) handleDate(ctx context.Context, userID int64, sess *session, input string) {
	day, ok := strings.CutPrefix(input, "date_")
	if !ok || !m.bookableDay(day) {
		m.promptDate(ctx, userID, sess)
		return
	}
	sess.day = day
	sess.state = StateTime
	m.promptTime(ctx, userID, sess, tr(sess.lang, "choose_time"))
}

// bookableDay: a working day inside the look-ahead horizon.
func (m *Manager) bookableDay(day string) bool {
	m.store.Lock()
	cfg := m.store.Settings().Current()
	now := m.store.Now()
	loc := m.store.Location()
	m.store.Unlock()

	t, err := domain.ParseDay(day, loc)
	if err != nil {
		return false
	}
	for _, d := range schedule.WorkingDates(cfg, now, m.daysAhead) {
		if d.Equal(t) {
			return true
		}
	}
	return false
}

func (m *Manager) promptTime(ctx context.Context, userID int64, sess *session, text string) {
	// Duration is unknown before service selection; assume one slot here and
	// re-check the real span at the Services step.
	_, slots := m.catalog.Duration(sess.services)

	m.store.Lock()
	loc := m.store.Location()
	day, err := domain.ParseDay(sess.day, loc)
	var starts []domain.SlotKey
	if err == nil {
		starts = m.store.FitStarts(day, slots, 0)
	}
	m.store.Unlock()

	controls := make([]notification.Control, 0, len(starts))
	for _, k := range starts {
		controls = append(controls, notification.Control{Label: k.Clock(), Data: "time_" + k.String()})
	}
	m.render(ctx, userID, text, controls)
}

func (m *Manager) handleTime(ctx context.Context, userID int64, sess *session, input string) {
	raw, ok := strings.CutPrefix(input, "time_")
	if !ok {
		m.promptTime(ctx, userID, sess, tr(sess.lang, "choose_time"))
		return
	}
	key, err := domain.ParseSlotKey(raw)
	if err != nil || key.Day != sess.day {
		m.promptTime(ctx, userID, sess, tr(sess.lang, "choose_time"))
		return
	}

	_, slots := m.catalog.Duration(sess.services)
	m.store.Lock()
	fits := m.store.CanFit(key, slots, 0)
	c := m.store.Customer(userID)
	m.store.Unlock()
	if !fits {
		m.promptTime(ctx, userID, sess, tr(sess.lang, "slot_taken"))
		return
	}
	sess.slot = key

	// Cache hit skips the identity questions entirely.
	if c.Known() {
		sess.name = c.Name
		sess.phone = c.Phone
		sess.state = StateServices
		m.promptServices(ctx, userID, sess)
		return
	}
	sess.state = StateName
	m.render(ctx, userID, tr(sess.lang, "ask_name"), nil)
}

func (m *Manager) handleName(ctx context.Context, userID int64, sess *session, input string) {
	name := strings.TrimSpace(input)
	if utf8.RuneCountInString(name) < 2 {
		m.render(ctx, userID, tr(sess.lang, "name_short"), nil)
		return
	}
	sess.name = name
	sess.state = StatePhone
	m.render(ctx, userID, tr(sess.lang, "ask_phone"), nil)
}

func (m *Manager) handlePhone(ctx context.Context, userID int64, sess *session, input string) {
	phone := strings.TrimSpace(input)
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < 7 {
		m.render(ctx, userID, tr(sess.lang, "phone_bad"), nil)
		return
	}
	sess.phone = phone
	sess.state = StateServices
	m.promptServices(ctx, userID, sess)
}

func (m *Manager) promptServices(ctx context.Context, userID int64, sess *session) {
	ids := m.catalog.IDs()
	controls := make([]notification.Control, 0, len(ids)+1)
	for _, id := range ids {
		label := m.catalog.ClientLabel(id, sess.lang)
		if sess.hasService(id) {
			label = "✓ " + label
		}
		controls = append(controls, notification.Control{Label: label, Data: "svc_" + id})
	}
	controls = append(controls, notification.Control{Label: tr(sess.lang, "done"), Data: "svc_done"})
	m.render(ctx, userID, tr(sess.lang, "choose_services"), controls)
}

func (m *Manager) handleServices(ctx context.Context, userID int64, sess *session, input string) {
	if input == "svc_done" {
		if len(sess.services) == 0 {
			m.render(ctx, userID, tr(sess.lang, "need_service"), nil)
			m.promptServices(ctx, userID, sess)
			return
		}
		// The final duration may need more consecutive slots than the single
		// slot assumed when the time was picked.
		_, slots := m.catalog.Duration(sess.services)
		m.store.Lock()
		fits := m.store.CanFit(sess.slot, slots, 0)
		m.store.Unlock()
		if !fits {
			sess.state = StateTime
			m.promptTime(ctx, userID, sess, tr(sess.lang, "slot_taken"))
			return
		}
		sess.state = StateConfirm
		m.promptConfirm(ctx, userID, sess)
		return
	}

	id, ok := strings.CutPrefix(input, "svc_")
	if !ok || !m.catalog.Has(id) {
		m.promptServices(ctx, userID, sess)
		return
	}
	sess.toggleService(id)
	m.promptServices(ctx, userID, sess)
}

func (m *Manager) promptConfirm(ctx context.Context, userID int64, sess *session) {
	mins, slots := m.catalog.Duration(sess.services)
	labels := make([]string, 0, len(sess.services))
	for _, id := range sess.services {
		labels = append(labels, m.catalog.ClientLabel(id, sess.lang))
	}
	text := strings.Join([]string{
		tr(sess.lang, "confirm"),
		sess.slot.Day,
		sess.slot.ClockRange(slots),
		strings.Join(labels, ", "),
		fmt.Sprintf("~%d min", mins),
	}, "\n")
	m.render(ctx, userID, text, []notification.Control{
		{Label: tr(sess.lang, "yes"), Data: "confirm_yes"},
		{Label: tr(sess.lang, "no"), Data: "confirm_no"},
	})
}

func (m *Manager) handleConfirm(ctx context.Context, userID int64, sess *session, input string) {
	switch input {
	case "confirm_no":
		m.end(userID)
		m.render(ctx, userID, tr(sess.lang, "cancelled"), nil)
		return
	case "confirm_yes":
	default:
		m.promptConfirm(ctx, userID, sess)
		return
	}

	mins, slots := m.catalog.Duration(sess.services)
	b := &domain.Booking{
		UserID:       userID,
		Name:         sess.name,
		Phone:        sess.phone,
		Lang:         sess.lang,
		Slot:         sess.slot,
		SlotCount:    slots,
		DurationMins: mins,
		Services:     append([]string(nil), sess.services...),
	}

	m.store.Lock()
	if err := m.store.SaveCustomer(ctx, domain.Customer{
		UserID: userID, Name: sess.name, Phone: sess.phone, Lang: sess.lang,
	}); err != nil {
		logger.ErrorLogger.Errorf("save customer %d: %v", userID, err)
	}
	m.store.Unlock()

	err := m.approvals.Submit(ctx, b)
	switch {
	case errors.Is(err, booking.ErrSlotUnavailable):
		// Raced by another customer between selection and submission.
		sess.state = StateTime
		m.promptTime(ctx, userID, sess, tr(sess.lang, "slot_taken"))
		return
	case errors.Is(err, booking.ErrAlreadyBooked):
		m.end(userID)
		m.render(ctx, userID, tr(sess.lang, "already_booked"), nil)
		return
	case err != nil:
		logger.ErrorLogger.Errorf("submit booking for %d: %v", userID, err)
		m.end(userID)
		return
	}

	m.end(userID)
	m.render(ctx, userID, tr(sess.lang, "submitted"), nil)
}

func (m *Manager) end(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

func (m *Manager) render(ctx context.Context, userID int64, text string, controls []notification.Control) {
	if _, err := m.notifier.Render(ctx, userID, text, controls); err != nil {
		logger.ErrorLogger.Errorf("dialog render for %d: %v", userID, err)
	}
}
