package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// memMedications is an in-memory MedicationWriter
type memMedications struct {
	mu   sync.Mutex
	meds map[string]*model.Medication
	err  error
}

func newMemMedications() *memMedications {
	return &memMedications{meds: make(map[string]*model.Medication)}
}

func cloneMedication(m *model.Medication) *model.Medication {
	c := *m
	c.Schedules = append([]model.Schedule(nil), m.Schedules...)
	return &c
}

func (r *memMedications) put(m *model.Medication) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meds[m.ID] = cloneMedication(m)
}

func (r *memMedications) GetByID(ctx context.Context, id string) (*model.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	m, ok := r.meds[id]
	if !ok {
		return nil, nil
	}
	return cloneMedication(m), nil
}

func (r *memMedications) GetActive(ctx context.Context) ([]model.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []model.Medication
	for _, m := range r.meds {
		if m.Active {
			out = append(out, *cloneMedication(m))
		}
	}
	return out, nil
}

func (r *memMedications) Create(ctx context.Context, med *model.Medication) error {
	r.put(med)
	return nil
}

func (r *memMedications) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meds[id]
	if !ok {
		return ErrMedicationNotFound
	}
	m.Active = active
	return nil
}

func (r *memMedications) AddSchedule(ctx context.Context, s *model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meds[s.MedicationID]
	if !ok {
		return ErrMedicationNotFound
	}
	m.Schedules = append(m.Schedules, *s)
	return nil
}

func (r *memMedications) UpdateSchedule(ctx context.Context, s *model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meds[s.MedicationID]
	if !ok {
		return ErrMedicationNotFound
	}
	for i := range m.Schedules {
		if m.Schedules[i].ID == s.ID {
			m.Schedules[i] = *s
			return nil
		}
	}
	return ErrScheduleNotFound
}

// memDoses is an in-memory DoseStore evaluating "today" against clock
type memDoses struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	doses   []model.Dose
	logged  map[string]bool
	err     error
	failFor map[string]bool
	create  func(d *model.Dose)
}

func newMemDoses(clock clockwork.Clock) *memDoses {
	return &memDoses{clock: clock, logged: make(map[string]bool), failFor: make(map[string]bool)}
}

func (r *memDoses) setLogged(medicationID, scheduleID string, logged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logged[SingleFollowUpKey(medicationID, scheduleID)] = logged
}

func (r *memDoses) Create(ctx context.Context, dose *model.Dose) (*model.Dose, error) {
	if r.create != nil {
		r.create(dose)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if dose.ID == "" {
		dose.ID = uuid.New().String()
	}
	r.doses = append(r.doses, *dose)
	return dose, nil
}

func (r *memDoses) WasLoggedForScheduleToday(ctx context.Context, medicationID, scheduleID, timeOfDay, timezone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	key := SingleFollowUpKey(medicationID, scheduleID)
	if r.failFor[key] {
		return false, errLookup
	}
	if logged, ok := r.logged[key]; ok {
		return logged, nil
	}

	today, err := model.LocalDate(r.clock.Now(), timezone)
	if err != nil {
		return false, err
	}
	for _, d := range r.doses {
		if d.MedicationID != medicationID || d.ScheduleID == nil || *d.ScheduleID != scheduleID {
			continue
		}
		day, err := model.LocalDate(time.UnixMilli(d.Timestamp), timezone)
		if err != nil {
			return false, err
		}
		if day == today {
			return true, nil
		}
	}
	return false, nil
}

func (r *memDoses) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.doses)
}

// memMappings is an in-memory MappingStore with the same lookup rules as
// the postgres repository
type memMappings struct {
	mu           sync.Mutex
	rows         []model.NotificationMapping
	tableMissing bool
	saveErr      error
	// failSaveAt fails only the n-th save call when non-zero
	failSaveAt int
	saves      int
}

func (r *memMappings) SaveMapping(ctx context.Context, m *model.NotificationMapping) (*model.NotificationMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.saves++
	if r.failSaveAt != 0 && r.saves == r.failSaveAt {
		return nil, errors.New("constraint violation")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	r.rows = append(r.rows, *m)
	return m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *memMappings) GetMapping(ctx context.Context, key model.MappingKey) (*model.NotificationMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		m := r.rows[i]
		if m.Date != key.Date || m.Kind != key.Kind {
			continue
		}
		switch {
		case key.GroupKey != "":
			if m.IsGrouped && deref(m.GroupKey) == key.GroupKey {
				return &m, nil
			}
		case key.Kind == model.KindDailyCheckin:
			if m.MedicationID == nil {
				return &m, nil
			}
		default:
			if deref(m.MedicationID) == key.MedicationID && deref(m.ScheduleID) == key.ScheduleID {
				return &m, nil
			}
		}
	}
	return nil, nil
}

func (r *memMappings) GetAllMappings(ctx context.Context) ([]model.NotificationMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.NotificationMapping(nil), r.rows...), nil
}

func (r *memMappings) GetMappingsByMedication(ctx context.Context, medicationID string) ([]model.NotificationMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.NotificationMapping
	for _, m := range r.rows {
		if deref(m.MedicationID) == medicationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMappings) DeleteMappingsByNotificationID(ctx context.Context, notificationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var n int64
	for _, m := range r.rows {
		if m.NotificationID == notificationID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	return n, nil
}

func (r *memMappings) DeleteMapping(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.rows {
		if m.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memMappings) DeleteAllMappings(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.rows))
	r.rows = nil
	return n, nil
}

func (r *memMappings) TableExists(ctx context.Context) (bool, error) {
	return !r.tableMissing, nil
}

func (r *memMappings) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// memDays is an in-memory DayStatusStore
type memDays struct {
	mu       sync.Mutex
	statuses map[string]bool
	episodes map[string]bool
	err      error
	logged   []model.DailyStatus
}

func newMemDays() *memDays {
	return &memDays{statuses: make(map[string]bool), episodes: make(map[string]bool)}
}

func (d *memDays) EpisodeOverlapsDate(ctx context.Context, date string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.episodes[date], nil
}

func (d *memDays) HasStatusForDate(ctx context.Context, date string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.statuses[date], nil
}

func (d *memDays) LogStatus(ctx context.Context, status *model.DailyStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.statuses[status.Date] = true
	d.logged = append(d.logged, *status)
	return nil
}

type memToggle struct {
	mu      sync.Mutex
	enabled bool
}

func (t *memToggle) NotificationsEnabled(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled, nil
}

func (t *memToggle) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	return nil
}

// staticSettings returns fixed settings per medication
type staticSettings struct {
	byMed    map[string]model.NotificationSettings
	fallback model.NotificationSettings
	err      error
}

func (s *staticSettings) GetEffectiveSettings(ctx context.Context, medicationID string) (model.NotificationSettings, error) {
	if s.err != nil {
		return model.NotificationSettings{}, s.err
	}
	if v, ok := s.byMed[medicationID]; ok {
		return v, nil
	}
	return s.fallback, nil
}

type recordingReporter struct {
	mu      sync.Mutex
	entries []errorlog.Entry
}

func (r *recordingReporter) Submit(entry errorlog.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingReporter) categories() []errorlog.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []errorlog.Category
	for _, e := range r.entries {
		out = append(out, e.Category)
	}
	return out
}

var errLookup = errors.New("database is locked")

// harness wires the engine against in-memory collaborators
type harness struct {
	clock    clockwork.Clock
	notifier *notify.MockNotifier
	meds     *memMedications
	doses    *memDoses
	mappings *memMappings
	days     *memDays
	toggle   *memToggle
	settings *staticSettings
	reporter *recordingReporter

	scheduler  *Scheduler
	oracle     *Oracle
	actions    *ActionHandlers
	followUps  *FollowUpEngine
	dispatcher *Dispatcher
	engine     *Engine
	reconciler *Reconciler
}

// testNow is a fixed instant: Saturday 2026-05-02 06:00 UTC
var testNow = time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zap.NewNop()
	clock := clockwork.NewFakeClockAt(testNow)

	h := &harness{
		clock:    clock,
		notifier: notify.NewMockNotifier(),
		meds:     newMemMedications(),
		doses:    newMemDoses(clock),
		mappings: &memMappings{},
		days:     newMemDays(),
		toggle:   &memToggle{enabled: true},
		settings: &staticSettings{
			byMed:    make(map[string]model.NotificationSettings),
			fallback: model.NotificationSettings{FollowUpEnabled: true, FollowUpDelay: 30 * time.Minute},
		},
		reporter: &recordingReporter{},
	}

	h.scheduler = NewScheduler(h.meds, h.mappings, h.notifier, h.toggle, h.settings,
		SchedulerOptions{ForwardDays: 3, SnoozeMinutes: 10}, clock, nil, logger)
	h.oracle = NewOracle(h.meds, h.doses, h.days, h.notifier, h.reporter, nil, logger)
	h.actions = NewActionHandlers(h.meds, h.doses, h.notifier, clock, logger)
	h.followUps = NewFollowUpEngine(h.notifier, h.settings, clock, nil, logger)
	h.dispatcher = NewDispatcher(h.actions, h.followUps, h.days, h.notifier, h.reporter,
		DispatcherOptions{SnoozeMinutes: 10, RemindLaterMinutes: 10}, clock, nil, logger)
	h.engine = NewEngine(h.oracle, h.mappings, h.followUps, h.dispatcher, logger)
	h.reconciler = NewReconciler(h.mappings, h.notifier, nil, logger)

	return h
}

func medication(id, name string, schedules ...model.Schedule) *model.Medication {
	for i := range schedules {
		schedules[i].MedicationID = id
	}
	return &model.Medication{
		ID:              id,
		Name:            name,
		Category:        model.CategoryPreventative,
		DosageAmount:    100,
		DosageUnit:      "mg",
		DefaultQuantity: 1,
		Active:          true,
		Schedules:       schedules,
	}
}

func schedule(id, at, tz string) model.Schedule {
	return model.Schedule{ID: id, Time: at, Timezone: tz, Dosage: 1, Enabled: true}
}

// addMedication stores a medication and returns the stored copy
func (h *harness) addMedication(m *model.Medication) *model.Medication {
	h.meds.put(m)
	return m
}

func (h *harness) advance(d time.Duration) {
	h.clock.(interface{ Advance(time.Duration) }).Advance(d)
}

func (h *harness) requestsForCategory(category string) []notify.Request {
	var out []notify.Request
	for _, r := range h.notifier.Requests {
		if r.Content.Category() == category {
			out = append(out, r)
		}
	}
	return out
}
