package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// SingleFollowUpKey is the follow-up key of a single medication reminder
func SingleFollowUpKey(medicationID, scheduleID string) string {
	return medicationID + ":" + scheduleID
}

// GroupFollowUpKey is the follow-up key of a grouped reminder
func GroupFollowUpKey(timeOfDay string) string {
	return "multi:" + timeOfDay
}

// FollowUpKey returns the follow-up key a payload belongs to, or "" for
// payloads without follow-ups
func FollowUpKey(p model.Payload) string {
	switch v := p.(type) {
	case model.SingleReminder:
		return SingleFollowUpKey(v.MedicationID, v.ScheduleID)
	case model.GroupedReminder:
		return GroupFollowUpKey(v.Time)
	}
	return ""
}

// FollowUpEngine holds at most one pending follow-up notification per key
// for the lifetime of the process
type FollowUpEngine struct {
	notifier notify.Notifier
	settings SettingsProvider
	clock    clockwork.Clock
	metrics  *metrics.ReminderMetrics
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]string
	// keys serializes schedule-and-store against Cancel for one key
	keys map[string]*sync.Mutex
}

// NewFollowUpEngine creates a new FollowUpEngine
func NewFollowUpEngine(notifier notify.Notifier, settings SettingsProvider, clock clockwork.Clock, m *metrics.ReminderMetrics, logger *zap.Logger) *FollowUpEngine {
	return &FollowUpEngine{
		notifier: notifier,
		settings: settings,
		clock:    clock,
		metrics:  m,
		logger:   logger,
		pending:  make(map[string]string),
		keys:     make(map[string]*sync.Mutex),
	}
}

func (f *FollowUpEngine) lockKey(key string) func() {
	f.mu.Lock()
	l, ok := f.keys[key]
	if !ok {
		l = &sync.Mutex{}
		f.keys[key] = l
	}
	f.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// OnPrimaryReceived schedules a follow-up for a primary reminder that was
// presented in the foreground. It reports whether one was scheduled.
func (f *FollowUpEngine) OnPrimaryReceived(ctx context.Context, n notify.Scheduled) bool {
	payload := n.Content.Payload
	if payload == nil || model.IsFollowUp(payload) {
		return false
	}

	var (
		delay time.Duration
		ok    bool
	)
	switch p := payload.(type) {
	case model.SingleReminder:
		delay, ok = f.delayFor(ctx, p.MedicationID)
	case model.GroupedReminder:
		delay, ok = f.groupDelay(ctx, p.MedicationIDs)
	default:
		return false
	}
	if !ok {
		return false
	}

	key := FollowUpKey(payload)
	logger := f.logger.With(zap.String("follow_up_key", key))

	unlock := f.lockKey(key)
	defer unlock()

	// one follow-up per key
	f.cancel(ctx, key)

	content := n.Content
	content.Payload = model.AsFollowUp(payload)
	content.Body = "Did you take it? " + n.Content.Body

	id, err := f.notifier.Schedule(ctx, notify.Request{
		Content: content,
		Trigger: f.clock.Now().Add(delay),
	})
	if err != nil {
		logger.Warn("failed to schedule follow-up", zap.Error(err))
		return false
	}

	f.mu.Lock()
	f.pending[key] = id
	count := len(f.pending)
	f.mu.Unlock()

	f.metrics.SetFollowUpsPending(count)
	logger.Info("follow-up scheduled",
		zap.String("notification_id", id),
		zap.Duration("delay", delay),
	)
	return true
}

// Cancel withdraws the pending follow-up for key, if any. It waits for a
// follow-up of the same key that is being scheduled.
func (f *FollowUpEngine) Cancel(ctx context.Context, key string) {
	unlock := f.lockKey(key)
	defer unlock()
	f.cancel(ctx, key)
}

func (f *FollowUpEngine) cancel(ctx context.Context, key string) {
	f.mu.Lock()
	id, ok := f.pending[key]
	f.mu.Unlock()

	if !ok {
		return
	}

	if err := f.notifier.Cancel(ctx, id); err != nil && !errors.Is(err, notify.ErrNotificationNotFound) {
		f.logger.Warn("failed to cancel follow-up",
			zap.Error(err),
			zap.String("follow_up_key", key),
			zap.String("notification_id", id),
		)
	}

	f.mu.Lock()
	if f.pending[key] == id {
		delete(f.pending, key)
	}
	count := len(f.pending)
	f.mu.Unlock()

	f.metrics.SetFollowUpsPending(count)
}

// Pending returns the notification identifier of the pending follow-up
// for key
func (f *FollowUpEngine) Pending(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.pending[key]
	return id, ok
}

// PendingCount returns the number of pending follow-ups
func (f *FollowUpEngine) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *FollowUpEngine) delayFor(ctx context.Context, medicationID string) (time.Duration, bool) {
	s, err := f.settings.GetEffectiveSettings(ctx, medicationID)
	if err != nil {
		f.logger.Warn("failed to load follow-up settings", zap.Error(err), zap.String("medication_id", medicationID))
		return 0, false
	}
	if !s.FollowUpEnabled || s.FollowUpDelay <= 0 {
		return 0, false
	}
	return s.FollowUpDelay, true
}

// groupDelay is the longest delay among members that have follow-ups on
func (f *FollowUpEngine) groupDelay(ctx context.Context, medicationIDs []string) (time.Duration, bool) {
	var longest time.Duration
	found := false
	for _, id := range medicationIDs {
		d, ok := f.delayFor(ctx, id)
		if !ok {
			continue
		}
		if !found || d > longest {
			longest = d
			found = true
		}
	}
	return longest, found
}
