package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ScheduleItem pairs a schedule with its owning medication
type ScheduleItem struct {
	Medication *model.Medication
	Schedule   *model.Schedule
}

// DailyCheckinOptions configures the daily check-in prompt
type DailyCheckinOptions struct {
	Enabled  bool
	Time     string
	Timezone string
}

// SchedulerOptions configures the Scheduler
type SchedulerOptions struct {
	ForwardDays   int
	SnoozeMinutes int
	DailyCheckin  DailyCheckinOptions
}

// Scheduler keeps the notification scheduler and the mapping table in
// step with the enabled schedules of active medications
type Scheduler struct {
	medications MedicationStore
	mappings    MappingStore
	notifier    notify.Notifier
	toggle      ToggleStore
	settings    SettingsProvider
	opts        SchedulerOptions
	clock       clockwork.Clock
	metrics     *metrics.ReminderMetrics
	logger      *zap.Logger
}

// Ensure Scheduler implements NotificationOperations
var _ NotificationOperations = (*Scheduler)(nil)

// NewScheduler creates a new Scheduler
func NewScheduler(
	medications MedicationStore,
	mappings MappingStore,
	notifier notify.Notifier,
	toggle ToggleStore,
	settings SettingsProvider,
	opts SchedulerOptions,
	clock clockwork.Clock,
	m *metrics.ReminderMetrics,
	logger *zap.Logger,
) *Scheduler {
	if opts.ForwardDays <= 0 {
		opts.ForwardDays = 3
	}
	if opts.SnoozeMinutes <= 0 {
		opts.SnoozeMinutes = 10
	}

	return &Scheduler{
		medications: medications,
		mappings:    mappings,
		notifier:    notifier,
		toggle:      toggle,
		settings:    settings,
		opts:        opts,
		clock:       clock,
		metrics:     m,
		logger:      logger,
	}
}

// ForwardDays returns the size of the scheduling window in days
func (s *Scheduler) ForwardDays() int {
	return s.opts.ForwardDays
}

// RegisterCategories registers the action buttons of every notification
// category
func (s *Scheduler) RegisterCategories(ctx context.Context) error {
	categories := map[string][]notify.Action{
		model.CategoryMedicationReminder: {
			{ID: ActionTakeNow, Title: "Take now"},
			{ID: ActionSnooze, Title: fmt.Sprintf("Snooze %d min", s.opts.SnoozeMinutes)},
			{ID: ActionSkip, Title: "Skip", Destructive: true},
		},
		model.CategoryMultipleMedicationReminder: {
			{ID: ActionTakeAllNow, Title: "Take all now"},
			{ID: ActionRemindLater, Title: "Remind me later"},
		},
		model.CategoryDailyCheckin: {
			{ID: ActionLogCheckin, Title: "Clear day"},
			{ID: ActionDefault, Title: "Open", Foreground: true},
		},
	}

	for name, actions := range categories {
		if err := s.notifier.RegisterCategory(ctx, name, actions); err != nil {
			return fmt.Errorf("failed to register category %s: %w", name, err)
		}
	}

	return nil
}

// ScheduleForDays makes sure one reminder exists for each of dayCount
// days starting at startDate (today in the schedule's timezone when
// empty). Past triggers and days that already have a mapping are skipped.
// It returns the number of notifications scheduled.
func (s *Scheduler) ScheduleForDays(ctx context.Context, med *model.Medication, sched *model.Schedule, dayCount int, startDate string) int {
	if med == nil || sched == nil || !sched.Enabled || !med.Active {
		return 0
	}

	logger := s.logger.With(
		zap.String("medication_id", med.ID),
		zap.String("schedule_id", sched.ID),
	)

	now := s.clock.Now()
	if startDate == "" {
		today, err := model.LocalDate(now, sched.Timezone)
		if err != nil {
			logger.Error("invalid schedule timezone", zap.Error(err), zap.String("timezone", sched.Timezone))
			return 0
		}
		startDate = today
	}

	scheduled := 0
	for i := 0; i < dayCount; i++ {
		date, err := model.AddDays(startDate, i)
		if err != nil {
			logger.Error("invalid start date", zap.Error(err), zap.String("date", startDate))
			return scheduled
		}

		trigger, err := model.TriggerInstant(date, sched.Time, sched.Timezone)
		if err != nil {
			logger.Error("failed to compute trigger", zap.Error(err), zap.String("date", date))
			continue
		}
		if !trigger.After(now) {
			s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusSkipped)
			continue
		}

		existing, err := s.mappings.GetMapping(ctx, model.MappingKey{
			MedicationID: med.ID,
			ScheduleID:   sched.ID,
			Date:         date,
			Kind:         model.KindReminder,
		})
		if err != nil {
			logger.Warn("failed to check existing mapping", zap.Error(err), zap.String("date", date))
			continue
		}
		if existing != nil {
			s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusSkipped)
			continue
		}

		content := s.singleContent(ctx, med, sched)
		notificationID, err := s.notifier.Schedule(ctx, notify.Request{Content: content, Trigger: trigger})
		if err != nil {
			logger.Warn("failed to schedule reminder", zap.Error(err), zap.String("date", date))
			s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusFailed)
			continue
		}

		_, err = s.mappings.SaveMapping(ctx, &model.NotificationMapping{
			MedicationID:   model.StringPtr(med.ID),
			ScheduleID:     model.StringPtr(sched.ID),
			Date:           date,
			NotificationID: notificationID,
			Kind:           model.KindReminder,
			SourceType:     model.SourceMedication,
		})
		if err != nil {
			logger.Error("failed to save mapping, withdrawing reminder", zap.Error(err), zap.String("date", date))
			s.cancelQuietly(ctx, notificationID)
			s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusFailed)
			continue
		}

		scheduled++
		s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusScheduled)
	}

	if scheduled > 0 {
		logger.Info("reminders scheduled", zap.Int("count", scheduled), zap.String("start_date", startDate))
	}

	return scheduled
}

// ScheduleGroupedForDays schedules reminders for items, combining
// schedules that share the same time of day into one notification.
// Groups use the timezone of their first member. It returns the number of
// notifications scheduled.
func (s *Scheduler) ScheduleGroupedForDays(ctx context.Context, items []ScheduleItem, dayCount int) int {
	groups := make(map[string][]ScheduleItem)
	var order []string

	for _, item := range items {
		if item.Medication == nil || item.Schedule == nil || !item.Schedule.Enabled || !item.Medication.Active {
			continue
		}
		key := item.Schedule.Time
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], item)
	}

	scheduled := 0
	for _, timeOfDay := range order {
		members := groups[timeOfDay]
		if len(members) == 1 {
			scheduled += s.ScheduleForDays(ctx, members[0].Medication, members[0].Schedule, dayCount, "")
			continue
		}
		scheduled += s.scheduleGroup(ctx, timeOfDay, members, dayCount)
	}

	return scheduled
}

func (s *Scheduler) scheduleGroup(ctx context.Context, timeOfDay string, members []ScheduleItem, dayCount int) int {
	tz := members[0].Schedule.Timezone
	logger := s.logger.With(zap.String("group_key", timeOfDay), zap.Int("members", len(members)))

	now := s.clock.Now()
	startDate, err := model.LocalDate(now, tz)
	if err != nil {
		logger.Error("invalid group timezone", zap.Error(err), zap.String("timezone", tz))
		return 0
	}

	scheduled := 0
	for i := 0; i < dayCount; i++ {
		date, err := model.AddDays(startDate, i)
		if err != nil {
			logger.Error("invalid start date", zap.Error(err))
			return scheduled
		}

		trigger, err := model.TriggerInstant(date, timeOfDay, tz)
		if err != nil {
			logger.Error("failed to compute trigger", zap.Error(err), zap.String("date", date))
			continue
		}
		if !trigger.After(now) {
			s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusSkipped)
			continue
		}

		existing, err := s.mappings.GetMapping(ctx, model.MappingKey{
			GroupKey: timeOfDay,
			Date:     date,
			Kind:     model.KindReminder,
		})
		if err != nil {
			logger.Warn("failed to check existing group mapping", zap.Error(err), zap.String("date", date))
			continue
		}
		if existing != nil {
			s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusSkipped)
			continue
		}

		content := s.groupContent(ctx, timeOfDay, members)
		notificationID, err := s.notifier.Schedule(ctx, notify.Request{Content: content, Trigger: trigger})
		if err != nil {
			logger.Warn("failed to schedule grouped reminder", zap.Error(err), zap.String("date", date))
			s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusFailed)
			continue
		}

		saved := true
		for _, member := range members {
			_, err := s.mappings.SaveMapping(ctx, &model.NotificationMapping{
				MedicationID:   model.StringPtr(member.Medication.ID),
				ScheduleID:     model.StringPtr(member.Schedule.ID),
				Date:           date,
				NotificationID: notificationID,
				Kind:           model.KindReminder,
				IsGrouped:      true,
				GroupKey:       model.StringPtr(timeOfDay),
				SourceType:     model.SourceMedication,
			})
			if err != nil {
				logger.Error("failed to save group member mapping",
					zap.Error(err),
					zap.String("medication_id", member.Medication.ID),
					zap.String("date", date),
				)
				saved = false
				break
			}
		}
		if !saved {
			s.cancelQuietly(ctx, notificationID)
			if _, err := s.mappings.DeleteMappingsByNotificationID(ctx, notificationID); err != nil {
				logger.Error("failed to drop partial group mappings", zap.Error(err), zap.String("notification_id", notificationID))
			}
			s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusFailed)
			continue
		}

		scheduled++
		s.metrics.RecordScheduled(string(model.KindReminder), metrics.StatusScheduled)
	}

	if scheduled > 0 {
		logger.Info("grouped reminders scheduled", zap.Int("count", scheduled))
	}

	return scheduled
}

// ScheduleDailyCheckin schedules the daily check-in prompt for dayCount
// days. It does nothing when the check-in is disabled.
func (s *Scheduler) ScheduleDailyCheckin(ctx context.Context, dayCount int) int {
	opts := s.opts.DailyCheckin
	if !opts.Enabled {
		return 0
	}

	now := s.clock.Now()
	startDate, err := model.LocalDate(now, opts.Timezone)
	if err != nil {
		s.logger.Error("invalid daily check-in timezone", zap.Error(err), zap.String("timezone", opts.Timezone))
		return 0
	}

	scheduled := 0
	for i := 0; i < dayCount; i++ {
		date, err := model.AddDays(startDate, i)
		if err != nil {
			return scheduled
		}

		trigger, err := model.TriggerInstant(date, opts.Time, opts.Timezone)
		if err != nil {
			s.logger.Error("failed to compute daily check-in trigger", zap.Error(err), zap.String("date", date))
			continue
		}
		if !trigger.After(now) {
			continue
		}

		existing, err := s.mappings.GetMapping(ctx, model.MappingKey{Date: date, Kind: model.KindDailyCheckin})
		if err != nil {
			s.logger.Warn("failed to check daily check-in mapping", zap.Error(err), zap.String("date", date))
			continue
		}
		if existing != nil {
			continue
		}

		notificationID, err := s.notifier.Schedule(ctx, notify.Request{
			Content: notify.Content{
				Title:             "How was your day?",
				Body:              "Tap to log today's status.",
				Payload:           model.DailyCheckin{Date: date},
				Sound:             true,
				InterruptionLevel: notify.InterruptionActive,
			},
			Trigger: trigger,
		})
		if err != nil {
			s.logger.Warn("failed to schedule daily check-in", zap.Error(err), zap.String("date", date))
			s.metrics.RecordScheduled(string(model.KindDailyCheckin), metrics.StatusFailed)
			continue
		}

		_, err = s.mappings.SaveMapping(ctx, &model.NotificationMapping{
			Date:           date,
			NotificationID: notificationID,
			Kind:           model.KindDailyCheckin,
			SourceType:     model.SourceDailyCheckin,
		})
		if err != nil {
			s.logger.Error("failed to save daily check-in mapping", zap.Error(err), zap.String("date", date))
			s.cancelQuietly(ctx, notificationID)
			s.metrics.RecordScheduled(string(model.KindDailyCheckin), metrics.StatusFailed)
			continue
		}

		scheduled++
		s.metrics.RecordScheduled(string(model.KindDailyCheckin), metrics.StatusScheduled)
	}

	return scheduled
}

// CancelForMedication withdraws every notification mapped to a
// medication. Identifiers the notifier no longer knows are treated as
// cancelled. Mappings of other medications sharing a cancelled grouped
// notification are removed as well.
func (s *Scheduler) CancelForMedication(ctx context.Context, medicationID string) error {
	mappings, err := s.mappings.GetMappingsByMedication(ctx, medicationID)
	if err != nil {
		return fmt.Errorf("failed to load mappings for medication: %w", err)
	}

	seen := make(map[string]bool)
	cancelled := 0
	for _, m := range mappings {
		if seen[m.NotificationID] {
			continue
		}
		seen[m.NotificationID] = true

		if err := s.notifier.Cancel(ctx, m.NotificationID); err != nil && !errors.Is(err, notify.ErrNotificationNotFound) {
			s.logger.Warn("failed to cancel notification",
				zap.Error(err),
				zap.String("medication_id", medicationID),
				zap.String("notification_id", m.NotificationID),
			)
		} else {
			cancelled++
		}

		if _, err := s.mappings.DeleteMappingsByNotificationID(ctx, m.NotificationID); err != nil {
			s.logger.Error("failed to delete mappings",
				zap.Error(err),
				zap.String("notification_id", m.NotificationID),
			)
		}
	}

	s.metrics.RecordCancelled(cancelled)
	s.logger.Info("notifications withdrawn for medication",
		zap.String("medication_id", medicationID),
		zap.Int("count", cancelled),
	)

	return nil
}

// RescheduleAll cancels every scheduled notification, clears the mapping
// table and schedules the forward window again from scratch
func (s *Scheduler) RescheduleAll(ctx context.Context) error {
	start := time.Now()
	defer func() { s.metrics.ObserveReschedule(time.Since(start)) }()

	if err := s.cancelAll(ctx); err != nil {
		return err
	}
	return s.scheduleWindow(ctx)
}

// Refresh schedules whatever is missing from the forward window without
// cancelling anything. Existing mappings keep it idempotent.
func (s *Scheduler) Refresh(ctx context.Context) error {
	return s.scheduleWindow(ctx)
}

func (s *Scheduler) scheduleWindow(ctx context.Context) error {
	enabled, err := s.toggle.NotificationsEnabled(ctx)
	if err != nil {
		s.logger.Warn("failed to read notification toggle, assuming enabled", zap.Error(err))
		enabled = true
	}
	if !enabled {
		s.logger.Info("notifications disabled, nothing scheduled")
		return nil
	}

	meds, err := s.medications.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active medications: %w", err)
	}

	var items []ScheduleItem
	for i := range meds {
		for j := range meds[i].Schedules {
			if meds[i].Schedules[j].Enabled {
				items = append(items, ScheduleItem{Medication: &meds[i], Schedule: &meds[i].Schedules[j]})
			}
		}
	}

	reminders := s.ScheduleGroupedForDays(ctx, items, s.opts.ForwardDays)
	checkins := s.ScheduleDailyCheckin(ctx, s.opts.ForwardDays)

	s.logger.Info("forward window scheduled",
		zap.Int("medications", len(meds)),
		zap.Int("schedules", len(items)),
		zap.Int("reminders", reminders),
		zap.Int("daily_checkins", checkins),
	)

	return nil
}

// SetNotificationsEnabled persists the global notification switch.
// Disabling cancels everything; enabling reschedules from scratch.
func (s *Scheduler) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	if err := s.toggle.SetNotificationsEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("failed to save notification toggle: %w", err)
	}

	if !enabled {
		return s.cancelAll(ctx)
	}
	return s.RescheduleAll(ctx)
}

// GetAllScheduled lists every notification known to the notifier
func (s *Scheduler) GetAllScheduled(ctx context.Context) ([]notify.Scheduled, error) {
	scheduled, err := s.notifier.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled notifications: %w", err)
	}
	return scheduled, nil
}

func (s *Scheduler) cancelAll(ctx context.Context) error {
	scheduled, err := s.notifier.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scheduled notifications: %w", err)
	}

	cancelled := 0
	for _, n := range scheduled {
		if err := s.notifier.Cancel(ctx, n.ID); err != nil && !errors.Is(err, notify.ErrNotificationNotFound) {
			s.logger.Warn("failed to cancel notification", zap.Error(err), zap.String("notification_id", n.ID))
			continue
		}
		cancelled++
	}
	s.metrics.RecordCancelled(cancelled)

	deleted, err := s.mappings.DeleteAllMappings(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete mappings: %w", err)
	}

	s.logger.Info("all notifications cancelled",
		zap.Int("cancelled", cancelled),
		zap.Int64("mappings_deleted", deleted),
	)

	return nil
}

func (s *Scheduler) cancelQuietly(ctx context.Context, notificationID string) {
	if err := s.notifier.Cancel(ctx, notificationID); err != nil && !errors.Is(err, notify.ErrNotificationNotFound) {
		s.logger.Warn("failed to cancel notification", zap.Error(err), zap.String("notification_id", notificationID))
	}
}

func (s *Scheduler) singleContent(ctx context.Context, med *model.Medication, sched *model.Schedule) notify.Content {
	return notify.Content{
		Title: "Time for " + med.Name,
		Body:  doseLine(med, sched.Dosage),
		Payload: model.SingleReminder{
			MedicationID: med.ID,
			ScheduleID:   sched.ID,
			Dosage:       sched.Dosage,
			DosageUnit:   med.DosageUnit,
		},
		Sound:             true,
		InterruptionLevel: s.interruptionLevel(ctx, med.ID),
	}
}

func (s *Scheduler) groupContent(ctx context.Context, timeOfDay string, members []ScheduleItem) notify.Content {
	payload := model.GroupedReminder{Time: timeOfDay}
	names := make([]string, 0, len(members))
	level := notify.InterruptionActive

	for _, m := range members {
		payload.MedicationIDs = append(payload.MedicationIDs, m.Medication.ID)
		payload.ScheduleIDs = append(payload.ScheduleIDs, m.Schedule.ID)
		names = append(names, m.Medication.Name)
		level = maxInterruption(level, s.interruptionLevel(ctx, m.Medication.ID))
	}

	return notify.Content{
		Title:             fmt.Sprintf("Time for %d Medications", len(members)),
		Body:              strings.Join(names, ", "),
		Payload:           payload,
		Sound:             true,
		InterruptionLevel: level,
	}
}

func (s *Scheduler) interruptionLevel(ctx context.Context, medicationID string) string {
	if s.settings == nil {
		return notify.InterruptionActive
	}

	settings, err := s.settings.GetEffectiveSettings(ctx, medicationID)
	if err != nil {
		s.logger.Debug("settings unavailable, using active interruption level",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return notify.InterruptionActive
	}

	switch {
	case settings.CriticalAlertsEnabled:
		return notify.InterruptionCritical
	case settings.TimeSensitiveEnabled:
		return notify.InterruptionTimeSensitive
	default:
		return notify.InterruptionActive
	}
}

var interruptionRank = map[string]int{
	notify.InterruptionActive:        0,
	notify.InterruptionTimeSensitive: 1,
	notify.InterruptionCritical:      2,
}

func maxInterruption(a, b string) string {
	if interruptionRank[b] > interruptionRank[a] {
		return b
	}
	return a
}

func doseLine(med *model.Medication, quantity float64) string {
	q := formatAmount(quantity)
	if med.DosageAmount > 0 {
		return fmt.Sprintf("Take %s × %s%s", q, formatAmount(med.DosageAmount), med.DosageUnit)
	}
	if med.DosageUnit != "" {
		return fmt.Sprintf("Take %s %s", q, med.DosageUnit)
	}
	return "Take " + q
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
