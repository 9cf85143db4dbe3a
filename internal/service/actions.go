package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// Notification action identifiers
const (
	ActionTakeNow     = "TAKE_NOW"
	ActionSkip        = "SKIP"
	ActionSnooze      = "SNOOZE_10"
	ActionTakeAllNow  = "TAKE_ALL_NOW"
	ActionRemindLater = "REMIND_LATER"
	ActionDefault     = "DEFAULT"
	ActionLogCheckin  = "LOG_CHECKIN"
)

const skipNote = "Skipped from notification"

var (
	// ErrMedicationNotFound is returned when an action names a medication
	// that does not exist
	ErrMedicationNotFound = errors.New("medication not found")
	// ErrScheduleNotFound is returned when the medication exists but no
	// longer has the schedule
	ErrScheduleNotFound = errors.New("schedule not found")
)

// ActionHandlers respond to user actions on delivered reminders
type ActionHandlers struct {
	medications MedicationStore
	doses       DoseStore
	notifier    notify.Notifier
	clock       clockwork.Clock
	logger      *zap.Logger
}

// NewActionHandlers creates a new ActionHandlers
func NewActionHandlers(medications MedicationStore, doses DoseStore, notifier notify.Notifier, clock clockwork.Clock, logger *zap.Logger) *ActionHandlers {
	return &ActionHandlers{
		medications: medications,
		doses:       doses,
		notifier:    notifier,
		clock:       clock,
		logger:      logger,
	}
}

func (a *ActionHandlers) resolve(ctx context.Context, medicationID, scheduleID string) (*model.Medication, *model.Schedule, error) {
	med, err := a.medications.GetByID(ctx, medicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get medication: %w", err)
	}
	if med == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrMedicationNotFound, medicationID)
	}
	sched := med.FindSchedule(scheduleID)
	if sched == nil {
		return med, nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	return med, sched, nil
}

// TakeNow logs the scheduled dose as taken
func (a *ActionHandlers) TakeNow(ctx context.Context, medicationID, scheduleID string) error {
	med, sched, err := a.resolve(ctx, medicationID, scheduleID)
	if err != nil {
		return err
	}

	_, err = a.doses.Create(ctx, &model.Dose{
		MedicationID: med.ID,
		ScheduleID:   model.StringPtr(sched.ID),
		Timestamp:    a.clock.Now().UnixMilli(),
		Quantity:     sched.Dosage,
		Status:       model.DoseStatusTaken,
	})
	if err != nil {
		return fmt.Errorf("failed to log dose: %w", err)
	}

	a.logger.Info("dose taken from notification",
		zap.String("medication_id", med.ID),
		zap.String("schedule_id", sched.ID),
		zap.Float64("quantity", sched.Dosage),
	)
	return nil
}

// Skip logs the scheduled dose as skipped
func (a *ActionHandlers) Skip(ctx context.Context, medicationID, scheduleID string) error {
	med, sched, err := a.resolve(ctx, medicationID, scheduleID)
	if err != nil {
		return err
	}

	_, err = a.doses.Create(ctx, &model.Dose{
		MedicationID: med.ID,
		ScheduleID:   model.StringPtr(sched.ID),
		Timestamp:    a.clock.Now().UnixMilli(),
		Quantity:     0,
		Status:       model.DoseStatusSkipped,
		Notes:        model.StringPtr(skipNote),
	})
	if err != nil {
		return fmt.Errorf("failed to log skipped dose: %w", err)
	}

	a.logger.Info("dose skipped from notification",
		zap.String("medication_id", med.ID),
		zap.String("schedule_id", sched.ID),
	)
	return nil
}

// Snooze schedules a one-off repeat of a reminder minutes from now. The
// schedule does not have to exist any more. Snoozed reminders are not
// mapped.
func (a *ActionHandlers) Snooze(ctx context.Context, medicationID, scheduleID string, minutes int) (string, error) {
	if minutes <= 0 {
		return "", fmt.Errorf("snooze minutes must be positive")
	}

	med, err := a.medications.GetByID(ctx, medicationID)
	if err != nil {
		return "", fmt.Errorf("failed to get medication: %w", err)
	}
	if med == nil {
		return "", fmt.Errorf("%w: %s", ErrMedicationNotFound, medicationID)
	}

	quantity := med.DefaultQuantity
	if sched := med.FindSchedule(scheduleID); sched != nil {
		quantity = sched.Dosage
	}

	content := notify.Content{
		Title: "Time for " + med.Name,
		Body:  fmt.Sprintf("%s (snoozed for %d min)", doseLine(med, quantity), minutes),
		Payload: model.SingleReminder{
			MedicationID: med.ID,
			ScheduleID:   scheduleID,
			Dosage:       quantity,
			DosageUnit:   med.DosageUnit,
			Snoozed:      true,
		},
		Sound:             true,
		InterruptionLevel: notify.InterruptionActive,
	}

	trigger := a.clock.Now().Add(time.Duration(minutes) * time.Minute)
	id, err := a.notifier.Schedule(ctx, notify.Request{Content: content, Trigger: trigger})
	if err != nil {
		return "", fmt.Errorf("failed to schedule snoozed reminder: %w", err)
	}

	a.logger.Info("reminder snoozed",
		zap.String("medication_id", med.ID),
		zap.String("schedule_id", scheduleID),
		zap.Int("minutes", minutes),
		zap.String("notification_id", id),
	)
	return id, nil
}

// TakeAllNow logs every member of a grouped reminder as taken and returns
// how many doses were logged
func (a *ActionHandlers) TakeAllNow(ctx context.Context, p model.GroupedReminder) int {
	taken := 0
	for i := 0; i < len(p.MedicationIDs) && i < len(p.ScheduleIDs); i++ {
		if err := a.TakeNow(ctx, p.MedicationIDs[i], p.ScheduleIDs[i]); err != nil {
			a.logger.Warn("failed to take group member",
				zap.Error(err),
				zap.String("medication_id", p.MedicationIDs[i]),
				zap.String("schedule_id", p.ScheduleIDs[i]),
				zap.String("group_key", p.Time),
			)
			continue
		}
		taken++
	}
	return taken
}

// RemindLater schedules one grouped repeat of a grouped reminder minutes
// from now, carrying every member whose medication still exists. It
// returns the number of members carried.
func (a *ActionHandlers) RemindLater(ctx context.Context, p model.GroupedReminder, minutes int) (int, error) {
	if minutes <= 0 {
		return 0, fmt.Errorf("remind later minutes must be positive")
	}

	snoozed := model.GroupedReminder{Time: p.Time, Snoozed: true}
	var names []string

	for i := 0; i < len(p.MedicationIDs) && i < len(p.ScheduleIDs); i++ {
		med, err := a.medications.GetByID(ctx, p.MedicationIDs[i])
		if err != nil || med == nil {
			a.logger.Warn("group member not resolvable, leaving it out",
				zap.Error(err),
				zap.String("medication_id", p.MedicationIDs[i]),
				zap.String("group_key", p.Time),
			)
			continue
		}
		snoozed.MedicationIDs = append(snoozed.MedicationIDs, med.ID)
		snoozed.ScheduleIDs = append(snoozed.ScheduleIDs, p.ScheduleIDs[i])
		names = append(names, med.Name)
	}

	if len(names) == 0 {
		return 0, fmt.Errorf("%w: no group member could be resolved", ErrMedicationNotFound)
	}

	content := notify.Content{
		Title:             fmt.Sprintf("Time for %d Medications", len(names)),
		Body:              fmt.Sprintf("%s (snoozed for %d min)", strings.Join(names, ", "), minutes),
		Payload:           snoozed,
		Sound:             true,
		InterruptionLevel: notify.InterruptionActive,
	}

	trigger := a.clock.Now().Add(time.Duration(minutes) * time.Minute)
	id, err := a.notifier.Schedule(ctx, notify.Request{Content: content, Trigger: trigger})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule grouped snooze: %w", err)
	}

	a.logger.Info("grouped reminder snoozed",
		zap.String("group_key", p.Time),
		zap.Int("members", len(names)),
		zap.Int("minutes", minutes),
		zap.String("notification_id", id),
	)
	return len(names), nil
}
