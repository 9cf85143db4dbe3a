package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ErrValidation marks errors caused by invalid input
var ErrValidation = errors.New("validation failed")

// MedicationService handles medication management and keeps reminders in
// step with every mutation
type MedicationService struct {
	repo   MedicationWriter
	ops    NotificationOperations
	days   DayStatusStore
	// timezone decides "today" for day statuses logged without a date
	timezone string
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewMedicationService creates a new MedicationService
func NewMedicationService(repo MedicationWriter, ops NotificationOperations, days DayStatusStore, checkinTimezone string, clock clockwork.Clock, logger *zap.Logger) *MedicationService {
	if checkinTimezone == "" {
		checkinTimezone = "UTC"
	}
	return &MedicationService{
		repo:     repo,
		ops:      ops,
		days:     days,
		timezone: checkinTimezone,
		clock:    clock,
		logger:   logger,
	}
}

func validateSchedule(s *model.Schedule) error {
	if _, _, err := model.ParseTimeOfDay(s.Time); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if s.Timezone == "" {
		return fmt.Errorf("%w: schedule timezone is required", ErrValidation)
	}
	if _, err := model.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if s.Dosage < 0 {
		return fmt.Errorf("%w: schedule dosage must not be negative", ErrValidation)
	}
	return nil
}

// AddMedication creates a medication with its schedules and schedules its
// reminders
func (s *MedicationService) AddMedication(ctx context.Context, med *model.Medication) error {
	if med.Name == "" {
		return fmt.Errorf("%w: medication name is required", ErrValidation)
	}
	switch med.Category {
	case "":
		med.Category = model.CategoryOther
	case model.CategoryPreventative, model.CategoryRescue, model.CategoryOther:
	default:
		return fmt.Errorf("%w: invalid medication category: %s", ErrValidation, med.Category)
	}

	if med.ID == "" {
		med.ID = uuid.New().String()
	}
	if med.DefaultQuantity == 0 {
		med.DefaultQuantity = 1
	}
	med.Active = true

	for i := range med.Schedules {
		sched := &med.Schedules[i]
		if err := validateSchedule(sched); err != nil {
			return fmt.Errorf("invalid schedule %d: %w", i, err)
		}
		if sched.ID == "" {
			sched.ID = uuid.New().String()
		}
		sched.MedicationID = med.ID
	}

	now := s.clock.Now()
	med.CreatedAt = now
	med.UpdatedAt = now

	if err := s.repo.Create(ctx, med); err != nil {
		s.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("medication_name", med.Name),
		)
		return fmt.Errorf("failed to add medication: %w", err)
	}

	s.logger.Info("medication added successfully",
		zap.String("medication_id", med.ID),
		zap.String("name", med.Name),
		zap.Int("schedules", len(med.Schedules)),
	)

	times := enabledTimes(med)
	if len(times) == 0 {
		return nil
	}
	return s.scheduleMedication(ctx, med, times)
}

// GetMedication returns a medication by ID
func (s *MedicationService) GetMedication(ctx context.Context, medicationID string) (*model.Medication, error) {
	med, err := s.repo.GetByID(ctx, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	if med == nil {
		return nil, fmt.Errorf("%w: %s", ErrMedicationNotFound, medicationID)
	}
	return med, nil
}

// ListActive returns every active medication
func (s *MedicationService) ListActive(ctx context.Context) ([]model.Medication, error) {
	meds, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

// UpdateSchedule changes an existing schedule and rebuilds the
// medication's reminders
func (s *MedicationService) UpdateSchedule(ctx context.Context, sched *model.Schedule) error {
	if err := validateSchedule(sched); err != nil {
		return err
	}

	med, err := s.GetMedication(ctx, sched.MedicationID)
	if err != nil {
		return err
	}
	previous := med.FindSchedule(sched.ID)
	if previous == nil {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, sched.ID)
	}
	oldTime := previous.Time
	oldEnabled := previous.Enabled

	if err := s.repo.UpdateSchedule(ctx, sched); err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	*previous = *sched

	s.logger.Info("schedule updated",
		zap.String("medication_id", med.ID),
		zap.String("schedule_id", sched.ID),
		zap.String("time", sched.Time),
		zap.String("timezone", sched.Timezone),
		zap.Bool("enabled", sched.Enabled),
	)

	var affected []string
	if oldEnabled {
		affected = append(affected, oldTime)
	}
	return s.rebuild(ctx, med, affected)
}

// AddSchedule adds a schedule to a medication and rebuilds its reminders
func (s *MedicationService) AddSchedule(ctx context.Context, sched *model.Schedule) error {
	if err := validateSchedule(sched); err != nil {
		return err
	}

	med, err := s.GetMedication(ctx, sched.MedicationID)
	if err != nil {
		return err
	}
	if sched.ID == "" {
		sched.ID = uuid.New().String()
	}

	if err := s.repo.AddSchedule(ctx, sched); err != nil {
		return fmt.Errorf("failed to add schedule: %w", err)
	}
	med.Schedules = append(med.Schedules, *sched)

	s.logger.Info("schedule added",
		zap.String("medication_id", med.ID),
		zap.String("schedule_id", sched.ID),
		zap.String("time", sched.Time),
	)

	return s.rebuild(ctx, med, nil)
}

// ArchiveMedication deactivates a medication and withdraws its reminders.
// Nothing is rescheduled.
func (s *MedicationService) ArchiveMedication(ctx context.Context, medicationID string) error {
	if err := s.repo.SetActive(ctx, medicationID, false); err != nil {
		return fmt.Errorf("failed to archive medication: %w", err)
	}

	if err := s.ops.CancelForMedication(ctx, medicationID); err != nil {
		s.logger.Error("failed to withdraw reminders of archived medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to withdraw reminders: %w", err)
	}

	s.logger.Info("medication archived", zap.String("medication_id", medicationID))
	return nil
}

// LogStatus records the day status for date. An empty date means today in
// timezone, or in the check-in timezone when timezone is empty too.
func (s *MedicationService) LogStatus(ctx context.Context, date, status string, notes *string, timezone string) (*model.DailyStatus, error) {
	if status == "" {
		return nil, fmt.Errorf("%w: status is required", ErrValidation)
	}
	if timezone == "" {
		timezone = s.timezone
	}
	if date == "" {
		today, err := model.LocalDate(s.clock.Now(), timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		date = today
	} else if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, date)
	}

	entry := &model.DailyStatus{
		Date:      date,
		Status:    status,
		Notes:     notes,
		CreatedAt: s.clock.Now(),
	}
	if err := s.days.LogStatus(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to log status: %w", err)
	}

	s.logger.Info("day status logged", zap.String("date", date), zap.String("status", status))
	return entry, nil
}

// rebuild withdraws a medication's reminders and schedules them again.
// When a touched time slot is shared with another medication the whole
// slot's group changes, so everything is rescheduled.
func (s *MedicationService) rebuild(ctx context.Context, med *model.Medication, extraTimes []string) error {
	if err := s.ops.CancelForMedication(ctx, med.ID); err != nil {
		return fmt.Errorf("failed to withdraw reminders: %w", err)
	}

	times := append(enabledTimes(med), extraTimes...)
	if len(times) == 0 {
		return nil
	}
	return s.scheduleMedication(ctx, med, times)
}

func (s *MedicationService) scheduleMedication(ctx context.Context, med *model.Medication, times []string) error {
	shared, err := s.sharesSlot(ctx, med.ID, times)
	if err != nil {
		return err
	}

	if shared {
		s.logger.Info("time slot shared with another medication, rescheduling everything",
			zap.String("medication_id", med.ID),
		)
		if err := s.ops.RescheduleAll(ctx); err != nil {
			return fmt.Errorf("failed to reschedule reminders: %w", err)
		}
		return nil
	}

	if !med.Active {
		return nil
	}

	var items []ScheduleItem
	for i := range med.Schedules {
		if med.Schedules[i].Enabled {
			items = append(items, ScheduleItem{Medication: med, Schedule: &med.Schedules[i]})
		}
	}
	s.ops.ScheduleGroupedForDays(ctx, items, s.ops.ForwardDays())
	return nil
}

// sharesSlot reports whether another active medication has an enabled
// schedule at one of times
func (s *MedicationService) sharesSlot(ctx context.Context, medicationID string, times []string) (bool, error) {
	wanted := make(map[string]bool, len(times))
	for _, t := range times {
		wanted[t] = true
	}

	meds, err := s.repo.GetActive(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load active medications: %w", err)
	}

	for _, other := range meds {
		if other.ID == medicationID {
			continue
		}
		for _, sched := range other.Schedules {
			if sched.Enabled && wanted[sched.Time] {
				return true, nil
			}
		}
	}
	return false, nil
}

func enabledTimes(med *model.Medication) []string {
	var times []string
	for _, sched := range med.Schedules {
		if sched.Enabled {
			times = append(times, sched.Time)
		}
	}
	return times
}
