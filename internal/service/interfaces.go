package service

import (
	"context"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

// MedicationStore resolves medications with their schedules
type MedicationStore interface {
	GetByID(ctx context.Context, medicationID string) (*model.Medication, error)
	GetActive(ctx context.Context) ([]model.Medication, error)
}

// MedicationWriter is the mutable side of the medication repository
type MedicationWriter interface {
	MedicationStore
	Create(ctx context.Context, med *model.Medication) error
	SetActive(ctx context.Context, medicationID string, active bool) error
	AddSchedule(ctx context.Context, s *model.Schedule) error
	UpdateSchedule(ctx context.Context, s *model.Schedule) error
}

// DoseStore appends to and queries the dose log
type DoseStore interface {
	Create(ctx context.Context, dose *model.Dose) (*model.Dose, error)
	WasLoggedForScheduleToday(ctx context.Context, medicationID, scheduleID, timeOfDay, timezone string) (bool, error)
}

// MappingStore persists notification mappings
type MappingStore interface {
	SaveMapping(ctx context.Context, m *model.NotificationMapping) (*model.NotificationMapping, error)
	GetMapping(ctx context.Context, key model.MappingKey) (*model.NotificationMapping, error)
	GetAllMappings(ctx context.Context) ([]model.NotificationMapping, error)
	GetMappingsByMedication(ctx context.Context, medicationID string) ([]model.NotificationMapping, error)
	DeleteMappingsByNotificationID(ctx context.Context, notificationID string) (int64, error)
	DeleteMapping(ctx context.Context, id string) error
	DeleteAllMappings(ctx context.Context) (int64, error)
	TableExists(ctx context.Context) (bool, error)
}

// DayStatusStore answers the daily check-in questions and records day
// statuses
type DayStatusStore interface {
	EpisodeOverlapsDate(ctx context.Context, date string) (bool, error)
	HasStatusForDate(ctx context.Context, date string) (bool, error)
	LogStatus(ctx context.Context, status *model.DailyStatus) error
}

// SettingsProvider resolves effective per-medication notification settings
type SettingsProvider interface {
	GetEffectiveSettings(ctx context.Context, medicationID string) (model.NotificationSettings, error)
}

// ToggleStore persists the global notification switch
type ToggleStore interface {
	NotificationsEnabled(ctx context.Context) (bool, error)
	SetNotificationsEnabled(ctx context.Context, enabled bool) error
}

// UserAlerter surfaces an out-of-band notice to the user
type UserAlerter interface {
	Alert(ctx context.Context, title, body string)
}

// ErrorReporter hands entries to the error log without waiting
type ErrorReporter interface {
	Submit(entry errorlog.Entry)
}

// NotificationOperations is what the medication service needs from the
// scheduler when medications or schedules change
type NotificationOperations interface {
	ScheduleGroupedForDays(ctx context.Context, items []ScheduleItem, dayCount int) int
	CancelForMedication(ctx context.Context, medicationID string) error
	RescheduleAll(ctx context.Context) error
	ForwardDays() int
}
