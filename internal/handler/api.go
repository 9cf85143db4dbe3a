package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

// MedicationService is what the medication endpoints need from the
// service layer
type MedicationService interface {
	AddMedication(ctx context.Context, med *model.Medication) error
	GetMedication(ctx context.Context, medicationID string) (*model.Medication, error)
	ListActive(ctx context.Context) ([]model.Medication, error)
	AddSchedule(ctx context.Context, sched *model.Schedule) error
	UpdateSchedule(ctx context.Context, sched *model.Schedule) error
	ArchiveMedication(ctx context.Context, medicationID string) error
	LogStatus(ctx context.Context, date, status string, notes *string, timezone string) (*model.DailyStatus, error)
}

// SettingsService reads and writes per-medication notification settings
type SettingsService interface {
	GetEffectiveSettings(ctx context.Context, medicationID string) (model.NotificationSettings, error)
	SaveOverride(ctx context.Context, medicationID string, o *model.NotificationSettingsOverride) error
}

// NotificationAdmin controls the scheduled reminder window
type NotificationAdmin interface {
	GetAllScheduled(ctx context.Context) ([]notify.Scheduled, error)
	SetNotificationsEnabled(ctx context.Context, enabled bool) error
	RescheduleAll(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// OrphanReconciler finds and repairs mapping disagreements
type OrphanReconciler interface {
	FindOrphans(ctx context.Context) (*service.OrphanReport, error)
	RepairOrphans(ctx context.Context) (*service.OrphanReport, error)
}

// ResponseHandler accepts user actions on delivered notifications
type ResponseHandler interface {
	HandleResponse(ctx context.Context, resp service.Response)
}

// ErrorLogReader lists recorded engine errors
type ErrorLogReader interface {
	Recent(ctx context.Context, limit int) ([]errorlog.Entry, error)
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// ScheduleRequest describes one schedule of a medication
type ScheduleRequest struct {
	Time     string  `json:"time" binding:"required"`
	Timezone string  `json:"timezone" binding:"required"`
	Dosage   float64 `json:"dosage"`
	Enabled  *bool   `json:"enabled"`
}

func (r ScheduleRequest) toModel(medicationID, scheduleID string) *model.Schedule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	dosage := r.Dosage
	if dosage == 0 {
		dosage = 1
	}
	return &model.Schedule{
		ID:           scheduleID,
		MedicationID: medicationID,
		Time:         r.Time,
		Timezone:     r.Timezone,
		Dosage:       dosage,
		Enabled:      enabled,
	}
}

// CreateMedicationRequest creates a medication with its schedules
type CreateMedicationRequest struct {
	Name            string            `json:"name" binding:"required"`
	Category        string            `json:"category"`
	DosageAmount    float64           `json:"dosage_amount"`
	DosageUnit      string            `json:"dosage_unit"`
	DefaultQuantity float64           `json:"default_quantity"`
	Schedules       []ScheduleRequest `json:"schedules" binding:"dive"`
}

// ToggleRequest switches all notifications on or off
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// DailyStatusRequest logs a day status. An empty date means today in
// Timezone, or in the daily check-in timezone when Timezone is empty.
type DailyStatusRequest struct {
	Date     string  `json:"date"`
	Status   string  `json:"status" binding:"required"`
	Notes    *string `json:"notes"`
	Timezone string  `json:"timezone"`
}

// NotificationResponseRequest reports a user action on a delivered
// notification. Payload is the encoded payload envelope.
type NotificationResponseRequest struct {
	ActionID       string          `json:"action_id" binding:"required"`
	NotificationID string          `json:"notification_id"`
	Payload        json.RawMessage `json:"payload" binding:"required"`
}

// ScheduledNotification is a pending notification with its payload
// encoded
type ScheduledNotification struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Body              string          `json:"body"`
	Category          string          `json:"category"`
	InterruptionLevel string          `json:"interruption_level,omitempty"`
	Trigger           time.Time       `json:"trigger"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

func toScheduledNotification(n notify.Scheduled) ScheduledNotification {
	out := ScheduledNotification{
		ID:                n.ID,
		Title:             n.Content.Title,
		Body:              n.Content.Body,
		Category:          n.Content.Category(),
		InterruptionLevel: n.Content.InterruptionLevel,
		Trigger:           n.Trigger,
	}
	if n.Content.Payload != nil {
		if raw, err := model.EncodePayload(n.Content.Payload); err == nil {
			out.Payload = raw
		}
	}
	return out
}

// OrphanReportResponse is the encoded form of an orphan report
type OrphanReportResponse struct {
	Clean                 bool                        `json:"clean"`
	MappingCount          int                         `json:"mapping_count"`
	ScheduledCount        int                         `json:"scheduled_count"`
	OrphanedMappings      []model.NotificationMapping `json:"orphaned_mappings"`
	UnmappedNotifications []ScheduledNotification     `json:"unmapped_notifications"`
}

func toOrphanReportResponse(r *service.OrphanReport) OrphanReportResponse {
	out := OrphanReportResponse{
		Clean:                 r.Clean(),
		MappingCount:          r.MappingCount,
		ScheduledCount:        r.ScheduledCount,
		OrphanedMappings:      r.OrphanedMappings,
		UnmappedNotifications: make([]ScheduledNotification, 0, len(r.UnmappedNotifications)),
	}
	if out.OrphanedMappings == nil {
		out.OrphanedMappings = []model.NotificationMapping{}
	}
	for _, n := range r.UnmappedNotifications {
		out.UnmappedNotifications = append(out.UnmappedNotifications, toScheduledNotification(n))
	}
	return out
}

// SettingsResponse holds the effective notification settings of a
// medication
type SettingsResponse struct {
	MedicationID          string `json:"medication_id"`
	FollowUpEnabled       bool   `json:"follow_up_enabled"`
	FollowUpDelayMinutes  int    `json:"follow_up_delay_minutes"`
	CriticalAlertsEnabled bool   `json:"critical_alerts_enabled"`
	TimeSensitiveEnabled  bool   `json:"time_sensitive_enabled"`
}

func toSettingsResponse(medicationID string, s model.NotificationSettings) SettingsResponse {
	return SettingsResponse{
		MedicationID:          medicationID,
		FollowUpEnabled:       s.FollowUpEnabled,
		FollowUpDelayMinutes:  int(s.FollowUpDelay / time.Minute),
		CriticalAlertsEnabled: s.CriticalAlertsEnabled,
		TimeSensitiveEnabled:  s.TimeSensitiveEnabled,
	}
}
