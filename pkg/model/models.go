package model

import "time"

// MedicationCategory classifies how a medication is used
type MedicationCategory string

const (
	CategoryPreventative MedicationCategory = "preventative"
	CategoryRescue       MedicationCategory = "rescue"
	CategoryOther        MedicationCategory = "other"
)

// Medication represents a medication and its reminder schedules
type Medication struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Category        MedicationCategory `json:"category"`
	DosageAmount    float64            `json:"dosage_amount"`
	DosageUnit      string             `json:"dosage_unit"`
	DefaultQuantity float64            `json:"default_quantity"`
	Active          bool               `json:"active"`
	Schedules       []Schedule         `json:"schedules,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// FindSchedule returns the schedule with the given ID, or nil when the
// medication no longer carries it
func (m *Medication) FindSchedule(scheduleID string) *Schedule {
	for i := range m.Schedules {
		if m.Schedules[i].ID == scheduleID {
			return &m.Schedules[i]
		}
	}
	return nil
}

// Schedule is a recurring daily time-of-day reminder for one medication.
// Time is medication-local wall clock ("HH:MM") in Timezone.
type Schedule struct {
	ID           string  `json:"id"`
	MedicationID string  `json:"medication_id"`
	Time         string  `json:"time"`
	Timezone     string  `json:"timezone"`
	Dosage       float64 `json:"dosage"`
	Enabled      bool    `json:"enabled"`
}

// DoseStatus records whether a dose was taken or skipped
type DoseStatus string

const (
	DoseStatusTaken   DoseStatus = "taken"
	DoseStatusSkipped DoseStatus = "skipped"
)

// Dose is an append-only dose log entry. Timestamp is an absolute
// instant in epoch milliseconds.
type Dose struct {
	ID           string     `json:"id"`
	MedicationID string     `json:"medication_id"`
	ScheduleID   *string    `json:"schedule_id,omitempty"`
	Timestamp    int64      `json:"timestamp"`
	Quantity     float64    `json:"quantity"`
	Status       DoseStatus `json:"status"`
	Notes        *string    `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NotificationKind is the kind of notification a mapping tracks
type NotificationKind string

const (
	KindReminder     NotificationKind = "reminder"
	KindFollowUp     NotificationKind = "follow_up"
	KindDailyCheckin NotificationKind = "daily_checkin"
)

// MappingSource identifies which subsystem created a mapping
type MappingSource string

const (
	SourceMedication   MappingSource = "medication"
	SourceDailyCheckin MappingSource = "daily_checkin"
)

// NotificationMapping correlates a scheduled notification identifier with
// the medication, schedule and medication-local date it stands for.
// MedicationID and ScheduleID are nil for daily check-in mappings.
type NotificationMapping struct {
	ID             string           `json:"id"`
	MedicationID   *string          `json:"medication_id,omitempty"`
	ScheduleID     *string          `json:"schedule_id,omitempty"`
	Date           string           `json:"date"`
	NotificationID string           `json:"notification_id"`
	Kind           NotificationKind `json:"kind"`
	IsGrouped      bool             `json:"is_grouped"`
	GroupKey       *string          `json:"group_key,omitempty"`
	SourceType     MappingSource    `json:"source_type"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NotificationSettings holds the effective notification preferences for
// a medication. A disabled follow-up is the "off" sentinel.
type NotificationSettings struct {
	FollowUpEnabled       bool          `json:"follow_up_enabled"`
	FollowUpDelay         time.Duration `json:"follow_up_delay"`
	CriticalAlertsEnabled bool          `json:"critical_alerts_enabled"`
	TimeSensitiveEnabled  bool          `json:"time_sensitive_enabled"`
}

// DailyStatus is a logged day status used by the daily check-in
type DailyStatus struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Episode is a logged symptom episode. EndTime is nil while it is ongoing.
type Episode struct {
	ID        string `json:"id"`
	StartTime int64  `json:"start_time"`
	EndTime   *int64 `json:"end_time,omitempty"`
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// MappingKey identifies the logical slot a mapping occupies. Single
// reminders use MedicationID+ScheduleID, grouped reminders use GroupKey,
// daily check-ins use neither.
type MappingKey struct {
	MedicationID string
	ScheduleID   string
	GroupKey     string
	Date         string
	Kind         NotificationKind
}

// NotificationSettingsOverride holds per-medication settings. Nil fields
// fall back to the global defaults.
type NotificationSettingsOverride struct {
	FollowUpEnabled       *bool `json:"follow_up_enabled,omitempty"`
	FollowUpDelayMinutes  *int  `json:"follow_up_delay_minutes,omitempty"`
	CriticalAlertsEnabled *bool `json:"critical_alerts_enabled,omitempty"`
	TimeSensitiveEnabled  *bool `json:"time_sensitive_enabled,omitempty"`
}
