package model

import (
	"encoding/json"
	"fmt"
)

// Notification categories. Each category registers its own action buttons.
const (
	CategoryMedicationReminder         = "MEDICATION_REMINDER"
	CategoryMultipleMedicationReminder = "MULTIPLE_MEDICATION_REMINDER"
	CategoryDailyCheckin               = "DAILY_CHECKIN"
)

// PayloadType discriminates the payload union on the wire
type PayloadType string

const (
	PayloadSingle       PayloadType = "medication_reminder"
	PayloadGrouped      PayloadType = "multiple_medication_reminder"
	PayloadDailyCheckin PayloadType = "daily_checkin"
)

// Payload is the data carried by a scheduled notification. It is a closed
// union of SingleReminder, GroupedReminder and DailyCheckin.
type Payload interface {
	Type() PayloadType
	Category() string
	payload()
}

// SingleReminder reminds about one medication schedule
type SingleReminder struct {
	MedicationID string  `json:"medicationId"`
	ScheduleID   string  `json:"scheduleId"`
	Dosage       float64 `json:"dosage,omitempty"`
	DosageUnit   string  `json:"dosageUnit,omitempty"`
	IsFollowUp   bool    `json:"isFollowUp,omitempty"`
	Snoozed      bool    `json:"snoozed,omitempty"`
}

func (SingleReminder) Type() PayloadType { return PayloadSingle }
func (SingleReminder) Category() string  { return CategoryMedicationReminder }
func (SingleReminder) payload()          {}

// GroupedReminder reminds about several medications sharing one time of
// day. MedicationIDs and ScheduleIDs are index-aligned.
type GroupedReminder struct {
	MedicationIDs []string `json:"medicationIds"`
	ScheduleIDs   []string `json:"scheduleIds"`
	Time          string   `json:"time"`
	IsFollowUp    bool     `json:"isFollowUp,omitempty"`
	Snoozed       bool     `json:"snoozed,omitempty"`
}

func (GroupedReminder) Type() PayloadType { return PayloadGrouped }
func (GroupedReminder) Category() string  { return CategoryMultipleMedicationReminder }
func (GroupedReminder) payload()          {}

// DailyCheckin prompts for a day status on Date
type DailyCheckin struct {
	Date string `json:"date"`
}

func (DailyCheckin) Type() PayloadType { return PayloadDailyCheckin }
func (DailyCheckin) Category() string  { return CategoryDailyCheckin }
func (DailyCheckin) payload()          {}

// IsFollowUp reports whether p is a follow-up medication reminder
func IsFollowUp(p Payload) bool {
	switch v := p.(type) {
	case SingleReminder:
		return v.IsFollowUp
	case GroupedReminder:
		return v.IsFollowUp
	}
	return false
}

// IsTransient reports whether p belongs to a notification that is never
// tracked by a mapping (snoozes and follow-ups)
func IsTransient(p Payload) bool {
	switch v := p.(type) {
	case SingleReminder:
		return v.IsFollowUp || v.Snoozed
	case GroupedReminder:
		return v.IsFollowUp || v.Snoozed
	}
	return false
}

// AsFollowUp returns a copy of p flagged as a follow-up. Daily check-ins
// are returned unchanged.
func AsFollowUp(p Payload) Payload {
	switch v := p.(type) {
	case SingleReminder:
		v.IsFollowUp = true
		return v
	case GroupedReminder:
		v.IsFollowUp = true
		v.MedicationIDs = append([]string(nil), v.MedicationIDs...)
		v.ScheduleIDs = append([]string(nil), v.ScheduleIDs...)
		return v
	}
	return p
}

type envelope struct {
	Type PayloadType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes a payload with its type discriminator
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is nil")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return json.Marshal(envelope{Type: p.Type(), Data: data})
}

// DecodePayload parses a payload produced by EncodePayload
func DecodePayload(b []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to decode payload envelope: %w", err)
	}

	switch env.Type {
	case PayloadSingle:
		var p SingleReminder
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode single reminder: %w", err)
		}
		return p, nil
	case PayloadGrouped:
		var p GroupedReminder
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode grouped reminder: %w", err)
		}
		if len(p.MedicationIDs) != len(p.ScheduleIDs) {
			return nil, fmt.Errorf("grouped reminder has %d medications but %d schedules",
				len(p.MedicationIDs), len(p.ScheduleIDs))
		}
		return p, nil
	case PayloadDailyCheckin:
		var p DailyCheckin
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode daily check-in: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payload type: %q", env.Type)
	}
}
