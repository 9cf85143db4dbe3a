package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerInstant(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		time     string
		tz       string
		expected time.Time
	}{
		{
			name:     "utc",
			date:     "2026-03-10",
			time:     "08:00",
			tz:       "UTC",
			expected: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "new york winter",
			date:     "2026-01-15",
			time:     "08:30",
			tz:       "America/New_York",
			expected: time.Date(2026, 1, 15, 13, 30, 0, 0, time.UTC),
		},
		{
			name:     "new york summer",
			date:     "2026-07-15",
			time:     "08:30",
			tz:       "America/New_York",
			expected: time.Date(2026, 7, 15, 12, 30, 0, 0, time.UTC),
		},
		{
			name:     "spring forward gap moves forward",
			date:     "2026-03-08",
			time:     "02:30",
			tz:       "America/New_York",
			expected: time.Date(2026, 3, 8, 7, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TriggerInstant(tt.date, tt.time, tt.tz)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got.UTC())
		})
	}
}

func TestTriggerInstant_InvalidInput(t *testing.T) {
	_, err := TriggerInstant("2026-01-01", "8am", "UTC")
	assert.Error(t, err)

	_, err = TriggerInstant("2026-01-01", "08:00", "Mars/Olympus")
	assert.Error(t, err)

	_, err = TriggerInstant("01/01/2026", "08:00", "UTC")
	assert.Error(t, err)
}

func TestLocalDate_CrossesMidnight(t *testing.T) {
	instant := time.Date(2026, 5, 2, 3, 50, 0, 0, time.UTC)

	utc, err := LocalDate(instant, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-02", utc)

	la, err := LocalDate(instant, "America/Los_Angeles")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-01", la)
}

func TestDayBounds_DSTDayIsShort(t *testing.T) {
	instant := time.Date(2026, 3, 8, 15, 0, 0, 0, time.UTC)
	start, end, err := DayBounds(instant, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour, end.Sub(start))
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2026-02-27", 3)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", got)
}

func TestPayloadEnvelope(t *testing.T) {
	payloads := []Payload{
		SingleReminder{MedicationID: "m1", ScheduleID: "s1", Dosage: 2, DosageUnit: "mg"},
		GroupedReminder{MedicationIDs: []string{"m1", "m2"}, ScheduleIDs: []string{"s1", "s2"}, Time: "08:00", IsFollowUp: true},
		DailyCheckin{Date: "2026-01-01"},
	}

	for _, p := range payloads {
		t.Run(string(p.Type()), func(t *testing.T) {
			b, err := EncodePayload(p)
			require.NoError(t, err)

			decoded, err := DecodePayload(b)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestDecodePayload_Rejects(t *testing.T) {
	_, err := DecodePayload([]byte(`{"type":"weekly","data":{}}`))
	assert.Error(t, err)

	_, err = DecodePayload([]byte(`{"type":"multiple_medication_reminder","data":{"medicationIds":["a"],"scheduleIds":[],"time":"08:00"}}`))
	assert.Error(t, err)
}

func TestAsFollowUp(t *testing.T) {
	orig := GroupedReminder{MedicationIDs: []string{"m1"}, ScheduleIDs: []string{"s1"}, Time: "09:00"}
	fu := AsFollowUp(orig)

	assert.True(t, IsFollowUp(fu))
	assert.False(t, IsFollowUp(orig))
	assert.True(t, IsTransient(fu))
	assert.False(t, IsFollowUp(AsFollowUp(DailyCheckin{Date: "2026-01-01"})))
}

func TestDisplayDecision(t *testing.T) {
	assert.True(t, Show().Shown())
	assert.False(t, Suppress().Shown())
	assert.Equal(t, DisplayDecision{true, true, true, true}, Show())
	assert.Equal(t, DisplayDecision{}, Suppress())
}

func TestMedication_FindSchedule(t *testing.T) {
	med := &Medication{Schedules: []Schedule{{ID: "a"}, {ID: "b", Time: "20:00"}}}
	s := med.FindSchedule("b")
	require.NotNil(t, s)
	assert.Equal(t, "20:00", s.Time)
	assert.Nil(t, med.FindSchedule("c"))
}
