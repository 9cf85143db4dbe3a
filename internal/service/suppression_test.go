package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

func TestDecide_SingleReminder(t *testing.T) {
	tests := []struct {
		name       string
		logged     bool
		isFollowUp bool
		wantShown  bool
	}{
		{name: "not logged shows", logged: false, wantShown: true},
		{name: "logged suppresses", logged: true, wantShown: false},
		{name: "follow-up not logged shows", logged: false, isFollowUp: true, wantShown: true},
		{name: "follow-up logged suppresses", logged: true, isFollowUp: true, wantShown: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addMedication(medication("med-1", "Aspirin", schedule("sched-1", "08:00", "UTC")))
			h.doses.setLogged("med-1", "sched-1", tt.logged)

			decision := h.oracle.Decide(context.Background(), model.SingleReminder{
				MedicationID: "med-1",
				ScheduleID:   "sched-1",
				IsFollowUp:   tt.isFollowUp,
			})

			assert.Equal(t, tt.wantShown, decision.Shown())
			assert.Empty(t, h.notifier.Alerts)
			assert.Empty(t, h.reporter.entries)
		})
	}
}

func TestDecide_SingleReminderAfterTakeNow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addMedication(medication("med-1", "Aspirin", schedule("sched-1", "08:00", "UTC")))

	payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}
	assert.True(t, h.oracle.Decide(ctx, payload).Shown())

	assert.NoError(t, h.actions.TakeNow(ctx, "med-1", "sched-1"))
	assert.False(t, h.oracle.Decide(ctx, payload).Shown())
}

func TestDecide_SingleReminderFailsTowardsShowing(t *testing.T) {
	t.Run("medication lookup error", func(t *testing.T) {
		h := newHarness(t)
		h.meds.err = errLookup

		decision := h.oracle.Decide(context.Background(), model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"})

		assert.True(t, decision.Shown())
		assert.Len(t, h.notifier.Alerts, 1)
		assert.Equal(t, []errorlog.Category{errorlog.CategoryTransient}, h.reporter.categories())
		assert.Equal(t, errLookup.Error(), h.reporter.entries[0].Context["error"])
	})

	t.Run("dose lookup error", func(t *testing.T) {
		h := newHarness(t)
		h.addMedication(medication("med-1", "Aspirin", schedule("sched-1", "08:00", "UTC")))
		h.doses.failFor[SingleFollowUpKey("med-1", "sched-1")] = true

		decision := h.oracle.Decide(context.Background(), model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"})

		assert.True(t, decision.Shown())
		assert.Len(t, h.notifier.Alerts, 1)
		assert.Equal(t, []errorlog.Category{errorlog.CategoryTransient}, h.reporter.categories())
	})

	t.Run("missing medication", func(t *testing.T) {
		h := newHarness(t)

		decision := h.oracle.Decide(context.Background(), model.SingleReminder{MedicationID: "deleted", ScheduleID: "sched-1"})

		assert.True(t, decision.Shown())
		assert.Equal(t, []string{alertDataProblemTitle + ": " + alertDataProblemBody}, h.notifier.Alerts)
		assert.Equal(t, []errorlog.Category{errorlog.CategoryDataIntegrity}, h.reporter.categories())
		assert.Equal(t, errorlog.SeverityHigh, h.reporter.entries[0].Severity)
	})

	t.Run("missing schedule", func(t *testing.T) {
		h := newHarness(t)
		h.addMedication(medication("med-1", "Aspirin", schedule("sched-2", "20:00", "UTC")))

		decision := h.oracle.Decide(context.Background(), model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"})

		assert.True(t, decision.Shown())
		assert.Len(t, h.notifier.Alerts, 1)
		assert.Equal(t, []errorlog.Category{errorlog.CategoryDataIntegrity}, h.reporter.categories())
		assert.Equal(t, 1, h.reporter.entries[0].Context["schedule_count"])
	})
}

func TestDecide_GroupedReminder(t *testing.T) {
	ctx := context.Background()
	payload := model.GroupedReminder{
		MedicationIDs: []string{"med-a", "med-b"},
		ScheduleIDs:   []string{"sched-a", "sched-b"},
		Time:          "08:00",
	}

	h := newHarness(t)
	h.addMedication(medication("med-a", "Aspirin", schedule("sched-a", "08:00", "UTC")))
	h.addMedication(medication("med-b", "Metformin", schedule("sched-b", "08:00", "UTC")))

	h.doses.setLogged("med-a", "sched-a", true)
	h.doses.setLogged("med-b", "sched-b", true)
	assert.False(t, h.oracle.Decide(ctx, payload).Shown(), "every member logged")

	h.doses.setLogged("med-b", "sched-b", false)
	assert.True(t, h.oracle.Decide(ctx, payload).Shown(), "one member still open")

	h.doses.setLogged("med-a", "sched-a", false)
	assert.True(t, h.oracle.Decide(ctx, payload).Shown(), "no member logged")

	assert.Empty(t, h.notifier.Alerts)
}

func TestDecide_GroupedReminderEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("member lookup error counts as not logged", func(t *testing.T) {
		h := newHarness(t)
		h.addMedication(medication("med-a", "Aspirin", schedule("sched-a", "08:00", "UTC")))
		h.addMedication(medication("med-b", "Metformin", schedule("sched-b", "08:00", "UTC")))
		h.doses.setLogged("med-a", "sched-a", true)
		h.doses.failFor[SingleFollowUpKey("med-b", "sched-b")] = true

		decision := h.oracle.Decide(ctx, model.GroupedReminder{
			MedicationIDs: []string{"med-a", "med-b"},
			ScheduleIDs:   []string{"sched-a", "sched-b"},
			Time:          "08:00",
		})

		assert.True(t, decision.Shown())
		assert.Equal(t, []errorlog.Category{errorlog.CategoryTransient}, h.reporter.categories())
		assert.Equal(t, []string{alertLookupTitle + ": " + alertLookupBody}, h.notifier.Alerts)
	})

	t.Run("medication lookup error alerts once per group", func(t *testing.T) {
		h := newHarness(t)
		h.meds.err = errLookup

		decision := h.oracle.Decide(ctx, model.GroupedReminder{
			MedicationIDs: []string{"med-a", "med-b"},
			ScheduleIDs:   []string{"sched-a", "sched-b"},
			Time:          "08:00",
		})

		assert.True(t, decision.Shown())
		assert.Equal(t, []string{alertLookupTitle + ": " + alertLookupBody}, h.notifier.Alerts)
		assert.Len(t, h.reporter.categories(), 2)
	})

	t.Run("missing member is excluded and alerted", func(t *testing.T) {
		h := newHarness(t)
		h.addMedication(medication("med-a", "Aspirin", schedule("sched-a", "08:00", "UTC")))
		h.doses.setLogged("med-a", "sched-a", true)

		decision := h.oracle.Decide(ctx, model.GroupedReminder{
			MedicationIDs: []string{"med-a", "deleted"},
			ScheduleIDs:   []string{"sched-a", "sched-x"},
			Time:          "08:00",
		})

		assert.False(t, decision.Shown(), "remaining member is logged")
		assert.Len(t, h.notifier.Alerts, 1)
		assert.Equal(t, []errorlog.Category{errorlog.CategoryDataIntegrity}, h.reporter.categories())
	})

	t.Run("mismatched member lists use the shorter one", func(t *testing.T) {
		h := newHarness(t)
		h.addMedication(medication("med-a", "Aspirin", schedule("sched-a", "08:00", "UTC")))
		h.doses.setLogged("med-a", "sched-a", true)

		decision := h.oracle.Decide(ctx, model.GroupedReminder{
			MedicationIDs: []string{"med-a", "med-b"},
			ScheduleIDs:   []string{"sched-a"},
			Time:          "08:00",
		})

		assert.False(t, decision.Shown())
	})

	t.Run("follow-up uses the same rule", func(t *testing.T) {
		h := newHarness(t)
		h.addMedication(medication("med-a", "Aspirin", schedule("sched-a", "08:00", "UTC")))

		decision := h.oracle.Decide(ctx, model.GroupedReminder{
			MedicationIDs: []string{"med-a"},
			ScheduleIDs:   []string{"sched-a"},
			Time:          "08:00",
			IsFollowUp:    true,
		})

		assert.True(t, decision.Shown())
	})
}

func TestDecide_DailyCheckin(t *testing.T) {
	ctx := context.Background()
	payload := model.DailyCheckin{Date: "2026-05-02"}

	t.Run("nothing logged shows", func(t *testing.T) {
		h := newHarness(t)
		assert.True(t, h.oracle.Decide(ctx, payload).Shown())
	})

	t.Run("status logged suppresses", func(t *testing.T) {
		h := newHarness(t)
		h.days.statuses["2026-05-02"] = true
		assert.False(t, h.oracle.Decide(ctx, payload).Shown())
	})

	t.Run("episode on the date suppresses", func(t *testing.T) {
		h := newHarness(t)
		h.days.episodes["2026-05-02"] = true
		assert.False(t, h.oracle.Decide(ctx, payload).Shown())
	})

	t.Run("status on another date does not count", func(t *testing.T) {
		h := newHarness(t)
		h.days.statuses["2026-05-01"] = true
		assert.True(t, h.oracle.Decide(ctx, payload).Shown())
	})

	t.Run("lookup error fails towards staying quiet", func(t *testing.T) {
		h := newHarness(t)
		h.days.err = errors.New("connection reset")

		assert.False(t, h.oracle.Decide(ctx, payload).Shown())
		assert.Empty(t, h.notifier.Alerts)
		assert.Equal(t, []errorlog.Category{errorlog.CategoryTransient}, h.reporter.categories())
	})
}

func TestDecide_NilPayloadShows(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.oracle.Decide(context.Background(), nil).Shown())
}
