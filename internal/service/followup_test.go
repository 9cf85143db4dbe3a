package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

func primary(id string, payload model.Payload) notify.Scheduled {
	return notify.Scheduled{
		ID:      id,
		Content: notify.Content{Title: "Time for Aspirin", Body: "Take 1 × 100mg", Payload: payload},
		Trigger: testNow,
	}
}

func TestFollowUpKeys(t *testing.T) {
	assert.Equal(t, "med-1:sched-1", FollowUpKey(model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}))
	assert.Equal(t, "multi:08:00", FollowUpKey(model.GroupedReminder{Time: "08:00"}))
	assert.Equal(t, "", FollowUpKey(model.DailyCheckin{Date: "2026-05-02"}))
}

func TestOnPrimaryReceived_SchedulesFollowUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}

	require.True(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))

	id, ok := h.followUps.Pending("med-1:sched-1")
	require.True(t, ok)
	followUp, ok := h.notifier.Get(id)
	require.True(t, ok)

	assert.Equal(t, testNow.Add(30*time.Minute), followUp.Trigger)
	assert.Equal(t, "Did you take it? Take 1 × 100mg", followUp.Content.Body)
	assert.Equal(t, "Time for Aspirin", followUp.Content.Title)
	assert.True(t, model.IsFollowUp(followUp.Content.Payload))
	assert.Equal(t, 0, h.mappings.count(), "follow-ups are never mapped")
}

func TestOnPrimaryReceived_OnePerKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}

	require.True(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))
	first, _ := h.followUps.Pending("med-1:sched-1")

	require.True(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))
	second, _ := h.followUps.Pending("med-1:sched-1")

	assert.NotEqual(t, first, second)
	assert.Contains(t, h.notifier.Cancelled, first)
	assert.Equal(t, 1, h.followUps.PendingCount())
	assert.Equal(t, 1, h.notifier.PendingCount())
}

func TestOnPrimaryReceived_Skips(t *testing.T) {
	ctx := context.Background()

	t.Run("follow-up is not followed up", func(t *testing.T) {
		h := newHarness(t)
		payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1", IsFollowUp: true}
		assert.False(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))
		assert.Equal(t, 0, h.notifier.RequestCount())
	})

	t.Run("daily check-in", func(t *testing.T) {
		h := newHarness(t)
		assert.False(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", model.DailyCheckin{Date: "2026-05-02"})))
	})

	t.Run("no payload", func(t *testing.T) {
		h := newHarness(t)
		assert.False(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", nil)))
	})

	t.Run("follow-ups disabled", func(t *testing.T) {
		h := newHarness(t)
		h.settings.byMed["med-1"] = model.NotificationSettings{FollowUpEnabled: false, FollowUpDelay: 30 * time.Minute}
		payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}
		assert.False(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))
	})

	t.Run("settings unavailable", func(t *testing.T) {
		h := newHarness(t)
		h.settings.err = errors.New("settings table missing")
		payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}
		assert.False(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))
	})

	t.Run("scheduling fails", func(t *testing.T) {
		h := newHarness(t)
		h.notifier.ScheduleErr = func(notify.Request) error { return errors.New("limit reached") }
		payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}
		assert.False(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))
		assert.Equal(t, 0, h.followUps.PendingCount())
	})
}

func TestOnPrimaryReceived_GroupUsesLongestDelay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.settings.byMed["med-a"] = model.NotificationSettings{FollowUpEnabled: true, FollowUpDelay: 15 * time.Minute}
	h.settings.byMed["med-b"] = model.NotificationSettings{FollowUpEnabled: true, FollowUpDelay: 45 * time.Minute}
	h.settings.byMed["med-c"] = model.NotificationSettings{FollowUpEnabled: false, FollowUpDelay: 90 * time.Minute}

	payload := model.GroupedReminder{
		MedicationIDs: []string{"med-a", "med-b", "med-c"},
		ScheduleIDs:   []string{"sched-a", "sched-b", "sched-c"},
		Time:          "08:00",
	}
	require.True(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))

	id, ok := h.followUps.Pending("multi:08:00")
	require.True(t, ok)
	followUp, _ := h.notifier.Get(id)
	assert.Equal(t, testNow.Add(45*time.Minute), followUp.Trigger)

	grouped, ok := followUp.Content.Payload.(model.GroupedReminder)
	require.True(t, ok)
	assert.True(t, grouped.IsFollowUp)
	assert.Equal(t, payload.MedicationIDs, grouped.MedicationIDs)
}

func TestOnPrimaryReceived_GroupAllDisabled(t *testing.T) {
	h := newHarness(t)
	h.settings.fallback = model.NotificationSettings{}

	payload := model.GroupedReminder{
		MedicationIDs: []string{"med-a", "med-b"},
		ScheduleIDs:   []string{"sched-a", "sched-b"},
		Time:          "08:00",
	}
	assert.False(t, h.followUps.OnPrimaryReceived(context.Background(), primary("n-1", payload)))
	assert.Equal(t, 0, h.notifier.RequestCount())
}

func TestFollowUpCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}

	require.True(t, h.followUps.OnPrimaryReceived(ctx, primary("n-1", payload)))
	id, _ := h.followUps.Pending("med-1:sched-1")

	// already fired and gone from the notifier
	h.notifier.Drop(id)
	h.followUps.Cancel(ctx, "med-1:sched-1")

	assert.Equal(t, 0, h.followUps.PendingCount())

	// unknown keys are ignored
	h.followUps.Cancel(ctx, "unknown")
	assert.Equal(t, []string{id}, h.notifier.Cancelled)
}

func TestFollowUp_TakeNowSettlesIt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addMedication(medication("med-1", "Aspirin", schedule("sched-1", "08:00", "UTC")))

	n := primary("n-1", model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"})
	h.engine.NotificationReceived(ctx, n)
	require.Equal(t, 1, h.followUps.PendingCount())

	h.engine.HandleResponse(ctx, Response{ActionID: ActionTakeNow, Notification: n})

	assert.Equal(t, 0, h.followUps.PendingCount())
	assert.Equal(t, 0, h.notifier.PendingCount())
	assert.Equal(t, 1, h.doses.count())
}

// gatedNotifier holds Schedule calls until release is closed
type gatedNotifier struct {
	*notify.MockNotifier
	entered chan struct{}
	release chan struct{}
}

func (g *gatedNotifier) Schedule(ctx context.Context, req notify.Request) (string, error) {
	close(g.entered)
	<-g.release
	return g.MockNotifier.Schedule(ctx, req)
}

func TestCancel_WaitsForFollowUpBeingScheduled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	notifier := &gatedNotifier{
		MockNotifier: notify.NewMockNotifier(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	followUps := NewFollowUpEngine(notifier, h.settings, h.clock, nil, zap.NewNop())
	payload := model.SingleReminder{MedicationID: "med-1", ScheduleID: "sched-1"}

	scheduled := make(chan bool)
	go func() { scheduled <- followUps.OnPrimaryReceived(ctx, primary("n-1", payload)) }()
	<-notifier.entered

	cancelled := make(chan struct{})
	go func() {
		followUps.Cancel(ctx, "med-1:sched-1")
		close(cancelled)
	}()

	select {
	case <-cancelled:
		t.Fatal("cancel finished while the follow-up was still being scheduled")
	case <-time.After(50 * time.Millisecond):
	}

	close(notifier.release)
	require.True(t, <-scheduled)
	<-cancelled

	assert.Equal(t, 0, followUps.PendingCount())
	assert.Equal(t, 0, notifier.PendingCount())
}
