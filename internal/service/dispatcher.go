package service

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/jonboulle/clockwork"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const (
	alertResponseTitle = "Action not recorded"
	alertResponseBody  = "Something went wrong handling that notification. Please try again from the app."

	clearDayStatus = "clear"
)

// Response is a user interaction with a delivered notification
type Response struct {
	ActionID     string           `json:"action_id"`
	Notification notify.Scheduled `json:"notification"`
}

// DispatcherOptions configures the Dispatcher
type DispatcherOptions struct {
	SnoozeMinutes      int
	RemindLaterMinutes int
}

// Dispatcher routes notification responses to the action handlers. It
// never lets a failure escape to the notifier.
type Dispatcher struct {
	actions   *ActionHandlers
	followUps *FollowUpEngine
	days      DayStatusStore
	alerter   UserAlerter
	reporter  ErrorReporter
	opts      DispatcherOptions
	clock     clockwork.Clock
	metrics   *metrics.ReminderMetrics
	logger    *zap.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	actions *ActionHandlers,
	followUps *FollowUpEngine,
	days DayStatusStore,
	alerter UserAlerter,
	reporter ErrorReporter,
	opts DispatcherOptions,
	clock clockwork.Clock,
	m *metrics.ReminderMetrics,
	logger *zap.Logger,
) *Dispatcher {
	if opts.SnoozeMinutes <= 0 {
		opts.SnoozeMinutes = 10
	}
	if opts.RemindLaterMinutes <= 0 {
		opts.RemindLaterMinutes = 10
	}

	return &Dispatcher{
		actions:   actions,
		followUps: followUps,
		days:      days,
		alerter:   alerter,
		reporter:  reporter,
		opts:      opts,
		clock:     clock,
		metrics:   m,
		logger:    logger,
	}
}

// HandleResponse handles a notification response. Errors and panics are
// logged, reported and turned into a user notice.
func (d *Dispatcher) HandleResponse(ctx context.Context, resp Response) {
	logger := d.logger.With(
		zap.String("action", resp.ActionID),
		zap.String("notification_id", resp.Notification.ID),
		zap.String("category", resp.Notification.Content.Category()),
	)

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			logger.Error("panic while handling notification response",
				zap.Any("panic", r),
				zap.String("stack", stack),
			)
			d.fail(ctx, resp, fmt.Sprintf("panic: %v", r), stack)
		}
	}()

	if err := d.dispatch(ctx, resp); err != nil {
		logger.Error("failed to handle notification response", zap.Error(err))
		d.fail(ctx, resp, err.Error(), "")
		return
	}

	d.metrics.RecordAction(resp.ActionID, true)
}

func (d *Dispatcher) fail(ctx context.Context, resp Response, message, stack string) {
	d.metrics.RecordAction(resp.ActionID, false)
	d.metrics.RecordResponseError(resp.ActionID)

	if d.reporter != nil {
		entryContext := map[string]interface{}{
			"action":          resp.ActionID,
			"notification_id": resp.Notification.ID,
			"category":        resp.Notification.Content.Category(),
		}
		if resp.Notification.Content.Payload != nil {
			if raw, err := model.EncodePayload(resp.Notification.Content.Payload); err == nil {
				entryContext["payload"] = string(raw)
			}
		}
		d.reporter.Submit(errorlog.Entry{
			Severity: errorlog.SeverityHigh,
			Category: errorlog.CategoryResponse,
			Message:  message,
			Context:  entryContext,
			Stack:    stack,
		})
	}

	d.alerter.Alert(ctx, alertResponseTitle, alertResponseBody)
}

func (d *Dispatcher) dispatch(ctx context.Context, resp Response) error {
	switch p := resp.Notification.Content.Payload.(type) {
	case model.SingleReminder:
		return d.handleSingle(ctx, resp.ActionID, p)
	case model.GroupedReminder:
		return d.handleGrouped(ctx, resp.ActionID, p)
	case model.DailyCheckin:
		return d.handleDailyCheckin(ctx, resp.ActionID, p)
	case nil:
		return fmt.Errorf("notification response has no payload")
	default:
		return fmt.Errorf("unsupported payload type %s", p.Type())
	}
}

func (d *Dispatcher) handleSingle(ctx context.Context, action string, p model.SingleReminder) error {
	key := SingleFollowUpKey(p.MedicationID, p.ScheduleID)
	// any action on the reminder or its follow-up settles the follow-up
	defer d.followUps.Cancel(ctx, key)

	switch action {
	case ActionTakeNow:
		return d.actions.TakeNow(ctx, p.MedicationID, p.ScheduleID)
	case ActionSkip:
		return d.actions.Skip(ctx, p.MedicationID, p.ScheduleID)
	case ActionSnooze:
		_, err := d.actions.Snooze(ctx, p.MedicationID, p.ScheduleID, d.opts.SnoozeMinutes)
		return err
	case ActionDefault:
		return nil
	default:
		return fmt.Errorf("unknown action %q for medication reminder", action)
	}
}

func (d *Dispatcher) handleGrouped(ctx context.Context, action string, p model.GroupedReminder) error {
	key := GroupFollowUpKey(p.Time)

	switch action {
	case ActionTakeAllNow:
		taken := d.actions.TakeAllNow(ctx, p)
		if taken == 0 {
			return fmt.Errorf("no dose of %d group members could be logged", len(p.MedicationIDs))
		}
		d.followUps.Cancel(ctx, key)
		if taken < len(p.MedicationIDs) {
			d.logger.Warn("some group members were not logged",
				zap.String("group_key", p.Time),
				zap.Int("taken", taken),
				zap.Int("members", len(p.MedicationIDs)),
			)
		}
		return nil
	case ActionRemindLater:
		if _, err := d.actions.RemindLater(ctx, p, d.opts.RemindLaterMinutes); err != nil {
			return err
		}
		d.followUps.Cancel(ctx, key)
		return nil
	case ActionDefault:
		d.followUps.Cancel(ctx, key)
		return nil
	default:
		return fmt.Errorf("unknown action %q for grouped reminder", action)
	}
}

func (d *Dispatcher) handleDailyCheckin(ctx context.Context, action string, p model.DailyCheckin) error {
	switch action {
	case ActionLogCheckin:
		err := d.days.LogStatus(ctx, &model.DailyStatus{
			Date:      p.Date,
			Status:    clearDayStatus,
			CreatedAt: d.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to log day status: %w", err)
		}
		d.logger.Info("clear day logged from notification", zap.String("date", p.Date))
		return nil
	case ActionDefault:
		return nil
	default:
		return fmt.Errorf("unknown action %q for daily check-in", action)
	}
}
