package service

import (
	"context"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const (
	alertDataProblemTitle = "Medication data problem"
	alertDataProblemBody  = "A reminder refers to a medication or schedule that no longer exists. Please review your medications in the app."
	alertLookupTitle      = "Reminder check failed"
	alertLookupBody       = "We could not check whether this dose was already logged. Please try again from the app."
)

// Oracle decides at fire time whether a notification is shown. Medication
// reminders fail towards showing; the daily check-in fails towards
// staying quiet.
type Oracle struct {
	medications MedicationStore
	doses       DoseStore
	days        DayStatusStore
	alerter     UserAlerter
	reporter    ErrorReporter
	metrics     *metrics.ReminderMetrics
	logger      *zap.Logger
}

// NewOracle creates a new Oracle
func NewOracle(
	medications MedicationStore,
	doses DoseStore,
	days DayStatusStore,
	alerter UserAlerter,
	reporter ErrorReporter,
	m *metrics.ReminderMetrics,
	logger *zap.Logger,
) *Oracle {
	return &Oracle{
		medications: medications,
		doses:       doses,
		days:        days,
		alerter:     alerter,
		reporter:    reporter,
		metrics:     m,
		logger:      logger,
	}
}

// Decide returns the display decision for a fired notification's payload
func (o *Oracle) Decide(ctx context.Context, payload model.Payload) model.DisplayDecision {
	var decision model.DisplayDecision
	payloadType := "unknown"

	switch p := payload.(type) {
	case model.DailyCheckin:
		payloadType = string(p.Type())
		decision = o.decideDailyCheckin(ctx, p)
	case model.SingleReminder:
		payloadType = string(p.Type())
		decision = o.decideSingle(ctx, p)
	case model.GroupedReminder:
		payloadType = string(p.Type())
		decision = o.decideGrouped(ctx, p)
	default:
		o.logger.Warn("notification without a known payload, showing it")
		decision = model.Show()
	}

	o.metrics.RecordDecision(payloadType, decision.Shown())
	return decision
}

func (o *Oracle) decideDailyCheckin(ctx context.Context, p model.DailyCheckin) model.DisplayDecision {
	logger := o.logger.With(zap.String("date", p.Date))

	logged, err := o.days.HasStatusForDate(ctx, p.Date)
	if err != nil {
		logger.Warn("daily check-in status lookup failed, suppressing", zap.Error(err))
		o.report(errorlog.SeverityLow, errorlog.CategoryTransient, "daily check-in status lookup failed", err,
			map[string]interface{}{"date": p.Date})
		return model.Suppress()
	}
	if logged {
		logger.Debug("status already logged, suppressing daily check-in")
		return model.Suppress()
	}

	redDay, err := o.days.EpisodeOverlapsDate(ctx, p.Date)
	if err != nil {
		logger.Warn("episode lookup failed, suppressing", zap.Error(err))
		o.report(errorlog.SeverityLow, errorlog.CategoryTransient, "episode lookup failed", err,
			map[string]interface{}{"date": p.Date})
		return model.Suppress()
	}
	if redDay {
		logger.Debug("episode overlaps date, suppressing daily check-in")
		return model.Suppress()
	}

	return model.Show()
}

func (o *Oracle) decideSingle(ctx context.Context, p model.SingleReminder) model.DisplayDecision {
	fields := map[string]interface{}{
		"medication_id": p.MedicationID,
		"schedule_id":   p.ScheduleID,
		"is_follow_up":  p.IsFollowUp,
	}
	logger := o.logger.With(
		zap.String("medication_id", p.MedicationID),
		zap.String("schedule_id", p.ScheduleID),
		zap.Bool("is_follow_up", p.IsFollowUp),
	)

	med, err := o.medications.GetByID(ctx, p.MedicationID)
	if err != nil {
		logger.Error("transient medication lookup failure, showing reminder", zap.Error(err))
		o.report(errorlog.SeverityMedium, errorlog.CategoryTransient, "medication lookup failed", err, fields)
		o.alerter.Alert(ctx, alertLookupTitle, alertLookupBody)
		return model.Show()
	}
	if med == nil {
		logger.Error("reminder references a missing medication, showing reminder")
		o.report(errorlog.SeverityHigh, errorlog.CategoryDataIntegrity, "medication not found for reminder", nil, fields)
		o.alerter.Alert(ctx, alertDataProblemTitle, alertDataProblemBody)
		return model.Show()
	}

	sched := med.FindSchedule(p.ScheduleID)
	if sched == nil {
		logger.Error("reminder references a schedule the medication no longer has, showing reminder",
			zap.Int("schedules", len(med.Schedules)),
		)
		fields["schedule_count"] = len(med.Schedules)
		o.report(errorlog.SeverityHigh, errorlog.CategoryDataIntegrity, "schedule not found for reminder", nil, fields)
		o.alerter.Alert(ctx, alertDataProblemTitle, alertDataProblemBody)
		return model.Show()
	}

	logged, err := o.doses.WasLoggedForScheduleToday(ctx, med.ID, sched.ID, sched.Time, sched.Timezone)
	if err != nil {
		logger.Error("transient dose lookup failure, showing reminder", zap.Error(err))
		o.report(errorlog.SeverityMedium, errorlog.CategoryTransient, "dose lookup failed", err, fields)
		o.alerter.Alert(ctx, alertLookupTitle, alertLookupBody)
		return model.Show()
	}

	if logged {
		logger.Info("dose already logged today, suppressing reminder")
		return model.Suppress()
	}
	return model.Show()
}

func (o *Oracle) decideGrouped(ctx context.Context, p model.GroupedReminder) model.DisplayDecision {
	logger := o.logger.With(zap.String("group_key", p.Time), zap.Bool("is_follow_up", p.IsFollowUp))

	n := len(p.MedicationIDs)
	if len(p.ScheduleIDs) != n {
		logger.Warn("grouped reminder has mismatched members",
			zap.Int("medications", len(p.MedicationIDs)),
			zap.Int("schedules", len(p.ScheduleIDs)),
		)
		if len(p.ScheduleIDs) < n {
			n = len(p.ScheduleIDs)
		}
	}

	unlogged := 0
	unresolved := 0
	transient := 0
	for i := 0; i < n; i++ {
		medID, schedID := p.MedicationIDs[i], p.ScheduleIDs[i]
		fields := map[string]interface{}{
			"medication_id": medID,
			"schedule_id":   schedID,
			"group_key":     p.Time,
		}

		med, err := o.medications.GetByID(ctx, medID)
		if err != nil {
			logger.Error("transient lookup failure for group member, counting it as not logged",
				zap.Error(err), zap.String("medication_id", medID))
			o.report(errorlog.SeverityMedium, errorlog.CategoryTransient, "group member lookup failed", err, fields)
			transient++
			unlogged++
			continue
		}
		if med == nil {
			logger.Warn("group member medication not found, excluding it", zap.String("medication_id", medID))
			o.report(errorlog.SeverityHigh, errorlog.CategoryDataIntegrity, "group member medication not found", nil, fields)
			unresolved++
			continue
		}
		sched := med.FindSchedule(schedID)
		if sched == nil {
			logger.Warn("group member schedule not found, excluding it",
				zap.String("medication_id", medID), zap.String("schedule_id", schedID))
			o.report(errorlog.SeverityHigh, errorlog.CategoryDataIntegrity, "group member schedule not found", nil, fields)
			unresolved++
			continue
		}

		logged, err := o.doses.WasLoggedForScheduleToday(ctx, med.ID, sched.ID, sched.Time, sched.Timezone)
		if err != nil {
			logger.Error("transient dose lookup failure for group member, counting it as not logged",
				zap.Error(err), zap.String("medication_id", medID))
			o.report(errorlog.SeverityMedium, errorlog.CategoryTransient, "group member dose lookup failed", err, fields)
			transient++
			unlogged++
			continue
		}
		if !logged {
			unlogged++
		}
	}

	if unresolved > 0 {
		o.alerter.Alert(ctx, alertDataProblemTitle, alertDataProblemBody)
	}
	if transient > 0 {
		o.alerter.Alert(ctx, alertLookupTitle, alertLookupBody)
	}

	if unlogged == 0 {
		logger.Info("every resolvable group member already logged, suppressing reminder",
			zap.Int("unresolved", unresolved))
		return model.Suppress()
	}
	return model.Show()
}

func (o *Oracle) report(severity errorlog.Severity, category errorlog.Category, message string, err error, fields map[string]interface{}) {
	if o.reporter == nil {
		return
	}

	entryContext := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		entryContext[k] = v
	}
	if err != nil {
		entryContext["error"] = err.Error()
	}

	o.reporter.Submit(errorlog.Entry{
		Severity: severity,
		Category: category,
		Message:  message,
		Context:  entryContext,
	})
}
