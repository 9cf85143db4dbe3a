package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ErrMappingTableMissing is returned when the mapping table has not been
// created
var ErrMappingTableMissing = errors.New("notification mapping table does not exist")

// OrphanReport lists the disagreements between the notifier and the
// mapping table
type OrphanReport struct {
	// OrphanedMappings have no scheduled notification behind them
	OrphanedMappings []model.NotificationMapping `json:"orphaned_mappings"`
	// UnmappedNotifications are scheduled but have no mapping. Snoozes and
	// follow-ups are never mapped and are not reported.
	UnmappedNotifications []notify.Scheduled `json:"unmapped_notifications"`
	MappingCount          int                `json:"mapping_count"`
	ScheduledCount        int                `json:"scheduled_count"`
}

// Clean reports whether both stores agree
func (r *OrphanReport) Clean() bool {
	return len(r.OrphanedMappings) == 0 && len(r.UnmappedNotifications) == 0
}

// Reconciler compares scheduled notifications with the mapping table
type Reconciler struct {
	mappings MappingStore
	notifier notify.Notifier
	metrics  *metrics.ReminderMetrics
	logger   *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(mappings MappingStore, notifier notify.Notifier, m *metrics.ReminderMetrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		mappings: mappings,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// FindOrphans returns mappings without notifications and notifications
// without mappings
func (r *Reconciler) FindOrphans(ctx context.Context) (*OrphanReport, error) {
	exists, err := r.mappings.TableExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check mapping table: %w", err)
	}
	if !exists {
		return nil, ErrMappingTableMissing
	}

	scheduled, err := r.notifier.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled notifications: %w", err)
	}

	mappings, err := r.mappings.GetAllMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}

	live := make(map[string]bool, len(scheduled))
	for _, n := range scheduled {
		live[n.ID] = true
	}
	mapped := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		mapped[m.NotificationID] = true
	}

	report := &OrphanReport{
		OrphanedMappings:      []model.NotificationMapping{},
		UnmappedNotifications: []notify.Scheduled{},
		MappingCount:          len(mappings),
		ScheduledCount:        len(scheduled),
	}

	for _, m := range mappings {
		if !live[m.NotificationID] {
			report.OrphanedMappings = append(report.OrphanedMappings, m)
		}
	}
	for _, n := range scheduled {
		if mapped[n.ID] {
			continue
		}
		if n.Content.Payload != nil && model.IsTransient(n.Content.Payload) {
			continue
		}
		report.UnmappedNotifications = append(report.UnmappedNotifications, n)
	}

	r.metrics.SetOrphans(len(report.OrphanedMappings), len(report.UnmappedNotifications))
	r.logger.Info("reconciliation finished",
		zap.Int("mappings", report.MappingCount),
		zap.Int("scheduled", report.ScheduledCount),
		zap.Int("orphaned_mappings", len(report.OrphanedMappings)),
		zap.Int("unmapped_notifications", len(report.UnmappedNotifications)),
	)

	return report, nil
}

// RepairOrphans deletes orphaned mappings and cancels unmapped
// notifications. It returns the report it acted on.
func (r *Reconciler) RepairOrphans(ctx context.Context) (*OrphanReport, error) {
	report, err := r.FindOrphans(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range report.OrphanedMappings {
		if err := r.mappings.DeleteMapping(ctx, m.ID); err != nil {
			r.logger.Warn("failed to delete orphaned mapping", zap.Error(err), zap.String("mapping_id", m.ID))
		}
	}

	for _, n := range report.UnmappedNotifications {
		if err := r.notifier.Cancel(ctx, n.ID); err != nil && !errors.Is(err, notify.ErrNotificationNotFound) {
			r.logger.Warn("failed to cancel unmapped notification", zap.Error(err), zap.String("notification_id", n.ID))
		}
	}

	r.metrics.SetOrphans(0, 0)
	r.logger.Info("orphans repaired",
		zap.Int("orphaned_mappings", len(report.OrphanedMappings)),
		zap.Int("unmapped_notifications", len(report.UnmappedNotifications)),
	)

	return report, nil
}
