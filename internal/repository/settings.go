package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const keyNotificationsEnabled = "notifications_enabled"

// SettingsRepository stores per-medication notification overrides and the
// global notification toggle
type SettingsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *pgxpool.Pool, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetMedicationSettings returns the overrides stored for a medication.
// A medication without a row gets an empty override.
func (r *SettingsRepository) GetMedicationSettings(ctx context.Context, medicationID string) (*model.NotificationSettingsOverride, error) {
	query := `
		SELECT follow_up_enabled, follow_up_delay_minutes, critical_alerts_enabled, time_sensitive_enabled
		FROM notification_settings
		WHERE medication_id = $1
	`

	var o model.NotificationSettingsOverride
	err := r.db.QueryRow(ctx, query, medicationID).Scan(
		&o.FollowUpEnabled,
		&o.FollowUpDelayMinutes,
		&o.CriticalAlertsEnabled,
		&o.TimeSensitiveEnabled,
	)
	if err != nil {
		if isNoRows(err) {
			return &model.NotificationSettingsOverride{}, nil
		}
		r.logger.Error("failed to get notification settings", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to get notification settings: %w", err)
	}

	return &o, nil
}

// SaveMedicationSettings upserts the overrides for a medication
func (r *SettingsRepository) SaveMedicationSettings(ctx context.Context, medicationID string, o *model.NotificationSettingsOverride) error {
	query := `
		INSERT INTO notification_settings (
			medication_id, follow_up_enabled, follow_up_delay_minutes,
			critical_alerts_enabled, time_sensitive_enabled
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (medication_id) DO UPDATE SET
			follow_up_enabled = excluded.follow_up_enabled,
			follow_up_delay_minutes = excluded.follow_up_delay_minutes,
			critical_alerts_enabled = excluded.critical_alerts_enabled,
			time_sensitive_enabled = excluded.time_sensitive_enabled
	`

	_, err := r.db.Exec(ctx, query,
		medicationID,
		o.FollowUpEnabled,
		o.FollowUpDelayMinutes,
		o.CriticalAlertsEnabled,
		o.TimeSensitiveEnabled,
	)
	if err != nil {
		r.logger.Error("failed to save notification settings", zap.Error(err), zap.String("medication_id", medicationID))
		return fmt.Errorf("failed to save notification settings: %w", err)
	}

	return nil
}

// NotificationsEnabled returns the global notification toggle. It is on
// until explicitly switched off.
func (r *SettingsRepository) NotificationsEnabled(ctx context.Context) (bool, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, keyNotificationsEnabled).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read notification toggle: %w", err)
	}

	enabled, err := strconv.ParseBool(value)
	if err != nil {
		r.logger.Warn("invalid notification toggle value, assuming enabled", zap.String("value", value))
		return true, nil
	}
	return enabled, nil
}

// SetNotificationsEnabled persists the global notification toggle
func (r *SettingsRepository) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	query := `
		INSERT INTO app_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.Exec(ctx, query, keyNotificationsEnabled, strconv.FormatBool(enabled)); err != nil {
		r.logger.Error("failed to save notification toggle", zap.Error(err))
		return fmt.Errorf("failed to save notification toggle: %w", err)
	}
	return nil
}
