package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// MappingRepository manages the notification mapping table, the record of
// which scheduled notifications should exist
type MappingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMappingRepository creates a new MappingRepository
func NewMappingRepository(db *pgxpool.Pool, logger *zap.Logger) *MappingRepository {
	return &MappingRepository{
		db:     db,
		logger: logger,
	}
}

const mappingColumns = `
	id, medication_id, schedule_id, date, notification_id,
	notification_type, is_grouped, group_key, source_type, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*model.NotificationMapping, error) {
	var m model.NotificationMapping
	err := row.Scan(
		&m.ID,
		&m.MedicationID,
		&m.ScheduleID,
		&m.Date,
		&m.NotificationID,
		&m.Kind,
		&m.IsGrouped,
		&m.GroupKey,
		&m.SourceType,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMapping persists a mapping
func (r *MappingRepository) SaveMapping(ctx context.Context, m *model.NotificationMapping) (*model.NotificationMapping, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO notification_mappings (
			id, medication_id, schedule_id, date, notification_id,
			notification_type, is_grouped, group_key, source_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		m.ID,
		m.MedicationID,
		m.ScheduleID,
		m.Date,
		m.NotificationID,
		m.Kind,
		m.IsGrouped,
		m.GroupKey,
		m.SourceType,
	).Scan(&m.CreatedAt)
	if err != nil {
		r.logger.Error("failed to save notification mapping",
			zap.Error(err),
			zap.String("notification_id", m.NotificationID),
			zap.String("date", m.Date),
		)
		return nil, fmt.Errorf("failed to save notification mapping: %w", err)
	}

	return m, nil
}

// GetMapping returns the live mapping occupying key, or nil
func (r *MappingRepository) GetMapping(ctx context.Context, key model.MappingKey) (*model.NotificationMapping, error) {
	var (
		query string
		args  []any
	)

	switch {
	case key.GroupKey != "":
		query = `SELECT ` + mappingColumns + ` FROM notification_mappings
			WHERE group_key = $1 AND date = $2 AND notification_type = $3 AND is_grouped = true
			LIMIT 1`
		args = []any{key.GroupKey, key.Date, key.Kind}
	case key.Kind == model.KindDailyCheckin:
		query = `SELECT ` + mappingColumns + ` FROM notification_mappings
			WHERE date = $1 AND notification_type = $2 AND medication_id IS NULL
			LIMIT 1`
		args = []any{key.Date, key.Kind}
	default:
		query = `SELECT ` + mappingColumns + ` FROM notification_mappings
			WHERE medication_id = $1 AND schedule_id = $2 AND date = $3 AND notification_type = $4
			LIMIT 1`
		args = []any{key.MedicationID, key.ScheduleID, key.Date, key.Kind}
	}

	m, err := scanMapping(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		r.logger.Error("failed to get notification mapping",
			zap.Error(err),
			zap.String("medication_id", key.MedicationID),
			zap.String("group_key", key.GroupKey),
			zap.String("date", key.Date),
		)
		return nil, fmt.Errorf("failed to get notification mapping: %w", err)
	}

	return m, nil
}

func (r *MappingRepository) queryMappings(ctx context.Context, query string, args ...any) ([]model.NotificationMapping, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query notification mappings", zap.Error(err))
		return nil, fmt.Errorf("failed to query notification mappings: %w", err)
	}
	defer rows.Close()

	var mappings []model.NotificationMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification mapping: %w", err)
		}
		mappings = append(mappings, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification mappings: %w", err)
	}

	return mappings, nil
}

// GetAllMappings returns every mapping ordered by date
func (r *MappingRepository) GetAllMappings(ctx context.Context) ([]model.NotificationMapping, error) {
	return r.queryMappings(ctx,
		`SELECT `+mappingColumns+` FROM notification_mappings ORDER BY date, created_at`)
}

// GetMappingsByMedication returns the mappings owned by a medication
func (r *MappingRepository) GetMappingsByMedication(ctx context.Context, medicationID string) ([]model.NotificationMapping, error) {
	return r.queryMappings(ctx,
		`SELECT `+mappingColumns+` FROM notification_mappings WHERE medication_id = $1 ORDER BY date`,
		medicationID)
}

// DeleteMappingsByNotificationID removes every mapping that points at a
// notification identifier
func (r *MappingRepository) DeleteMappingsByNotificationID(ctx context.Context, notificationID string) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM notification_mappings WHERE notification_id = $1`, notificationID)
	if err != nil {
		r.logger.Error("failed to delete notification mappings",
			zap.Error(err),
			zap.String("notification_id", notificationID),
		)
		return 0, fmt.Errorf("failed to delete notification mappings: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteMapping removes one mapping by ID
func (r *MappingRepository) DeleteMapping(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM notification_mappings WHERE id = $1`, id); err != nil {
		r.logger.Error("failed to delete notification mapping", zap.Error(err), zap.String("mapping_id", id))
		return fmt.Errorf("failed to delete notification mapping: %w", err)
	}
	return nil
}

// DeleteAllMappings clears the table and returns how many rows were removed
func (r *MappingRepository) DeleteAllMappings(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM notification_mappings`)
	if err != nil {
		r.logger.Error("failed to delete all notification mappings", zap.Error(err))
		return 0, fmt.Errorf("failed to delete all notification mappings: %w", err)
	}
	return result.RowsAffected(), nil
}

// TableExists reports whether the mapping table has been created
func (r *MappingRepository) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'notification_mappings')",
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check notification mapping table: %w", err)
	}
	return exists, nil
}
