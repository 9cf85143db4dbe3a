package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// MedicationRepository manages medications and their schedules
type MedicationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new MedicationRepository
func NewMedicationRepository(db *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	return &MedicationRepository{
		db:     db,
		logger: logger,
	}
}

const medicationColumns = `
	id, name, category, dosage_amount, dosage_unit,
	default_quantity, active, created_at, updated_at
`

// Create creates a medication together with its schedules
func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO medications (
			id, name, category, dosage_amount, dosage_unit,
			default_quantity, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		med.ID,
		med.Name,
		med.Category,
		med.DosageAmount,
		med.DosageUnit,
		med.DefaultQuantity,
		med.Active,
	).Scan(&med.CreatedAt, &med.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}

	for i := range med.Schedules {
		med.Schedules[i].MedicationID = med.ID
		if err := insertSchedule(ctx, tx, &med.Schedules[i], i); err != nil {
			r.logger.Error("failed to create schedule",
				zap.Error(err),
				zap.String("medication_id", med.ID),
				zap.String("schedule_id", med.Schedules[i].ID),
			)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit medication: %w", err)
	}

	return nil
}

func insertSchedule(ctx context.Context, tx pgx.Tx, s *model.Schedule, position int) error {
	query := `
		INSERT INTO medication_schedules (id, medication_id, time, timezone, dosage, enabled, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(ctx, query, s.ID, s.MedicationID, s.Time, s.Timezone, s.Dosage, s.Enabled, position); err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// GetByID retrieves a medication with its schedules. It returns nil and no
// error when the medication does not exist.
func (r *MedicationRepository) GetByID(ctx context.Context, medicationID string) (*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`

	var med model.Medication
	err := r.db.QueryRow(ctx, query, medicationID).Scan(
		&med.ID,
		&med.Name,
		&med.Category,
		&med.DosageAmount,
		&med.DosageUnit,
		&med.DefaultQuantity,
		&med.Active,
		&med.CreatedAt,
		&med.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		r.logger.Error("failed to find medication", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}

	schedules, err := r.loadSchedules(ctx, []string{med.ID})
	if err != nil {
		return nil, err
	}
	med.Schedules = schedules[med.ID]

	return &med, nil
}

// GetActive retrieves all active medications with their schedules
func (r *MedicationRepository) GetActive(ctx context.Context) ([]model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE active = true ORDER BY name, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to find active medications", zap.Error(err))
		return nil, fmt.Errorf("failed to find active medications: %w", err)
	}
	defer rows.Close()

	var medications []model.Medication
	for rows.Next() {
		var med model.Medication
		err := rows.Scan(
			&med.ID,
			&med.Name,
			&med.Category,
			&med.DosageAmount,
			&med.DosageUnit,
			&med.DefaultQuantity,
			&med.Active,
			&med.CreatedAt,
			&med.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan medication", zap.Error(err))
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		medications = append(medications, med)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}

	ids := make([]string, len(medications))
	for i := range medications {
		ids[i] = medications[i].ID
	}
	schedules, err := r.loadSchedules(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range medications {
		medications[i].Schedules = schedules[medications[i].ID]
	}

	return medications, nil
}

func (r *MedicationRepository) loadSchedules(ctx context.Context, medicationIDs []string) (map[string][]model.Schedule, error) {
	result := make(map[string][]model.Schedule, len(medicationIDs))
	if len(medicationIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, medication_id, time, timezone, dosage, enabled
		FROM medication_schedules
		WHERE medication_id::text = ANY($1)
		ORDER BY medication_id, position, time
	`

	rows, err := r.db.Query(ctx, query, medicationIDs)
	if err != nil {
		r.logger.Error("failed to load schedules", zap.Error(err))
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.Schedule
		if err := rows.Scan(&s.ID, &s.MedicationID, &s.Time, &s.Timezone, &s.Dosage, &s.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		result[s.MedicationID] = append(result[s.MedicationID], s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return result, nil
}

// SetActive archives or restores a medication
func (r *MedicationRepository) SetActive(ctx context.Context, medicationID string, active bool) error {
	result, err := r.db.Exec(ctx,
		`UPDATE medications SET active = $1, updated_at = NOW() WHERE id = $2`,
		active, medicationID,
	)
	if err != nil {
		r.logger.Error("failed to update medication active flag",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
	}

	return nil
}

// AddSchedule appends a schedule to an existing medication
func (r *MedicationRepository) AddSchedule(ctx context.Context, s *model.Schedule) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var position int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM medication_schedules WHERE medication_id = $1`,
		s.MedicationID,
	).Scan(&position)
	if err != nil {
		return fmt.Errorf("failed to count schedules: %w", err)
	}

	if err := insertSchedule(ctx, tx, s, position); err != nil {
		r.logger.Error("failed to add schedule",
			zap.Error(err),
			zap.String("medication_id", s.MedicationID),
		)
		return err
	}

	return tx.Commit(ctx)
}

// UpdateSchedule updates a schedule's time, timezone, dosage and enabled flag
func (r *MedicationRepository) UpdateSchedule(ctx context.Context, s *model.Schedule) error {
	query := `
		UPDATE medication_schedules
		SET time = $1, timezone = $2, dosage = $3, enabled = $4
		WHERE id = $5 AND medication_id = $6
	`

	result, err := r.db.Exec(ctx, query, s.Time, s.Timezone, s.Dosage, s.Enabled, s.ID, s.MedicationID)
	if err != nil {
		r.logger.Error("failed to update schedule",
			zap.Error(err),
			zap.String("schedule_id", s.ID),
		)
		return fmt.Errorf("failed to update schedule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s: %w", s.ID, ErrNotFound)
	}

	return nil
}
