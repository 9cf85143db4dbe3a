package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// DoseRepository manages the append-only dose log
type DoseRepository struct {
	db     *pgxpool.Pool
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewDoseRepository creates a new DoseRepository
func NewDoseRepository(db *pgxpool.Pool, clock clockwork.Clock, logger *zap.Logger) *DoseRepository {
	return &DoseRepository{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

// Create appends a dose to the log
func (r *DoseRepository) Create(ctx context.Context, dose *model.Dose) (*model.Dose, error) {
	if dose.ID == "" {
		dose.ID = uuid.New().String()
	}
	if dose.Status == "" {
		dose.Status = model.DoseStatusTaken
	}
	if dose.Timestamp == 0 {
		dose.Timestamp = r.clock.Now().UnixMilli()
	}

	query := `
		INSERT INTO medication_doses (id, medication_id, schedule_id, timestamp, quantity, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		dose.ID,
		dose.MedicationID,
		dose.ScheduleID,
		dose.Timestamp,
		dose.Quantity,
		dose.Status,
		dose.Notes,
	).Scan(&dose.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create dose",
			zap.Error(err),
			zap.String("medication_id", dose.MedicationID),
		)
		return nil, fmt.Errorf("failed to create dose: %w", err)
	}

	return dose, nil
}

// WasLoggedForScheduleToday reports whether any dose exists for the
// schedule whose timestamp falls on today's date in the schedule's
// timezone. timeOfDay is accepted for interface symmetry; the day, not the
// slot, decides.
func (r *DoseRepository) WasLoggedForScheduleToday(ctx context.Context, medicationID, scheduleID, timeOfDay, timezone string) (bool, error) {
	start, end, err := model.DayBounds(r.clock.Now(), timezone)
	if err != nil {
		return false, err
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM medication_doses
			WHERE medication_id = $1
			  AND schedule_id = $2
			  AND timestamp >= $3
			  AND timestamp < $4
		)
	`

	var exists bool
	err = r.db.QueryRow(ctx, query, medicationID, scheduleID, start.UnixMilli(), end.UnixMilli()).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check dose log",
			zap.Error(err),
			zap.String("medication_id", medicationID),
			zap.String("schedule_id", scheduleID),
			zap.String("time", timeOfDay),
		)
		return false, fmt.Errorf("failed to check dose log: %w", err)
	}

	return exists, nil
}

// ListForMedication returns the dose log of a medication, newest first
func (r *DoseRepository) ListForMedication(ctx context.Context, medicationID string) ([]model.Dose, error) {
	query := `
		SELECT id, medication_id, schedule_id, timestamp, quantity, status, notes, created_at
		FROM medication_doses
		WHERE medication_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := r.db.Query(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to list doses", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to list doses: %w", err)
	}
	defer rows.Close()

	var doses []model.Dose
	for rows.Next() {
		var d model.Dose
		if err := rows.Scan(&d.ID, &d.MedicationID, &d.ScheduleID, &d.Timestamp, &d.Quantity, &d.Status, &d.Notes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dose: %w", err)
		}
		doses = append(doses, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating doses: %w", err)
	}

	return doses, nil
}
