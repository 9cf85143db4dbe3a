package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// EpisodeRepository answers the day-level questions asked by the daily
// check-in: was an episode logged on a date, and was a status logged
type EpisodeRepository struct {
	db       *pgxpool.Pool
	timezone string
	logger   *zap.Logger
}

// NewEpisodeRepository creates a new EpisodeRepository. Calendar dates
// are interpreted in timezone.
func NewEpisodeRepository(db *pgxpool.Pool, timezone string, logger *zap.Logger) *EpisodeRepository {
	return &EpisodeRepository{
		db:       db,
		timezone: timezone,
		logger:   logger,
	}
}

// CreateEpisode records an episode
func (r *EpisodeRepository) CreateEpisode(ctx context.Context, ep *model.Episode) error {
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}

	query := `INSERT INTO episodes (id, start_time, end_time, created_at) VALUES ($1, $2, $3, NOW())`
	if _, err := r.db.Exec(ctx, query, ep.ID, ep.StartTime, ep.EndTime); err != nil {
		r.logger.Error("failed to create episode", zap.Error(err), zap.String("episode_id", ep.ID))
		return fmt.Errorf("failed to create episode: %w", err)
	}

	return nil
}

// EndEpisode closes an ongoing episode
func (r *EpisodeRepository) EndEpisode(ctx context.Context, episodeID string, endTime int64) error {
	result, err := r.db.Exec(ctx, `UPDATE episodes SET end_time = $1 WHERE id = $2`, endTime, episodeID)
	if err != nil {
		r.logger.Error("failed to end episode", zap.Error(err), zap.String("episode_id", episodeID))
		return fmt.Errorf("failed to end episode: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("episode %s: %w", episodeID, ErrNotFound)
	}

	return nil
}

// EpisodeOverlapsDate reports whether any episode, ongoing or ended,
// touches the calendar date
func (r *EpisodeRepository) EpisodeOverlapsDate(ctx context.Context, date string) (bool, error) {
	start, end, err := model.DateBounds(date, r.timezone)
	if err != nil {
		return false, err
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM episodes
			WHERE start_time < $2
			  AND (end_time IS NULL OR end_time >= $1)
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, start.UnixMilli(), end.UnixMilli()).Scan(&exists); err != nil {
		r.logger.Error("failed to check episodes for date", zap.Error(err), zap.String("date", date))
		return false, fmt.Errorf("failed to check episodes: %w", err)
	}

	return exists, nil
}

// LogStatus records the day status for a date, replacing an earlier one
func (r *EpisodeRepository) LogStatus(ctx context.Context, status *model.DailyStatus) error {
	if status.ID == "" {
		status.ID = uuid.New().String()
	}

	query := `
		INSERT INTO daily_status_logs (id, date, status, notes, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (date) DO UPDATE SET status = excluded.status, notes = excluded.notes
	`

	if _, err := r.db.Exec(ctx, query, status.ID, status.Date, status.Status, status.Notes); err != nil {
		r.logger.Error("failed to log daily status", zap.Error(err), zap.String("date", status.Date))
		return fmt.Errorf("failed to log daily status: %w", err)
	}

	return nil
}

// HasStatusForDate reports whether a day status was logged for date
func (r *EpisodeRepository) HasStatusForDate(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_status_logs WHERE date = $1)`, date,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check daily status", zap.Error(err), zap.String("date", date))
		return false, fmt.Errorf("failed to check daily status: %w", err)
	}
	return exists, nil
}
