package errorlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Severity of an error log entry
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category groups error log entries by cause
type Category string

const (
	CategoryDataIntegrity Category = "data_integrity"
	CategoryTransient     Category = "transient"
	CategoryScheduling    Category = "scheduling"
	CategoryResponse      Category = "notification_response"
)

// Entry is one error log record
type Entry struct {
	ID        string                 `json:"id"`
	Severity  Severity               `json:"severity"`
	Category  Category               `json:"category"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Stack     string                 `json:"stack,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Recorder persists error log entries
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Logger writes error log entries to the database
type Logger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLogger creates a new error log writer
func NewLogger(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{
		db:     db,
		logger: logger,
	}
}

// Record stores an entry
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
		INSERT INTO error_logs (id, severity, category, message, context, stack, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := l.db.Exec(ctx, query,
		entry.ID,
		entry.Severity,
		entry.Category,
		entry.Message,
		entry.Context,
		entry.Stack,
		entry.Timestamp,
	)
	if err != nil {
		l.logger.Error("Failed to write error log to database",
			zap.Error(err),
			zap.String("category", string(entry.Category)),
			zap.String("message", entry.Message),
		)
		return err
	}

	return nil
}

// Recent returns the newest entries, up to limit
func (l *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, severity, category, message, context, COALESCE(stack, ''), timestamp
		FROM error_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := l.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Severity, &e.Category, &e.Message, &e.Context, &e.Stack, &e.Timestamp); err != nil {
			l.logger.Error("Failed to scan error log", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// maxInFlight bounds concurrent submissions
const maxInFlight = 16

// Async submits entries to a Recorder without making the caller wait.
// At most maxInFlight submissions run at once. Entries beyond that are
// logged and dropped, and failures never reach the submitter.
type Async struct {
	recorder Recorder
	logger   *zap.Logger
	timeout  time.Duration
	group    *errgroup.Group
}

// NewAsync creates a new asynchronous submitter
func NewAsync(recorder Recorder, logger *zap.Logger) *Async {
	return newAsync(recorder, logger, maxInFlight)
}

func newAsync(recorder Recorder, logger *zap.Logger, limit int) *Async {
	group := &errgroup.Group{}
	group.SetLimit(limit)
	return &Async{
		recorder: recorder,
		logger:   logger,
		timeout:  10 * time.Second,
		group:    group,
	}
}

// Submit records entry in the background
func (a *Async) Submit(entry Entry) {
	if a == nil || a.recorder == nil {
		return
	}

	started := a.group.TryGo(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.recorder.Record(ctx, entry); err != nil {
			a.logger.Warn("error log submission failed",
				zap.Error(err),
				zap.String("category", string(entry.Category)),
			)
		}
		return nil
	})
	if !started {
		a.logger.Warn("error log busy, dropping entry",
			zap.String("category", string(entry.Category)),
			zap.String("severity", string(entry.Severity)),
			zap.String("message", entry.Message),
		)
	}
}

// Wait blocks until every submitted entry has been handled
func (a *Async) Wait() {
	if a == nil {
		return
	}
	_ = a.group.Wait()
}
