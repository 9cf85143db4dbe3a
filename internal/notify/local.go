package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

type pendingJob struct {
	jobID        uuid.UUID
	notification Scheduled
}

// LocalScheduler is an in-process notification scheduler backed by gocron
// one-time jobs. Like a device scheduler it forgets everything when the
// process stops; the mapping table and reconciler cover that gap.
type LocalScheduler struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock
	presenter Presenter
	logger    *zap.Logger

	mu         sync.RWMutex
	pending    map[string]pendingJob
	categories map[string][]Action
	listener   Listener
}

// Ensure LocalScheduler implements Notifier
var _ Notifier = (*LocalScheduler)(nil)

// NewLocalScheduler creates a stopped LocalScheduler
func NewLocalScheduler(clock clockwork.Clock, presenter Presenter, logger *zap.Logger) (*LocalScheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create job scheduler: %w", err)
	}

	return &LocalScheduler{
		scheduler:  s,
		clock:      clock,
		presenter:  presenter,
		logger:     logger,
		pending:    make(map[string]pendingJob),
		categories: make(map[string][]Action),
	}, nil
}

// SetListener registers the fire-time callback
func (l *LocalScheduler) SetListener(listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = listener
}

// Start begins firing scheduled notifications
func (l *LocalScheduler) Start() {
	l.scheduler.Start()
}

// Shutdown stops the scheduler and drops every pending notification
func (l *LocalScheduler) Shutdown() error {
	l.mu.Lock()
	l.pending = make(map[string]pendingJob)
	l.mu.Unlock()

	return l.scheduler.Shutdown()
}

// Schedule registers a single-fire notification
func (l *LocalScheduler) Schedule(ctx context.Context, req Request) (string, error) {
	if req.Content.Payload == nil {
		return "", fmt.Errorf("notification has no payload")
	}
	if !req.Trigger.After(l.clock.Now()) {
		return "", fmt.Errorf("notification trigger %s is not in the future", req.Trigger.UTC().Format("2006-01-02T15:04:05Z"))
	}

	id := uuid.New().String()

	l.mu.Lock()
	defer l.mu.Unlock()

	job, err := l.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(req.Trigger)),
		gocron.NewTask(l.fire, id),
		gocron.WithName(id),
		gocron.WithTags(req.Content.Category()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to schedule notification: %w", err)
	}

	l.pending[id] = pendingJob{
		jobID: job.ID(),
		notification: Scheduled{
			ID:      id,
			Content: req.Content,
			Trigger: req.Trigger,
		},
	}

	l.logger.Debug("notification scheduled",
		zap.String("notification_id", id),
		zap.String("category", req.Content.Category()),
		zap.Time("trigger", req.Trigger),
	)

	return id, nil
}

// Cancel withdraws a pending notification
func (l *LocalScheduler) Cancel(ctx context.Context, id string) error {
	l.mu.Lock()
	p, ok := l.pending[id]
	delete(l.pending, id)
	l.mu.Unlock()

	if !ok {
		return ErrNotificationNotFound
	}

	if err := l.scheduler.RemoveJob(p.jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return fmt.Errorf("failed to cancel notification %s: %w", id, err)
	}

	return nil
}

// ListScheduled returns every pending notification ordered by trigger
func (l *LocalScheduler) ListScheduled(ctx context.Context) ([]Scheduled, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Scheduled, 0, len(l.pending))
	for _, p := range l.pending {
		result = append(result, p.notification)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Trigger.Equal(result[j].Trigger) {
			return result[i].ID < result[j].ID
		}
		return result[i].Trigger.Before(result[j].Trigger)
	})

	return result, nil
}

// RegisterCategory registers the action buttons of a category
func (l *LocalScheduler) RegisterCategory(ctx context.Context, name string, actions []Action) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.categories[name] = append([]Action(nil), actions...)
	return nil
}

// Actions returns the actions registered for a category
func (l *LocalScheduler) Actions(category string) ([]Action, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	actions, ok := l.categories[category]
	return actions, ok
}

// Alert presents an immediate out-of-band notice to the user
func (l *LocalScheduler) Alert(ctx context.Context, title, body string) {
	l.presenter.Present(ctx, Scheduled{
		ID:      uuid.New().String(),
		Content: Content{Title: title, Body: body, Sound: true},
		Trigger: l.clock.Now(),
	}, model.Show())
}

func (l *LocalScheduler) fire(id string) {
	l.mu.Lock()
	p, ok := l.pending[id]
	delete(l.pending, id)
	listener := l.listener
	l.mu.Unlock()

	if !ok {
		// cancelled between the timer firing and the task running
		return
	}

	ctx := context.Background()
	n := p.notification

	decision := model.Show()
	if listener != nil {
		decision = listener.HandleNotification(ctx, n)
	}

	if !decision.Shown() {
		l.logger.Info("notification suppressed",
			zap.String("notification_id", id),
			zap.String("category", n.Content.Category()),
		)
		return
	}

	l.presenter.Present(ctx, n, decision)

	if listener != nil {
		listener.NotificationReceived(ctx, n)
	}
}

// LogPresenter presents notifications by logging them
type LogPresenter struct {
	logger *zap.Logger
}

// NewLogPresenter creates a new LogPresenter
func NewLogPresenter(logger *zap.Logger) *LogPresenter {
	return &LogPresenter{logger: logger}
}

// Present logs the notification
func (p *LogPresenter) Present(ctx context.Context, n Scheduled, decision model.DisplayDecision) {
	p.logger.Info("notification presented",
		zap.String("notification_id", n.ID),
		zap.String("title", n.Content.Title),
		zap.String("body", n.Content.Body),
		zap.String("category", n.Content.Category()),
		zap.Bool("sound", decision.PlaySound && n.Content.Sound),
	)
}
