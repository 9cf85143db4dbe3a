package service

import (
	"context"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// Engine is the notifier's listener: it decides how fired notifications
// are shown, drives follow-ups and routes responses
type Engine struct {
	oracle     *Oracle
	mappings   MappingStore
	followUps  *FollowUpEngine
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// Ensure Engine implements notify.Listener
var _ notify.Listener = (*Engine)(nil)

// NewEngine creates a new Engine
func NewEngine(oracle *Oracle, mappings MappingStore, followUps *FollowUpEngine, dispatcher *Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{
		oracle:     oracle,
		mappings:   mappings,
		followUps:  followUps,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleNotification decides whether a fired notification is shown and
// retires its mappings
func (e *Engine) HandleNotification(ctx context.Context, n notify.Scheduled) model.DisplayDecision {
	decision := e.oracle.Decide(ctx, n.Content.Payload)

	if n.Content.Payload != nil && !model.IsTransient(n.Content.Payload) {
		if _, err := e.mappings.DeleteMappingsByNotificationID(ctx, n.ID); err != nil {
			e.logger.Warn("failed to retire mappings of fired notification",
				zap.Error(err),
				zap.String("notification_id", n.ID),
			)
		}
	}

	return decision
}

// NotificationReceived runs after a notification was shown in the
// foreground
func (e *Engine) NotificationReceived(ctx context.Context, n notify.Scheduled) {
	e.followUps.OnPrimaryReceived(ctx, n)
}

// HandleResponse routes a user response to the dispatcher
func (e *Engine) HandleResponse(ctx context.Context, resp Response) {
	e.dispatcher.HandleResponse(ctx, resp)
}
