package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// PushPresenter forwards shown notifications to shoutrrr services
// (ntfy, gotify, telegram, generic webhooks and so on)
type PushPresenter struct {
	sender *router.ServiceRouter
	logger *zap.Logger
}

// NewPushPresenter builds one sender for all urls
func NewPushPresenter(urls []string, timeout time.Duration, logger *zap.Logger) (*PushPresenter, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one push URL is required")
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create push sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &PushPresenter{sender: sender, logger: logger}, nil
}

// Present sends the notification title and body. Delivery failures are
// logged and otherwise ignored.
func (p *PushPresenter) Present(ctx context.Context, n Scheduled, decision model.DisplayDecision) {
	params := types.Params{}
	if n.Content.Title != "" {
		params.SetTitle(n.Content.Title)
	}

	for _, err := range p.sender.Send(n.Content.Body, &params) {
		if err != nil {
			p.logger.Warn("push delivery failed",
				zap.Error(err),
				zap.String("notification_id", n.ID),
				zap.String("category", n.Content.Category()),
			)
		}
	}
}

// Presenters presents each notification through every member in order
type Presenters []Presenter

// Present implements Presenter
func (ps Presenters) Present(ctx context.Context, n Scheduled, decision model.DisplayDecision) {
	for _, p := range ps {
		p.Present(ctx, n, decision)
	}
}
