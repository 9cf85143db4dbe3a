// Package notify is the boundary to the device notification scheduler.
// The engine only talks to it through the Notifier interface.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

// ErrNotificationNotFound is returned when cancelling an identifier the
// scheduler does not know. Callers treat it as success.
var ErrNotificationNotFound = errors.New("notification not found")

// Interruption levels for notification content
const (
	InterruptionActive        = "active"
	InterruptionTimeSensitive = "timeSensitive"
	InterruptionCritical      = "critical"
)

// Content is what a notification shows and carries
type Content struct {
	Title             string        `json:"title"`
	Body              string        `json:"body"`
	Payload           model.Payload `json:"-"`
	Sound             bool          `json:"sound"`
	InterruptionLevel string        `json:"interruption_level,omitempty"`
}

// Category returns the category of the carried payload
func (c Content) Category() string {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.Category()
}

// Request asks for a single-fire notification at Trigger
type Request struct {
	Content Content
	Trigger time.Time
}

// Scheduled is a notification known to the scheduler
type Scheduled struct {
	ID      string    `json:"id"`
	Content Content   `json:"content"`
	Trigger time.Time `json:"trigger"`
}

// Action is a button registered on a category
type Action struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Foreground  bool   `json:"foreground"`
	Destructive bool   `json:"destructive"`
}

// Notifier schedules and cancels local notifications
type Notifier interface {
	Schedule(ctx context.Context, req Request) (string, error)
	Cancel(ctx context.Context, id string) error
	ListScheduled(ctx context.Context) ([]Scheduled, error)
	RegisterCategory(ctx context.Context, name string, actions []Action) error
}

// Listener receives fired notifications. HandleNotification decides how
// the notification is presented; NotificationReceived runs afterwards for
// notifications that were presented while the process is in the
// foreground.
type Listener interface {
	HandleNotification(ctx context.Context, n Scheduled) model.DisplayDecision
	NotificationReceived(ctx context.Context, n Scheduled)
}

// Presenter puts a notification in front of the user
type Presenter interface {
	Present(ctx context.Context, n Scheduled, decision model.DisplayDecision)
}
