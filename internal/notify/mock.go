package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

// MockNotifier is an in-memory implementation of Notifier for testing
type MockNotifier struct {
	mu sync.Mutex

	pending    map[string]Scheduled
	categories map[string][]Action
	next       int

	// Requests records every Schedule call, successful or not
	Requests []Request
	// Cancelled records every Cancel call
	Cancelled []string
	// Alerts records every Alert call as "title: body"
	Alerts []string

	// ScheduleErr, when set, decides whether a Schedule call fails
	ScheduleErr func(req Request) error
	// CancelErr is returned by Cancel for known identifiers when set
	CancelErr error
}

var _ Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		pending:    make(map[string]Scheduled),
		categories: make(map[string][]Action),
	}
}

// Schedule records the request and stores it as pending
func (m *MockNotifier) Schedule(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.ScheduleErr != nil {
		if err := m.ScheduleErr(req); err != nil {
			return "", err
		}
	}

	m.next++
	id := fmt.Sprintf("notification-%d", m.next)
	m.pending[id] = Scheduled{ID: id, Content: req.Content, Trigger: req.Trigger}
	return id, nil
}

// Cancel removes a pending notification
func (m *MockNotifier) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Cancelled = append(m.Cancelled, id)
	if _, ok := m.pending[id]; !ok {
		return ErrNotificationNotFound
	}
	if m.CancelErr != nil {
		return m.CancelErr
	}
	delete(m.pending, id)
	return nil
}

// ListScheduled returns pending notifications ordered by trigger
func (m *MockNotifier) ListScheduled(ctx context.Context) ([]Scheduled, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Scheduled, 0, len(m.pending))
	for _, n := range m.pending {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Trigger.Equal(result[j].Trigger) {
			return result[i].ID < result[j].ID
		}
		return result[i].Trigger.Before(result[j].Trigger)
	})
	return result, nil
}

// RegisterCategory stores the category actions
func (m *MockNotifier) RegisterCategory(ctx context.Context, name string, actions []Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.categories[name] = actions
	return nil
}

// Alert records an out-of-band notice
func (m *MockNotifier) Alert(ctx context.Context, title, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Alerts = append(m.Alerts, title+": "+body)
}

// Drop forgets a pending notification without recording a cancel, the
// way a device reboot or a user clearing notifications would
func (m *MockNotifier) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, id)
}

// Inject adds a pending notification that was not scheduled through
// Schedule
func (m *MockNotifier) Inject(n Scheduled) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[n.ID] = n
}

// Get returns a pending notification
func (m *MockNotifier) Get(id string) (Scheduled, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.pending[id]
	return n, ok
}

// RequestCount returns the number of Schedule calls
func (m *MockNotifier) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// PendingCount returns the number of pending notifications
func (m *MockNotifier) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Category returns registered actions for a category
func (m *MockNotifier) Category(name string) ([]Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.categories[name]
	return a, ok
}

// RecordingPresenter collects presented notifications for tests
type RecordingPresenter struct {
	mu        sync.Mutex
	Presented []Scheduled
}

// Present records the notification
func (p *RecordingPresenter) Present(ctx context.Context, n Scheduled, decision model.DisplayDecision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Presented = append(p.Presented, n)
}

// Count returns the number of presented notifications
func (p *RecordingPresenter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Presented)
}
