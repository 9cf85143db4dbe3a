package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/handler"
)

// client calls the reminder daemon's admin API
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx answer from the daemon
type apiError struct {
	Status int
	Body   handler.ErrorResponse
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, e.Body.Code, e.Body.Message)
	if e.Body.Details != nil {
		msg += " (" + *e.Body.Details + ")"
	}
	return msg
}

func (c *client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr.Body); err != nil {
			apiErr.Body.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *client) scheduled(ctx context.Context) ([]handler.ScheduledNotification, error) {
	var out []handler.ScheduledNotification
	err := c.do(ctx, http.MethodGet, "/api/v1/notifications/scheduled", nil, &out)
	return out, err
}

func (c *client) orphans(ctx context.Context, repair bool) (*handler.OrphanReportResponse, error) {
	method, path := http.MethodGet, "/api/v1/notifications/orphans"
	if repair {
		method, path = http.MethodPost, "/api/v1/notifications/orphans/repair"
	}

	var out handler.OrphanReportResponse
	if err := c.do(ctx, method, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) rescheduleAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/notifications/reschedule", nil, nil)
}

func (c *client) refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/notifications/refresh", nil, nil)
}

func (c *client) setEnabled(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPut, "/api/v1/notifications/enabled", handler.ToggleRequest{Enabled: &enabled}, nil)
}

func (c *client) recentErrors(ctx context.Context, limit int) ([]errorlog.Entry, error) {
	var out []errorlog.Entry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/errors?limit=%d", limit), nil, &out)
	return out, err
}
