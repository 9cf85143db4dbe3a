package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/handler"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

func newDaemon(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		_, _ = body.ReadFrom(r.Body)
		seen = append(seen, recordedRequest{method: r.Method, path: r.URL.RequestURI(), body: body.Bytes()})

		respond, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		respond(w)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func writeJSON(status int, v interface{}) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestScheduledCommand(t *testing.T) {
	srv, _ := newDaemon(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/notifications/scheduled": writeJSON(http.StatusOK, []handler.ScheduledNotification{
			{ID: "n1", Title: "Time for Aspirin", Category: model.CategoryMedicationReminder, Trigger: time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)},
			{ID: "n2", Title: "How was your day?", Category: model.CategoryDailyCheckin, Trigger: time.Date(2026, 5, 2, 21, 0, 0, 0, time.UTC)},
		}),
	})

	out, err := run(t, srv, "scheduled")
	require.NoError(t, err)
	assert.Contains(t, out, "Time for Aspirin")
	assert.Contains(t, out, model.CategoryDailyCheckin)
	assert.Contains(t, out, "2 pending")
}

func TestOrphansCommand_Repair(t *testing.T) {
	srv, seen := newDaemon(t, map[string]func(w http.ResponseWriter){
		"POST /api/v1/notifications/orphans/repair": writeJSON(http.StatusOK, handler.OrphanReportResponse{
			MappingCount:     4,
			ScheduledCount:   3,
			OrphanedMappings: []model.NotificationMapping{{ID: "map-1", NotificationID: "gone", Kind: model.KindReminder, Date: "2026-05-02"}},
		}),
	})

	out, err := run(t, srv, "orphans", "--repair")
	require.NoError(t, err)
	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodPost, (*seen)[0].method)
	assert.Contains(t, out, "repaired orphaned mapping map-1 -> gone")
}

func TestOrphansCommand_Clean(t *testing.T) {
	srv, _ := newDaemon(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/notifications/orphans": writeJSON(http.StatusOK, handler.OrphanReportResponse{Clean: true, MappingCount: 3, ScheduledCount: 3}),
	})

	out, err := run(t, srv, "orphans")
	require.NoError(t, err)
	assert.Contains(t, out, "no orphans")
}

func TestToggleCommand(t *testing.T) {
	srv, seen := newDaemon(t, map[string]func(w http.ResponseWriter){
		"PUT /api/v1/notifications/enabled": writeJSON(http.StatusOK, map[string]bool{"enabled": false}),
	})

	out, err := run(t, srv, "toggle", "OFF")
	require.NoError(t, err)
	assert.Contains(t, out, "notifications off")
	require.Len(t, *seen, 1)
	assert.JSONEq(t, `{"enabled":false}`, string((*seen)[0].body))

	_, err = run(t, srv, "toggle", "maybe")
	assert.Error(t, err)
}

func TestRescheduleCommand_SurfacesAPIError(t *testing.T) {
	details := "notification mapping table does not exist"
	srv, _ := newDaemon(t, map[string]func(w http.ResponseWriter){
		"POST /api/v1/notifications/reschedule": writeJSON(http.StatusConflict, handler.ErrorResponse{
			Code:    handler.CodeConflict,
			Message: "Failed to reschedule notifications",
			Details: &details,
		}),
	})

	_, err := run(t, srv, "reschedule")
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Contains(t, err.Error(), details)
}

func TestErrorsCommand_PassesLimit(t *testing.T) {
	srv, seen := newDaemon(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/errors": writeJSON(http.StatusOK, []map[string]interface{}{
			{"id": "e1", "severity": "high", "category": "notification_response", "message": "medication not found", "timestamp": time.Now()},
		}),
	})

	out, err := run(t, srv, "errors", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "medication not found")
	require.Len(t, *seen, 1)
	assert.Equal(t, "/api/v1/errors?limit=5", (*seen)[0].path)
}

func TestRefreshCommand(t *testing.T) {
	srv, _ := newDaemon(t, map[string]func(w http.ResponseWriter){
		"POST /api/v1/notifications/refresh": func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) },
	})

	out, err := run(t, srv, "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "refreshed")
}

func TestServerFromEnvironment(t *testing.T) {
	srv, seen := newDaemon(t, map[string]func(w http.ResponseWriter){
		"POST /api/v1/notifications/refresh": func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) },
	})
	t.Setenv("REMINDERS_URL", srv.URL)

	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs([]string{"refresh"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "refreshed")
	assert.Len(t, *seen, 1)
}
