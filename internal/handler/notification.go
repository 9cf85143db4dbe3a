package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const (
	defaultErrorLimit = 50
	maxErrorLimit     = 500
)

// NotificationHandler exposes the scheduled window, the reconciler and
// the response path over HTTP
type NotificationHandler struct {
	admin      NotificationAdmin
	reconciler OrphanReconciler
	responses  ResponseHandler
	errors     ErrorLogReader
	logger     *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(
	admin NotificationAdmin,
	reconciler OrphanReconciler,
	responses ResponseHandler,
	errors ErrorLogReader,
	logger *zap.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		admin:      admin,
		reconciler: reconciler,
		responses:  responses,
		errors:     errors,
		logger:     logger,
	}
}

// ListScheduled returns every pending notification
func (h *NotificationHandler) ListScheduled(c *gin.Context) {
	pending, err := h.admin.GetAllScheduled(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to list scheduled notifications", err)
		return
	}

	out := make([]ScheduledNotification, 0, len(pending))
	for _, n := range pending {
		out = append(out, toScheduledNotification(n))
	}

	c.JSON(http.StatusOK, out)
}

// SetEnabled flips the global notification switch
func (h *NotificationHandler) SetEnabled(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if err := h.admin.SetNotificationsEnabled(c.Request.Context(), *req.Enabled); err != nil {
		respondError(c, h.logger, "Failed to toggle notifications", err)
		return
	}

	h.logger.Info("notifications toggled", zap.Bool("enabled", *req.Enabled))
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// RescheduleAll cancels and rebuilds the whole window
func (h *NotificationHandler) RescheduleAll(c *gin.Context) {
	if err := h.admin.RescheduleAll(c.Request.Context()); err != nil {
		respondError(c, h.logger, "Failed to reschedule notifications", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Refresh tops up the window without cancelling
func (h *NotificationHandler) Refresh(c *gin.Context) {
	if err := h.admin.Refresh(c.Request.Context()); err != nil {
		respondError(c, h.logger, "Failed to refresh notifications", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// FindOrphans reports mappings and notifications that disagree
func (h *NotificationHandler) FindOrphans(c *gin.Context) {
	report, err := h.reconciler.FindOrphans(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to find orphans", err)
		return
	}

	c.JSON(http.StatusOK, toOrphanReportResponse(report))
}

// RepairOrphans removes what FindOrphans reports and returns the report
// it acted on
func (h *NotificationHandler) RepairOrphans(c *gin.Context) {
	report, err := h.reconciler.RepairOrphans(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to repair orphans", err)
		return
	}

	c.JSON(http.StatusOK, toOrphanReportResponse(report))
}

// HandleResponse feeds a user action on a delivered notification to the
// dispatcher. Failures inside the dispatcher surface to the user as a
// notice, so a well-formed request is always accepted.
func (h *NotificationHandler) HandleResponse(c *gin.Context) {
	var req NotificationResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	payload, err := model.DecodePayload(req.Payload)
	if err != nil {
		badRequest(c, "Invalid notification payload", err)
		return
	}

	h.responses.HandleResponse(c.Request.Context(), service.Response{
		ActionID: req.ActionID,
		Notification: notify.Scheduled{
			ID:      req.NotificationID,
			Content: notify.Content{Payload: payload},
		},
	})

	c.Status(http.StatusAccepted)
}

// ListErrors returns the most recent error log entries
func (h *NotificationHandler) ListErrors(c *gin.Context) {
	limit := defaultErrorLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer", err)
			return
		}
		limit = min(n, maxErrorLimit)
	}

	entries, err := h.errors.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, "Failed to read error log", err)
		return
	}
	if entries == nil {
		entries = []errorlog.Entry{}
	}

	c.JSON(http.StatusOK, entries)
}
