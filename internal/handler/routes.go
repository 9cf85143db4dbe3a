package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"
)

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	db     Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// GetHealth checks database connectivity
func (h *HealthHandler) GetHealth(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error("health check failed: database unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"service":  "medication-reminders",
	})
}

// Handlers groups every HTTP handler the daemon serves
type Handlers struct {
	Health        *HealthHandler
	Medications   *MedicationHandler
	History       *HistoryHandler
	Notifications *NotificationHandler
}

// withID adapts a handler taking the :id path parameter
func withID(fn func(*gin.Context, types.UUID)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id types.UUID
		if !bindPathUUID(c, "id", &id) {
			return
		}
		fn(c, id)
	}
}

// withSchedule adapts a handler taking the :id and :scheduleId path
// parameters
func withSchedule(fn func(*gin.Context, types.UUID, types.UUID)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id, scheduleID types.UUID
		if !bindPathUUID(c, "id", &id) || !bindPathUUID(c, "scheduleId", &scheduleID) {
			return
		}
		fn(c, id, scheduleID)
	}
}

// RegisterRoutes mounts all endpoints on r
func RegisterRoutes(r gin.IRouter, h Handlers) {
	r.GET("/health", h.Health.GetHealth)

	v1 := r.Group("/api/v1")

	meds := v1.Group("/medications")
	meds.POST("", h.Medications.CreateMedication)
	meds.GET("", h.Medications.ListMedications)
	meds.GET("/:id", withID(h.Medications.GetMedication))
	meds.DELETE("/:id", withID(h.Medications.ArchiveMedication))
	meds.POST("/:id/schedules", withID(h.Medications.AddSchedule))
	meds.PUT("/:id/schedules/:scheduleId", withSchedule(h.Medications.UpdateSchedule))
	meds.GET("/:id/notification-settings", withID(h.Medications.GetSettings))
	meds.PUT("/:id/notification-settings", withID(h.Medications.UpdateSettings))
	meds.POST("/:id/doses", withID(h.History.LogDose))
	meds.GET("/:id/doses", withID(h.History.ListDoses))

	v1.POST("/daily-status", h.Medications.LogDailyStatus)
	v1.POST("/episodes", h.History.CreateEpisode)
	v1.PUT("/episodes/:id/end", withID(h.History.EndEpisode))

	notifications := v1.Group("/notifications")
	notifications.GET("/scheduled", h.Notifications.ListScheduled)
	notifications.PUT("/enabled", h.Notifications.SetEnabled)
	notifications.POST("/reschedule", h.Notifications.RescheduleAll)
	notifications.POST("/refresh", h.Notifications.Refresh)
	notifications.GET("/orphans", h.Notifications.FindOrphans)
	notifications.POST("/orphans/repair", h.Notifications.RepairOrphans)
	notifications.POST("/responses", h.Notifications.HandleResponse)

	v1.GET("/errors", h.Notifications.ListErrors)
}
