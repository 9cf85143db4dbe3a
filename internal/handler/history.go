package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// DoseLog appends to and reads the dose log
type DoseLog interface {
	Create(ctx context.Context, dose *model.Dose) (*model.Dose, error)
	ListForMedication(ctx context.Context, medicationID string) ([]model.Dose, error)
}

// EpisodeStore records symptom episodes
type EpisodeStore interface {
	CreateEpisode(ctx context.Context, ep *model.Episode) error
	EndEpisode(ctx context.Context, episodeID string, endTime int64) error
}

// LogDoseRequest logs a dose outside of a notification. Timestamp is
// epoch milliseconds; zero means now.
type LogDoseRequest struct {
	ScheduleID *string `json:"schedule_id"`
	Timestamp  int64   `json:"timestamp"`
	Quantity   float64 `json:"quantity"`
	Status     string  `json:"status" binding:"required,oneof=taken skipped"`
	Notes      *string `json:"notes"`
}

// EpisodeRequest starts an episode, optionally already ended
type EpisodeRequest struct {
	StartTime int64  `json:"start_time" binding:"required"`
	EndTime   *int64 `json:"end_time"`
}

// EndEpisodeRequest closes an ongoing episode
type EndEpisodeRequest struct {
	EndTime int64 `json:"end_time" binding:"required"`
}

// HistoryHandler records doses and episodes entered in the app. Both
// feed the suppression rules of later notifications.
type HistoryHandler struct {
	medications MedicationService
	doses       DoseLog
	episodes    EpisodeStore
	logger      *zap.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(medications MedicationService, doses DoseLog, episodes EpisodeStore, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		medications: medications,
		doses:       doses,
		episodes:    episodes,
		logger:      logger,
	}
}

// LogDose appends a dose for a medication
func (h *HistoryHandler) LogDose(c *gin.Context, id types.UUID) {
	var req LogDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	med, err := h.medications.GetMedication(ctx, uuidToString(id))
	if err != nil {
		respondError(c, h.logger, "Failed to log dose", err)
		return
	}
	if req.ScheduleID != nil && med.FindSchedule(*req.ScheduleID) == nil {
		respondError(c, h.logger, "Failed to log dose", service.ErrScheduleNotFound)
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = med.DefaultQuantity
	}

	dose, err := h.doses.Create(ctx, &model.Dose{
		MedicationID: med.ID,
		ScheduleID:   req.ScheduleID,
		Timestamp:    req.Timestamp,
		Quantity:     quantity,
		Status:       model.DoseStatus(req.Status),
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to log dose", err)
		return
	}

	c.JSON(http.StatusCreated, dose)
}

// ListDoses returns the dose log of a medication
func (h *HistoryHandler) ListDoses(c *gin.Context, id types.UUID) {
	doses, err := h.doses.ListForMedication(c.Request.Context(), uuidToString(id))
	if err != nil {
		respondError(c, h.logger, "Failed to list doses", err)
		return
	}
	if doses == nil {
		doses = []model.Dose{}
	}

	c.JSON(http.StatusOK, doses)
}

// CreateEpisode records an episode
func (h *HistoryHandler) CreateEpisode(c *gin.Context) {
	var req EpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if req.EndTime != nil && *req.EndTime < req.StartTime {
		badRequest(c, "end_time must not be before start_time", nil)
		return
	}

	ep := &model.Episode{StartTime: req.StartTime, EndTime: req.EndTime}
	if err := h.episodes.CreateEpisode(c.Request.Context(), ep); err != nil {
		respondError(c, h.logger, "Failed to create episode", err)
		return
	}

	c.JSON(http.StatusCreated, ep)
}

// EndEpisode closes an episode
func (h *HistoryHandler) EndEpisode(c *gin.Context, id types.UUID) {
	var req EndEpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if err := h.episodes.EndEpisode(c.Request.Context(), uuidToString(id), req.EndTime); err != nil {
		respondError(c, h.logger, "Failed to end episode", err)
		return
	}

	c.Status(http.StatusNoContent)
}
