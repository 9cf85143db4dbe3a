package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// MedicationHandler implements the medication and day status endpoints
type MedicationHandler struct {
	service  MedicationService
	settings SettingsService
	logger   *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(service MedicationService, settings SettingsService, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		service:  service,
		settings: settings,
		logger:   logger,
	}
}

// CreateMedication adds a medication and schedules its reminders
func (h *MedicationHandler) CreateMedication(c *gin.Context) {
	var req CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		badRequest(c, "Invalid request body", err)
		return
	}

	med := &model.Medication{
		Name:            req.Name,
		Category:        model.MedicationCategory(req.Category),
		DosageAmount:    req.DosageAmount,
		DosageUnit:      req.DosageUnit,
		DefaultQuantity: req.DefaultQuantity,
	}
	for _, s := range req.Schedules {
		med.Schedules = append(med.Schedules, *s.toModel("", ""))
	}

	if err := h.service.AddMedication(c.Request.Context(), med); err != nil {
		respondError(c, h.logger, "Failed to add medication", err)
		return
	}

	h.logger.Info("medication added",
		zap.String("medication_id", med.ID),
		zap.Int("schedules", len(med.Schedules)),
	)

	c.JSON(http.StatusCreated, med)
}

// ListMedications lists active medications
func (h *MedicationHandler) ListMedications(c *gin.Context) {
	meds, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to list medications", err)
		return
	}
	if meds == nil {
		meds = []model.Medication{}
	}

	c.JSON(http.StatusOK, meds)
}

// GetMedication returns one medication with its schedules
func (h *MedicationHandler) GetMedication(c *gin.Context, id types.UUID) {
	med, err := h.service.GetMedication(c.Request.Context(), uuidToString(id))
	if err != nil {
		respondError(c, h.logger, "Failed to get medication", err)
		return
	}

	c.JSON(http.StatusOK, med)
}

// ArchiveMedication archives a medication and withdraws its reminders
func (h *MedicationHandler) ArchiveMedication(c *gin.Context, id types.UUID) {
	medicationID := uuidToString(id)

	if err := h.service.ArchiveMedication(c.Request.Context(), medicationID); err != nil {
		respondError(c, h.logger, "Failed to archive medication", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddSchedule adds a schedule to a medication
func (h *MedicationHandler) AddSchedule(c *gin.Context, id types.UUID) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	sched := req.toModel(uuidToString(id), "")
	if err := h.service.AddSchedule(c.Request.Context(), sched); err != nil {
		respondError(c, h.logger, "Failed to add schedule", err)
		return
	}

	c.JSON(http.StatusCreated, sched)
}

// UpdateSchedule replaces an existing schedule
func (h *MedicationHandler) UpdateSchedule(c *gin.Context, id types.UUID, scheduleID types.UUID) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	sched := req.toModel(uuidToString(id), uuidToString(scheduleID))
	if err := h.service.UpdateSchedule(c.Request.Context(), sched); err != nil {
		respondError(c, h.logger, "Failed to update schedule", err)
		return
	}

	c.JSON(http.StatusOK, sched)
}

// GetSettings returns the effective notification settings of a medication
func (h *MedicationHandler) GetSettings(c *gin.Context, id types.UUID) {
	medicationID := uuidToString(id)

	s, err := h.settings.GetEffectiveSettings(c.Request.Context(), medicationID)
	if err != nil {
		respondError(c, h.logger, "Failed to get notification settings", err)
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(medicationID, s))
}

// UpdateSettings stores notification setting overrides of a medication
func (h *MedicationHandler) UpdateSettings(c *gin.Context, id types.UUID) {
	medicationID := uuidToString(id)

	var req model.NotificationSettingsOverride
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	if err := h.settings.SaveOverride(ctx, medicationID, &req); err != nil {
		respondError(c, h.logger, "Failed to update notification settings", err)
		return
	}

	s, err := h.settings.GetEffectiveSettings(ctx, medicationID)
	if err != nil {
		respondError(c, h.logger, "Failed to get notification settings", err)
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(medicationID, s))
}

// LogDailyStatus records a day status, which quiets that day's check-in
func (h *MedicationHandler) LogDailyStatus(c *gin.Context) {
	var req DailyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	entry, err := h.service.LogStatus(c.Request.Context(), req.Date, req.Status, req.Notes, req.Timezone)
	if err != nil {
		respondError(c, h.logger, "Failed to log day status", err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}
