package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/settings"
	"go.uber.org/zap"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL_ERROR"
)

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// uuidToString converts types.UUID to string
func uuidToString(u types.UUID) string {
	return u.String()
}

// bindPathUUID binds a required UUID path parameter. On failure it writes
// a 400 and returns false.
func bindPathUUID(c *gin.Context, name string, dst *types.UUID) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), dst, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		badRequest(c, fmt.Sprintf("Invalid format for parameter %s", name), err)
		return false
	}
	return true
}

func badRequest(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Code: CodeValidation, Message: message}
	if err != nil {
		resp.Details = stringPtr(err.Error())
	}
	c.JSON(http.StatusBadRequest, resp)
}

// respondError maps service errors to a status code and the standard
// error body
func respondError(c *gin.Context, logger *zap.Logger, message string, err error) {
	status := http.StatusInternalServerError
	code := CodeInternal

	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, settings.ErrInvalidOverride):
		status, code = http.StatusBadRequest, CodeValidation
	case errors.Is(err, service.ErrMedicationNotFound),
		errors.Is(err, service.ErrScheduleNotFound),
		errors.Is(err, repository.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrMappingTableMissing):
		status, code = http.StatusConflict, CodeConflict
	}

	if status >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err), zap.String("path", c.Request.URL.Path))
		_ = c.Error(err)
	} else {
		logger.Warn(message, zap.Error(err), zap.String("path", c.Request.URL.Path))
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: stringPtr(err.Error()),
	})
}
