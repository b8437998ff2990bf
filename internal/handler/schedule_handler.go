package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-report-api/internal/dto"
	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
	"github.com/noah-isme/lms-report-api/pkg/response"
)

type scheduleService interface {
	Create(ctx context.Context, userID, reportID string, req dto.CreateScheduleRequest) (*models.ScheduledRun, error)
	List(ctx context.Context, reportID string) ([]models.ScheduledRun, error)
	Delete(ctx context.Context, id string) error
	RunNow(ctx context.Context, id string) error
}

// ScheduleHandler manages the scheduled runs attached to a report.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Create godoc
// @Summary Create schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /reports/{id}/schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}

	run, err := h.service.Create(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// List godoc
// @Summary List schedules for a report
// @Tags Schedules
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	runs, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}

// Delete godoc
// @Summary Delete schedule
// @Tags Schedules
// @Param scheduleId path string true "Schedule ID"
// @Success 204 {object} response.Envelope
// @Router /schedules/{scheduleId} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("scheduleId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RunNow godoc
// @Summary Fire schedule immediately
// @Tags Schedules
// @Produce json
// @Param scheduleId path string true "Schedule ID"
// @Success 202 {object} response.Envelope
// @Router /schedules/{scheduleId}/run [post]
func (h *ScheduleHandler) RunNow(c *gin.Context) {
	if err := h.service.RunNow(c.Request.Context(), c.Param("scheduleId")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "delivered"}, nil)
}
