package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-report-api/internal/dto"
	"github.com/noah-isme/lms-report-api/internal/models"
	"github.com/noah-isme/lms-report-api/internal/plugins"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
	"github.com/noah-isme/lms-report-api/pkg/response"
)

type componentService interface {
	AddComponent(ctx context.Context, userID, reportID string, req dto.AddComponentRequest) (*models.ComponentInstance, error)
	RemoveComponent(ctx context.Context, userID, reportID, kind, instanceID string) error
	ListPlugins(ctx context.Context, reportID, kind string) ([]plugins.Descriptor, error)
}

// ComponentHandler manages the plugin instances attached to a report.
type ComponentHandler struct {
	service componentService
}

// NewComponentHandler constructs handler.
func NewComponentHandler(svc componentService) *ComponentHandler {
	return &ComponentHandler{service: svc}
}

// Add godoc
// @Summary Attach component
// @Tags Components
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.AddComponentRequest true "Component payload"
// @Success 201 {object} response.Envelope
// @Router /reports/{id}/components [post]
func (h *ComponentHandler) Add(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AddComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid component payload"))
		return
	}

	inst, err := h.service.AddComponent(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inst)
}

// Remove godoc
// @Summary Detach component
// @Tags Components
// @Param id path string true "Report ID"
// @Param kind path string true "Component kind"
// @Param instanceId path string true "Instance ID"
// @Success 204 {object} response.Envelope
// @Router /reports/{id}/components/{kind}/{instanceId} [delete]
func (h *ComponentHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	err := h.service.RemoveComponent(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("kind"), c.Param("instanceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Plugins godoc
// @Summary List attachable plugins
// @Tags Components
// @Produce json
// @Param id path string true "Report ID"
// @Param kind path string true "Component kind"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/plugins/{kind} [get]
func (h *ComponentHandler) Plugins(c *gin.Context) {
	descriptors, err := h.service.ListPlugins(c.Request.Context(), c.Param("id"), c.Param("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, descriptors, nil)
}
