package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-report-api/internal/dto"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
	"github.com/noah-isme/lms-report-api/pkg/export"
	"github.com/noah-isme/lms-report-api/pkg/response"
)

type exportService interface {
	ExportNow(ctx context.Context, reportID, userID, format string) (*dto.ExportResponse, error)
	Open(token string) (string, error)
}

// ExportHandler renders report artifacts and serves them behind signed
// download tokens.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Export report artifact
// @Tags Exports
// @Produce json
// @Param id path string true "Report ID"
// @Param format query string true "Artifact format (csv or pdf)"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/artifact [post]
func (h *ExportHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.Query("format")
	if format == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format query parameter required"))
		return
	}

	res, err := h.service.ExportNow(c.Request.Context(), c.Param("id"), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Download godoc
// @Summary Download rendered artifact
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	path, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, "report"+artifactSuffix(path))
}

// Formats godoc
// @Summary List supported export formats
// @Tags Exports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exports/formats [get]
func (h *ExportHandler) Formats(c *gin.Context) {
	response.JSON(c, http.StatusOK, export.Formats(), nil)
}

func artifactSuffix(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}
