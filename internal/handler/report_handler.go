package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-report-api/internal/dto"
	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
	"github.com/noah-isme/lms-report-api/pkg/response"
)

type reportService interface {
	Create(ctx context.Context, userID string, req dto.CreateReportRequest) (*models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	Update(ctx context.Context, userID, id string, req dto.UpdateReportRequest) (*models.Report, error)
	Delete(ctx context.Context, userID, id string) error
	ListMine(ctx context.Context, userID string) ([]models.Report, error)
	Duplicate(ctx context.Context, userID, id, name string) (*models.Report, error)
	Execute(ctx context.Context, reportID string, rctx *models.RequestContext) (*dto.ExecuteResponse, error)
	ImportXML(ctx context.Context, userID, document string) (*models.Report, error)
	ExportXML(ctx context.Context, reportID string) (string, error)
	AuditTrail(ctx context.Context, userID, reportID string, limit int) ([]models.AuditEvent, error)
}

// ReportHandler exposes the report CRUD and execution endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Create godoc
// @Summary Create report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	rpt, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rpt)
}

// Get godoc
// @Summary Get one report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	rpt, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rpt, nil)
}

// List godoc
// @Summary List visible reports
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	reports, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}

// Update godoc
// @Summary Update report metadata
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.UpdateReportRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [patch]
func (h *ReportHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	rpt, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rpt, nil)
}

// Delete godoc
// @Summary Delete report
// @Tags Reports
// @Param id path string true "Report ID"
// @Success 204 {object} response.Envelope
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Duplicate godoc
// @Summary Duplicate report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.DuplicateReportRequest true "Copy name"
// @Success 201 {object} response.Envelope
// @Router /reports/{id}/duplicate [post]
func (h *ReportHandler) Duplicate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	// an empty body duplicates under the default name
	var req dto.DuplicateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid duplicate payload"))
		return
	}

	rpt, err := h.service.Duplicate(c.Request.Context(), claims.UserID, c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rpt)
}

// Execute godoc
// @Summary Execute report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ExecuteRequest true "Runtime inputs"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/execute [post]
func (h *ReportHandler) Execute(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	// an empty body runs with the report's defaults
	var req dto.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid execution payload"))
		return
	}

	res, err := h.service.Execute(c.Request.Context(), c.Param("id"), executionContext(claims.UserID, req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Import godoc
// @Summary Import report from XML
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ImportReportRequest true "XML document"
// @Success 201 {object} response.Envelope
// @Router /reports/import [post]
func (h *ReportHandler) Import(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ImportReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}

	rpt, err := h.service.ImportXML(c.Request.Context(), claims.UserID, req.Document)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rpt)
}

// Export godoc
// @Summary Export report definition as XML
// @Tags Reports
// @Produce xml
// @Param id path string true "Report ID"
// @Success 200 {string} string
// @Router /reports/{id}/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	doc, err := h.service.ExportXML(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="report.xml"`)
	c.Data(http.StatusOK, "application/xml", []byte(doc))
}

// Audit godoc
// @Summary List report audit events
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Param limit query int false "Maximum number of events"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/audit [get]
func (h *ReportHandler) Audit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.service.AuditTrail(c.Request.Context(), claims.UserID, c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// executionContext maps the request payload onto the runtime inputs of one
// execution.
func executionContext(userID string, req dto.ExecuteRequest) *models.RequestContext {
	rctx := &models.RequestContext{
		UserID:     userID,
		Filters:    req.Filters,
		Search:     req.Search,
		SortColumn: req.SortColumn,
		SortDir:    req.SortDir,
	}

	if req.StartDate != "" {
		if t, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			rctx.StartDate = t
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			rctx.EndDate = t
		}
	}

	if req.PageSize > 0 {
		rctx.Limit = req.PageSize
	}
	if req.Page > 1 {
		// the builder turns the page into an offset against the
		// effective page size, which it owns
		rctx.Page = req.Page
	}

	if req.RoleSwitch != nil {
		rctx.RoleSwitch = &models.RoleSwitch{
			Role:         req.RoleSwitch.Role,
			ContextLevel: models.ContextLevel(req.RoleSwitch.ContextLevel),
		}
	}
	return rctx
}
