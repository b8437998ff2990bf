package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/dto"
	"github.com/noah-isme/lms-report-api/internal/middleware"
	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

type reportServiceMock struct {
	report      *models.Report
	reports     []models.Report
	execResp    *dto.ExecuteResponse
	auditEvents []models.AuditEvent
	err         error
	lastUserID  string
}

func (m *reportServiceMock) Create(ctx context.Context, userID string, req dto.CreateReportRequest) (*models.Report, error) {
	m.lastUserID = userID
	return m.report, m.err
}

func (m *reportServiceMock) Get(ctx context.Context, id string) (*models.Report, error) {
	return m.report, m.err
}

func (m *reportServiceMock) Update(ctx context.Context, userID, id string, req dto.UpdateReportRequest) (*models.Report, error) {
	return m.report, m.err
}

func (m *reportServiceMock) Delete(ctx context.Context, userID, id string) error {
	return m.err
}

func (m *reportServiceMock) ListMine(ctx context.Context, userID string) ([]models.Report, error) {
	m.lastUserID = userID
	return m.reports, m.err
}

func (m *reportServiceMock) Duplicate(ctx context.Context, userID, id, name string) (*models.Report, error) {
	return m.report, m.err
}

func (m *reportServiceMock) Execute(ctx context.Context, reportID string, rctx *models.RequestContext) (*dto.ExecuteResponse, error) {
	m.lastUserID = rctx.UserID
	return m.execResp, m.err
}

func (m *reportServiceMock) ImportXML(ctx context.Context, userID, document string) (*models.Report, error) {
	return m.report, m.err
}

func (m *reportServiceMock) ExportXML(ctx context.Context, reportID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return `<?xml version="1.0"?><report version="2.0"></report>`, nil
}

func (m *reportServiceMock) AuditTrail(ctx context.Context, userID, reportID string, limit int) ([]models.AuditEvent, error) {
	m.lastUserID = userID
	return m.auditEvents, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func authenticate(c *gin.Context, userID string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID})
}

func TestReportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{report: &models.Report{ID: "r1", Name: "Active users"}}
	h := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateReportRequest{Name: "Active users", Type: "users"})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	authenticate(c, "u1")

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "u1", mockSvc.lastUserID)
}

func TestReportHandlerCreateUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/reports", []byte(`{}`))
	h.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandlerExecute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		execResp: &dto.ExecuteResponse{Table: &models.TabularResult{RowCount: 2}},
	}
	h := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ExecuteRequest{Filters: map[string]string{"status": "active"}})
	c, w := newGinContext(http.MethodPost, "/reports/r1/execute", payload)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	authenticate(c, "viewer")

	h.Execute(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "viewer", mockSvc.lastUserID)
}

func TestReportHandlerExecuteEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{execResp: &dto.ExecuteResponse{}}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/reports/r1/execute", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	authenticate(c, "viewer")

	h.Execute(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReportHandlerExecuteDenied(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{err: appErrors.ErrAccessDenied}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/reports/r1/execute", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	authenticate(c, "viewer")

	h.Execute(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportHandlerExportXML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reports/r1/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	require.Contains(t, w.Body.String(), `version="2.0"`)
}

func TestReportHandlerAudit(t *testing.T) {
	mock := &reportServiceMock{auditEvents: []models.AuditEvent{{ID: "e1", Name: models.EventReportUpdated, ObjectID: "r1"}}}
	h := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/reports/r1/audit?limit=5", nil)
	authenticate(c, "u1")
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	h.Audit(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1", mock.lastUserID)
	require.Contains(t, w.Body.String(), models.EventReportUpdated)
}

func TestExecutionContextMapping(t *testing.T) {
	rctx := executionContext("u1", dto.ExecuteRequest{
		Page:       3,
		PageSize:   20,
		StartDate:  "2026-01-01",
		SortColumn: "name",
		SortDir:    "desc",
		RoleSwitch: &dto.RoleSwitchDTO{Role: "manager", ContextLevel: "course"},
	})
	require.Equal(t, 3, rctx.Page)
	require.Equal(t, 20, rctx.Limit)
	require.Zero(t, rctx.Offset, "paging is resolved against the effective page size at query time")
	require.Equal(t, 2026, rctx.StartDate.Year())
	require.Equal(t, "name", rctx.SortColumn)
	require.NotNil(t, rctx.RoleSwitch)
	require.Equal(t, models.LevelCourse, rctx.RoleSwitch.ContextLevel)
}
