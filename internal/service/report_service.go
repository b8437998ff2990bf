package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-report-api/internal/builder"
	"github.com/noah-isme/lms-report-api/internal/codec"
	"github.com/noah-isme/lms-report-api/internal/dto"
	"github.com/noah-isme/lms-report-api/internal/models"
	"github.com/noah-isme/lms-report-api/internal/plugins"
	"github.com/noah-isme/lms-report-api/internal/rbac"
	"github.com/noah-isme/lms-report-api/internal/report"
	"github.com/noah-isme/lms-report-api/internal/repository"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

type reportRepository interface {
	Create(ctx context.Context, rpt *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	Update(ctx context.Context, rpt *models.Report) error
	Delete(ctx context.Context, id string) error
	ListVisible(ctx context.Context, userID string) ([]models.Report, error)
	ListAll(ctx context.Context) ([]models.Report, error)
}

type resultCache interface {
	GetResult(ctx context.Context, reportID, fingerprint string) (*repository.CachedExecution, error)
	SetResult(ctx context.Context, reportID, fingerprint string, exec *repository.CachedExecution) error
	InvalidateReport(ctx context.Context, reportID string) error
}

type auditLog interface {
	Emit(ctx context.Context, event models.AuditEvent)
	ListForObject(ctx context.Context, objectID string, limit int) ([]models.AuditEvent, error)
}

// ReportService is the application surface over the report engine.
type ReportService struct {
	repo      reportRepository
	loader    *report.Loader
	builder   *builder.Builder
	registry  *plugins.Registry
	checker   rbac.AccessChecker
	cache     resultCache
	audit     auditLog
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewReportService(
	repo reportRepository,
	loader *report.Loader,
	exec *builder.Builder,
	registry *plugins.Registry,
	checker rbac.AccessChecker,
	cache resultCache,
	audit auditLog,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{
		repo:      repo,
		loader:    loader,
		builder:   exec,
		registry:  registry,
		checker:   checker,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create persists a new empty report owned by the caller.
func (s *ReportService) Create(ctx context.Context, userID string, req dto.CreateReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	components, err := codec.Encode(models.ComponentTree{})
	if err != nil {
		return nil, err
	}

	rpt := &models.Report{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Type:          models.ReportType(req.Type),
		OwnerID:       userID,
		CourseID:      req.CourseID,
		Visible:       req.Visible,
		Global:        req.Global,
		Components:    components,
		ExportFormats: req.ExportFormats,
		DisableTable:  req.DisableTable,
	}
	if err := s.repo.Create(ctx, rpt); err != nil {
		return nil, err
	}

	s.emit(ctx, models.EventReportCreated, rpt.ID, userID)
	return rpt, nil
}

// Get fetches one report.
func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	return s.repo.GetByID(ctx, id)
}

// Update patches report metadata and drops any cached executions.
func (s *ReportService) Update(ctx context.Context, userID, id string, req dto.UpdateReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	rpt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		rpt.Name = *req.Name
	}
	if req.CourseID != nil {
		rpt.CourseID = req.CourseID
	}
	if req.Visible != nil {
		rpt.Visible = *req.Visible
	}
	if req.Global != nil {
		rpt.Global = *req.Global
	}
	if req.ExportFormats != nil {
		rpt.ExportFormats = req.ExportFormats
	}
	if req.DisableTable != nil {
		rpt.DisableTable = *req.DisableTable
	}

	if err := s.repo.Update(ctx, rpt); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.emit(ctx, models.EventReportUpdated, id, userID)
	return rpt, nil
}

// Delete removes a report; its schedules go with it.
func (s *ReportService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.emit(ctx, models.EventReportDeleted, id, userID)
	return nil
}

// ListMine returns the reports the caller may see: everything for managers
// and site admins, otherwise their own plus globally published ones.
func (s *ReportService) ListMine(ctx context.Context, userID string) ([]models.Report, error) {
	manages, err := s.canManage(ctx, userID)
	if err != nil {
		return nil, err
	}
	if manages {
		return s.repo.ListAll(ctx)
	}
	return s.repo.ListVisible(ctx, userID)
}

// Duplicate copies a report, components included, under a new name.
func (s *ReportService) Duplicate(ctx context.Context, userID, id, name string) (*models.Report, error) {
	src, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	copyName := name
	if copyName == "" {
		copyName = src.Name + " (copy)"
	}
	dup := &models.Report{
		ID:            uuid.NewString(),
		Name:          copyName,
		Type:          src.Type,
		OwnerID:       userID,
		CourseID:      src.CourseID,
		Visible:       false,
		Global:        false,
		Components:    src.Components,
		ExportFormats: src.ExportFormats,
		DisableTable:  src.DisableTable,
	}
	if err := s.repo.Create(ctx, dup); err != nil {
		return nil, err
	}
	s.emit(ctx, models.EventReportCreated, dup.ID, userID)
	return dup, nil
}

// AddComponent attaches a configured plugin instance and persists the tree.
func (s *ReportService) AddComponent(ctx context.Context, userID, reportID string, req dto.AddComponentRequest) (*models.ComponentInstance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}

	def, err := s.loader.Load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	inst, err := s.loader.AddComponent(def, models.ComponentKind(req.Kind), req.Plugin, req.FormData)
	if err != nil {
		return nil, err
	}
	if err := s.loader.Save(ctx, def); err != nil {
		return nil, err
	}
	s.invalidate(ctx, reportID)
	s.emit(ctx, models.EventReportUpdated, reportID, userID)
	return inst, nil
}

// RemoveComponent detaches an instance and persists the tree.
func (s *ReportService) RemoveComponent(ctx context.Context, userID, reportID, kind, instanceID string) error {
	def, err := s.loader.Load(ctx, reportID)
	if err != nil {
		return err
	}
	if !s.loader.RemoveComponent(def, models.ComponentKind(kind), instanceID) {
		return appErrors.Clone(appErrors.ErrNotFound, "component not found")
	}
	if err := s.loader.Save(ctx, def); err != nil {
		return err
	}
	s.invalidate(ctx, reportID)
	s.emit(ctx, models.EventReportUpdated, reportID, userID)
	return nil
}

// ListPlugins returns the plugins attachable under kind for one report,
// excluding unique plugins already present.
func (s *ReportService) ListPlugins(ctx context.Context, reportID, kind string) ([]plugins.Descriptor, error) {
	def, err := s.loader.Load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.registry.List(models.ComponentKind(kind), def.Report.Type, def.Tree), nil
}

// Execute runs a report through the pipeline, consulting the result cache
// first. View events and execution metrics fire on every call.
func (s *ReportService) Execute(ctx context.Context, reportID string, rctx *models.RequestContext) (*dto.ExecuteResponse, error) {
	def, err := s.loader.Load(ctx, reportID)
	if err != nil {
		return nil, err
	}

	fp := fingerprint(rctx)
	if s.cache != nil {
		// the gate runs before the lookup so revoked access is never
		// bridged by a warm cache entry
		if err := s.builder.Authorize(ctx, def, rctx); err != nil {
			return nil, err
		}
		if cached, err := s.cache.GetResult(ctx, reportID, fp); err == nil {
			s.metrics.RecordCacheLookup(true)
			s.emit(ctx, models.EventReportViewed, reportID, rctx.UserID)
			return &dto.ExecuteResponse{Table: cached.Table, Charts: cached.Charts, Cached: true}, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	start := time.Now()
	res, err := s.builder.Execute(ctx, def, rctx)
	if err != nil {
		s.metrics.ObserveExecution(string(def.Report.Type), "error", time.Since(start))
		return nil, err
	}
	s.metrics.ObserveExecution(string(def.Report.Type), "ok", time.Since(start))

	if s.cache != nil {
		if err := s.cache.SetResult(ctx, reportID, fp, &repository.CachedExecution{Table: res.Table, Charts: res.Charts}); err != nil {
			s.logger.Sugar().Warnw("result cache write failed", "report_id", reportID, "error", err)
		}
	}

	s.emit(ctx, models.EventReportViewed, reportID, rctx.UserID)
	return &dto.ExecuteResponse{Table: res.Table, Charts: res.Charts}, nil
}

// reportDocument is the versioned import/export exchange format. The
// components blob travels base64-encoded so SQL text and quoting survive
// any XML tooling in between.
type reportDocument struct {
	XMLName       xml.Name `xml:"report"`
	Version       string   `xml:"version,attr"`
	Name          string   `xml:"name"`
	Type          string   `xml:"type"`
	Visible       bool     `xml:"visible"`
	Global        bool     `xml:"global"`
	ExportFormats string   `xml:"export_formats"`
	Components    string   `xml:"components"`
}

const documentVersion = "2.0"

// ImportXML parses a versioned report document and persists it as a new
// report owned by the caller. Documents without a version marker are
// rejected.
func (s *ReportService) ImportXML(ctx context.Context, userID, document string) (*models.Report, error) {
	var doc reportDocument
	if err := xml.Unmarshal([]byte(document), &doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedImport.Code, appErrors.ErrUnsupportedImport.Status, "import document is not valid XML")
	}
	if strings.TrimSpace(doc.Version) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedImport, "")
	}
	if !validReportType(doc.Type) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedImport, "import document has an unknown report type")
	}

	components, err := base64.StdEncoding.DecodeString(strings.TrimSpace(doc.Components))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedImport.Code, appErrors.ErrUnsupportedImport.Status, "import document components are not base64")
	}
	// decode once so a corrupt blob is rejected at import time, not first view
	if _, err := codec.Decode(string(components)); err != nil {
		return nil, err
	}

	rpt := &models.Report{
		ID:            uuid.NewString(),
		Name:          doc.Name,
		Type:          models.ReportType(doc.Type),
		OwnerID:       userID,
		Visible:       doc.Visible,
		Global:        doc.Global,
		Components:    string(components),
		ExportFormats: splitFormats(doc.ExportFormats),
	}
	if err := s.repo.Create(ctx, rpt); err != nil {
		return nil, err
	}
	s.emit(ctx, models.EventReportCreated, rpt.ID, userID)
	return rpt, nil
}

// ExportXML renders a report definition into the exchange document.
func (s *ReportService) ExportXML(ctx context.Context, reportID string) (string, error) {
	rpt, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return "", err
	}
	doc := reportDocument{
		Version:       documentVersion,
		Name:          rpt.Name,
		Type:          string(rpt.Type),
		Visible:       rpt.Visible,
		Global:        rpt.Global,
		ExportFormats: strings.Join(rpt.ExportFormats, ","),
		Components:    base64.StdEncoding.EncodeToString([]byte(rpt.Components)),
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report document")
	}
	return xml.Header + string(out), nil
}

// AuditTrail lists the recorded lifecycle events of one report, newest
// first. The trail carries user ids, so reading it takes manage rights.
func (s *ReportService) AuditTrail(ctx context.Context, userID, reportID string, limit int) ([]models.AuditEvent, error) {
	ok, err := s.canManage(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "")
	}
	if _, err := s.repo.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.ListForObject(ctx, reportID, limit)
}

func (s *ReportService) canManage(ctx context.Context, userID string) (bool, error) {
	admin, err := s.checker.IsSiteAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	return s.checker.HasCapability(ctx, userID, rbac.CapabilityManageReports, models.LevelSystem, "")
}

func (s *ReportService) invalidate(ctx context.Context, reportID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateReport(ctx, reportID); err != nil {
		s.logger.Sugar().Warnw("cache invalidation failed", "report_id", reportID, "error", err)
	}
}

func (s *ReportService) emit(ctx context.Context, name, objectID, userID string) {
	if s.audit == nil {
		return
	}
	var uid *string
	if userID != "" {
		uid = &userID
	}
	s.audit.Emit(ctx, models.AuditEvent{Name: name, ObjectID: objectID, UserID: uid})
}

// fingerprint derives the cache key component from every runtime input that
// can change the rendered output.
func fingerprint(rctx *models.RequestContext) string {
	if rctx == nil {
		rctx = &models.RequestContext{}
	}
	raw, err := json.Marshal(rctx)
	if err != nil {
		return "none"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

func validReportType(t string) bool {
	switch models.ReportType(t) {
	case models.ReportTypeUsers, models.ReportTypeCourses, models.ReportTypeSQL, models.ReportTypeStatistics:
		return true
	}
	return false
}

func splitFormats(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
