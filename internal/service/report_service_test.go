package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type reportRepoStub struct {
	reports map[string]*models.Report
	deleted []string
}

func newReportRepoStub(reports ...*models.Report) *reportRepoStub {
	s := &reportRepoStub{reports: map[string]*models.Report{}}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

func (s *reportRepoStub) Create(ctx context.Context, rpt *models.Report) error {
	s.reports[rpt.ID] = rpt
	return nil
}

func (s *reportRepoStub) GetByID(ctx context.Context, id string) (*models.Report, error) {
	rpt, ok := s.reports[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrReportNotFound, "")
	}
	return rpt, nil
}

func (s *reportRepoStub) Update(ctx context.Context, rpt *models.Report) error {
	s.reports[rpt.ID] = rpt
	return nil
}

func (s *reportRepoStub) UpdateComponents(ctx context.Context, id, components string) error {
	rpt, ok := s.reports[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrReportNotFound, "")
	}
	rpt.Components = components
	return nil
}

func (s *reportRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.reports[id]; !ok {
		return appErrors.Clone(appErrors.ErrReportNotFound, "")
	}
	delete(s.reports, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *reportRepoStub) ListVisible(ctx context.Context, userID string) ([]models.Report, error) {
	var out []models.Report
	for _, r := range s.reports {
		if r.OwnerID == userID || (r.Global && r.Visible) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *reportRepoStub) ListAll(ctx context.Context) ([]models.Report, error) {
	var out []models.Report
	for _, r := range s.reports {
		out = append(out, *r)
	}
	return out, nil
}

type cacheStub struct {
	entries     map[string]*repository.CachedExecution
	invalidated []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: map[string]*repository.CachedExecution{}}
}

func (c *cacheStub) GetResult(ctx context.Context, reportID, fingerprint string) (*repository.CachedExecution, error) {
	if e, ok := c.entries[reportID+":"+fingerprint]; ok {
		return e, nil
	}
	return nil, appErrors.Clone(appErrors.ErrCacheMiss, "")
}

func (c *cacheStub) SetResult(ctx context.Context, reportID, fingerprint string, exec *repository.CachedExecution) error {
	c.entries[reportID+":"+fingerprint] = exec
	return nil
}

func (c *cacheStub) InvalidateReport(ctx context.Context, reportID string) error {
	c.invalidated = append(c.invalidated, reportID)
	for k := range c.entries {
		delete(c.entries, k)
	}
	return nil
}

type auditStub struct {
	events []models.AuditEvent
}

func (a *auditStub) Emit(ctx context.Context, event models.AuditEvent) {
	a.events = append(a.events, event)
}

func (a *auditStub) ListForObject(ctx context.Context, objectID string, limit int) ([]models.AuditEvent, error) {
	var out []models.AuditEvent
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].ObjectID == objectID {
			out = append(out, a.events[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type svcCheckerStub struct {
	admin      bool
	capability bool
}

func (c svcCheckerStub) HasCapability(ctx context.Context, userID, capability string, level models.ContextLevel, courseID string) (bool, error) {
	return c.capability, nil
}

func (c svcCheckerStub) IsSiteAdmin(ctx context.Context, userID string) (bool, error) {
	return c.admin, nil
}

type svcAssignmentStub struct{}

func (svcAssignmentStub) AssignmentsForUser(ctx context.Context, userID string) ([]models.RoleAssignment, error) {
	return nil, nil
}

type serviceFixture struct {
	svc   *ReportService
	repo  *reportRepoStub
	cache *cacheStub
	audit *auditStub
	mock  sqlmock.Sqlmock
	done  func()
}

func newServiceFixture(t *testing.T, admin bool, reports ...*models.Report) *serviceFixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	repo := newReportRepoStub(reports...)
	registry := plugins.NewRegistry()
	loader := report.NewLoader(repo, registry, nil)
	evaluator := rbac.NewEvaluator(svcCheckerStub{admin: admin}, svcAssignmentStub{}, nil)
	exec := builder.New(sqlx.NewDb(db, "sqlmock"), registry, evaluator, nil, builder.Options{})
	cache := newCacheStub()
	audit := &auditStub{}

	svc := NewReportService(repo, loader, exec, registry, svcCheckerStub{admin: admin}, cache, audit, NewMetricsService(), nil, nil)
	return &serviceFixture{svc: svc, repo: repo, cache: cache, audit: audit, mock: mock, done: func() { db.Close() }}
}

func TestReportServiceCreate(t *testing.T) {
	f := newServiceFixture(t, true)
	defer f.done()

	rpt, err := f.svc.Create(context.Background(), "u1", dto.CreateReportRequest{
		Name: "Active users", Type: "users", ExportFormats: []string{"csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", rpt.OwnerID)
	assert.NotEmpty(t, rpt.Components, "new reports carry an encoded empty tree")

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, models.EventReportCreated, f.audit.events[0].Name)
}

func TestReportServiceCreateValidation(t *testing.T) {
	f := newServiceFixture(t, true)
	defer f.done()

	_, err := f.svc.Create(context.Background(), "u1", dto.CreateReportRequest{Name: "", Type: "users"})
	assert.Error(t, err)

	_, err = f.svc.Create(context.Background(), "u1", dto.CreateReportRequest{Name: "x", Type: "spreadsheets"})
	assert.Error(t, err)
}

func TestReportServiceDeleteEmitsAndInvalidates(t *testing.T) {
	f := newServiceFixture(t, true, &models.Report{ID: "r1", Type: models.ReportTypeUsers})
	defer f.done()

	require.NoError(t, f.svc.Delete(context.Background(), "u1", "r1"))
	assert.Contains(t, f.cache.invalidated, "r1")
	require.Len(t, f.audit.events, 1)
	assert.Equal(t, models.EventReportDeleted, f.audit.events[0].Name)

	err := f.svc.Delete(context.Background(), "u1", "r1")
	assert.Equal(t, appErrors.ErrReportNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceListMine(t *testing.T) {
	reports := []*models.Report{
		{ID: "r1", OwnerID: "u1"},
		{ID: "r2", OwnerID: "other"},
		{ID: "r3", OwnerID: "other", Global: true, Visible: true},
	}

	manager := newServiceFixture(t, true, reports...)
	defer manager.done()
	all, err := manager.svc.ListMine(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, all, 3, "managers see everything")

	owner := newServiceFixture(t, false, reports...)
	defer owner.done()
	mine, err := owner.svc.ListMine(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2, "owners see their own plus global visible")
}

func TestReportServiceComponentLifecycle(t *testing.T) {
	empty, err := codec.Encode(models.ComponentTree{})
	require.NoError(t, err)
	f := newServiceFixture(t, true, &models.Report{ID: "r1", Type: models.ReportTypeUsers, Components: empty})
	defer f.done()

	inst, err := f.svc.AddComponent(context.Background(), "u1", "r1", dto.AddComponentRequest{
		Kind: "columns", Plugin: "field", FormData: map[string]string{"column": "name"},
	})
	require.NoError(t, err)
	assert.Contains(t, f.cache.invalidated, "r1")

	descriptors, err := f.svc.ListPlugins(context.Background(), "r1", "columns")
	require.NoError(t, err)
	for _, d := range descriptors {
		assert.NotEqual(t, "sqlcolumn", d.Name, "sql columns are not offered for users reports")
	}

	require.NoError(t, f.svc.RemoveComponent(context.Background(), "u1", "r1", "columns", inst.ID))

	err = f.svc.RemoveComponent(context.Background(), "u1", "r1", "columns", inst.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceAuditTrail(t *testing.T) {
	f := newServiceFixture(t, true, &models.Report{ID: "r1", Type: models.ReportTypeUsers})
	defer f.done()

	name := "Renamed"
	_, err := f.svc.Update(context.Background(), "u1", "r1", dto.UpdateReportRequest{Name: &name})
	require.NoError(t, err)

	events, err := f.svc.AuditTrail(context.Background(), "u1", "r1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventReportUpdated, events[0].Name)
	assert.Equal(t, "r1", events[0].ObjectID)

	_, err = f.svc.AuditTrail(context.Background(), "u1", "missing", 10)
	assert.Equal(t, appErrors.ErrReportNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceAuditTrailNeedsManageRights(t *testing.T) {
	f := newServiceFixture(t, false, &models.Report{ID: "r1", Type: models.ReportTypeUsers})
	defer f.done()

	_, err := f.svc.AuditTrail(context.Background(), "viewer", "r1", 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccessDenied.Code, appErrors.FromError(err).Code)
}

func TestReportServiceExecuteUsesCache(t *testing.T) {
	tree := models.ComponentTree{
		models.KindColumns: {{ID: "c1", Plugin: "field", FormData: models.FormData{"column": "name"}}},
	}
	blob, err := codec.Encode(tree)
	require.NoError(t, err)
	f := newServiceFixture(t, true, &models.Report{ID: "r1", Type: models.ReportTypeUsers, Components: blob})
	defer f.done()

	f.mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Anna"))

	rctx := &models.RequestContext{UserID: "admin"}
	first, err := f.svc.Execute(context.Background(), "r1", rctx)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, first.Table.RowCount)

	// second call with the same context is served from cache, no query
	second, err := f.svc.Execute(context.Background(), "r1", rctx)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Table.Rows, second.Table.Rows)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReportServiceExecuteGatesCachedResults(t *testing.T) {
	tree := models.ComponentTree{
		models.KindColumns: {{ID: "c1", Plugin: "field", FormData: models.FormData{"column": "name"}}},
	}
	blob, err := codec.Encode(tree)
	require.NoError(t, err)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := newReportRepoStub(&models.Report{ID: "r1", Type: models.ReportTypeUsers, Components: blob})
	registry := plugins.NewRegistry()
	loader := report.NewLoader(repo, registry, nil)
	checker := &svcCheckerStub{admin: true}
	evaluator := rbac.NewEvaluator(checker, svcAssignmentStub{}, nil)
	exec := builder.New(sqlx.NewDb(db, "sqlmock"), registry, evaluator, nil, builder.Options{})
	cache := newCacheStub()
	svc := NewReportService(repo, loader, exec, registry, checker, cache, &auditStub{}, NewMetricsService(), nil, nil)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Anna"))

	rctx := &models.RequestContext{UserID: "u1"}
	first, err := svc.Execute(context.Background(), "r1", rctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Table.RowCount)

	// once access is revoked the warm cache entry must not be served
	checker.admin = false
	_, err = svc.Execute(context.Background(), "r1", rctx)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccessDenied.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportXML(t *testing.T) {
	f := newServiceFixture(t, true)
	defer f.done()

	tree := models.ComponentTree{
		models.KindColumns: {{ID: "c1", Plugin: "field", FormData: models.FormData{"column": "name"}}},
	}
	blob, err := codec.Encode(tree)
	require.NoError(t, err)

	doc := fmt.Sprintf(`<report version="2.0"><name>Imported</name><type>users</type><visible>true</visible><export_formats>csv</export_formats><components>%s</components></report>`,
		base64.StdEncoding.EncodeToString([]byte(blob)))

	rpt, err := f.svc.ImportXML(context.Background(), "u1", doc)
	require.NoError(t, err)
	assert.Equal(t, "Imported", rpt.Name)
	assert.Equal(t, models.ReportTypeUsers, rpt.Type)
	assert.Equal(t, []string{"csv"}, []string(rpt.ExportFormats))

	decoded, err := codec.Decode(rpt.Components)
	require.NoError(t, err)
	assert.Equal(t, tree, decoded)
}

func TestImportXMLRejectsMissingVersion(t *testing.T) {
	f := newServiceFixture(t, true)
	defer f.done()

	cases := []string{
		`<report><name>NoVersion</name><type>users</type><components></components></report>`,
		`not xml at all`,
		`<report version="2.0"><name>BadType</name><type>ledger</type><components></components></report>`,
		`<report version="2.0"><name>BadBlob</name><type>users</type><components>!!!</components></report>`,
	}
	for _, doc := range cases {
		_, err := f.svc.ImportXML(context.Background(), "u1", doc)
		require.Error(t, err, "document %q", doc)
		assert.Equal(t, appErrors.ErrUnsupportedImport.Code, appErrors.FromError(err).Code)
	}
}

func TestExportXMLRoundTrip(t *testing.T) {
	tree := models.ComponentTree{
		models.KindFilters: {{ID: "f1", Plugin: "status", FormData: models.FormData{"key": "status"}}},
	}
	blob, err := codec.Encode(tree)
	require.NoError(t, err)
	f := newServiceFixture(t, true, &models.Report{
		ID: "r1", Name: "Round trip", Type: models.ReportTypeUsers,
		Components: blob, ExportFormats: []string{"csv", "pdf"},
	})
	defer f.done()

	doc, err := f.svc.ExportXML(context.Background(), "r1")
	require.NoError(t, err)
	assert.Contains(t, doc, `version="2.0"`)

	imported, err := f.svc.ImportXML(context.Background(), "u2", doc)
	require.NoError(t, err)
	assert.Equal(t, "Round trip", imported.Name)

	decoded, err := codec.Decode(imported.Components)
	require.NoError(t, err)
	assert.Equal(t, tree, decoded)
}
