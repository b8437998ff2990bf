package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReportRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "type", "owner_id", "course_id", "visible", "global", "components", "export_formats", "disable_table", "created_at", "updated_at"}).
		AddRow("r1", "Active users", "users", "u1", nil, true, false, "{}", "{csv,pdf}", false, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .+ FROM reports WHERE id = \\$1").
		WithArgs("r1").
		WillReturnRows(rows)

	rpt, err := repo.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportTypeUsers, rpt.Type)
	assert.True(t, rpt.AllowsExport("csv"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery("SELECT .+ FROM reports WHERE id = \\$1").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrReportNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Report{
		ID: "r1", Name: "Active users", Type: models.ReportTypeUsers, OwnerID: "u1",
		ExportFormats: []string{"csv"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateComponents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET components = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("{}", sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateComponents(context.Background(), "r1", "{}"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET components = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("{}", sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateComponents(context.Background(), "gone", "{}")
	assert.Equal(t, appErrors.ErrReportNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryDeleteCascadesSchedules(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM report_schedules WHERE report_id = $1")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reports WHERE id = $1")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "r1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListVisible(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "type", "owner_id", "course_id", "visible", "global", "components", "export_formats", "disable_table", "created_at", "updated_at"}).
		AddRow("r1", "Mine", "users", "u1", nil, true, false, "{}", "{}", false, time.Now(), time.Now()).
		AddRow("r2", "Shared", "courses", "other", nil, true, true, "{}", "{}", false, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .+ FROM reports\\s+WHERE owner_id = \\$1 OR \\(global = true AND visible = true\\)").
		WithArgs("u1").
		WillReturnRows(rows)

	reports, err := repo.ListVisible(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
