// Package repository holds the sqlx persistence layer.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

const reportColumns = `id, name, type, owner_id, course_id, visible, global, components, export_formats, disable_table, created_at, updated_at`

// ReportRepository persists reports.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, rpt *models.Report) error {
	now := time.Now().UTC()
	rpt.CreatedAt = now
	rpt.UpdatedAt = now
	query := `INSERT INTO reports (id, name, type, owner_id, course_id, visible, global, components, export_formats, disable_table, created_at, updated_at)
        VALUES (:id, :name, :type, :owner_id, :course_id, :visible, :global, :components, :export_formats, :disable_table, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rpt); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var rpt models.Report
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	if err := r.db.GetContext(ctx, &rpt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReportNotFound, "")
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &rpt, nil
}

func (r *ReportRepository) Update(ctx context.Context, rpt *models.Report) error {
	rpt.UpdatedAt = time.Now().UTC()
	query := `UPDATE reports SET name = :name, type = :type, course_id = :course_id, visible = :visible,
        global = :global, export_formats = :export_formats, disable_table = :disable_table, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rpt)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.Clone(appErrors.ErrReportNotFound, "")
	}
	return nil
}

// UpdateComponents persists a freshly encoded components blob.
func (r *ReportRepository) UpdateComponents(ctx context.Context, id, components string) error {
	query := `UPDATE reports SET components = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, components, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update report components: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.Clone(appErrors.ErrReportNotFound, "")
	}
	return nil
}

// Delete removes a report and cascades to its schedules in one transaction.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete report: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_schedules WHERE report_id = $1`, id); err != nil {
		return fmt.Errorf("delete report schedules: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.Clone(appErrors.ErrReportNotFound, "")
	}
	return tx.Commit()
}

// ListVisible returns the reports a non-managing user may see: their own
// plus globally published visible ones.
func (r *ReportRepository) ListVisible(ctx context.Context, userID string) ([]models.Report, error) {
	var out []models.Report
	query := `SELECT ` + reportColumns + ` FROM reports
        WHERE owner_id = $1 OR (global = true AND visible = true)
        ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("list visible reports: %w", err)
	}
	return out, nil
}

// ListAll returns every report, for users holding the manage capability.
func (r *ReportRepository) ListAll(ctx context.Context) ([]models.Report, error) {
	var out []models.Report
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}
