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

const scheduleColumns = `id, report_id, user_id, frequency, run_hour, run_day, format, delivery, recipients, next_run_at, last_run_at, last_bucket, created_at, updated_at`

// ScheduleRepository persists scheduled runs and backs the sweep's claim
// protocol.
type ScheduleRepository struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, run *models.ScheduledRun) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	query := `INSERT INTO report_schedules (id, report_id, user_id, frequency, run_hour, run_day, format, delivery, recipients, next_run_at, created_at, updated_at)
        VALUES (:id, :report_id, :user_id, :frequency, :run_hour, :run_day, :format, :delivery, :recipients, :next_run_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.ScheduledRun, error) {
	var run models.ScheduledRun
	query := `SELECT ` + scheduleColumns + ` FROM report_schedules WHERE id = $1`
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &run, nil
}

func (r *ScheduleRepository) ListByReport(ctx context.Context, reportID string) ([]models.ScheduledRun, error) {
	var out []models.ScheduledRun
	query := `SELECT ` + scheduleColumns + ` FROM report_schedules WHERE report_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &out, query, reportID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return out, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM report_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	return nil
}

// ListDue selects the runs firing in the given hour bucket. Recurring and
// once runs match on next_run_at falling inside the bucket; on-demand runs
// match when pending and never fired. An empty frequency matches all.
func (r *ScheduleRepository) ListDue(ctx context.Context, bucket time.Time, frequency models.Frequency) ([]models.ScheduledRun, error) {
	var out []models.ScheduledRun
	bucketEnd := bucket.Add(time.Hour)

	query := `SELECT ` + scheduleColumns + ` FROM report_schedules
        WHERE (
            (frequency <> 'ondemand' AND next_run_at >= $1 AND next_run_at < $2)
            OR (frequency = 'ondemand' AND next_run_at IS NOT NULL AND last_run_at IS NULL)
        )`
	args := []interface{}{bucket, bucketEnd}
	if frequency != "" {
		query += ` AND frequency = $3`
		args = append(args, frequency)
	}
	query += ` ORDER BY next_run_at ASC NULLS LAST`

	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	return out, nil
}

// Claim atomically marks the run as dispatched for the bucket. The
// conditional update only succeeds when no other sweeper has written the
// same bucket marker, which makes dispatch exactly-once per bucket.
func (r *ScheduleRepository) Claim(ctx context.Context, runID, bucketKey string) (bool, error) {
	query := `UPDATE report_schedules SET last_bucket = $1, updated_at = $2
        WHERE id = $3 AND (last_bucket IS NULL OR last_bucket <> $1)`
	res, err := r.db.ExecContext(ctx, query, bucketKey, time.Now().UTC(), runID)
	if err != nil {
		return false, fmt.Errorf("claim schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim schedule: %w", err)
	}
	return n == 1, nil
}

// Complete records the firing and the advanced next fire time.
func (r *ScheduleRepository) Complete(ctx context.Context, runID string, firedAt time.Time, nextRunAt *time.Time) error {
	query := `UPDATE report_schedules SET last_run_at = $1, next_run_at = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, firedAt, nextRunAt, time.Now().UTC(), runID); err != nil {
		return fmt.Errorf("complete schedule: %w", err)
	}
	return nil
}
