package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-report-api/internal/dto"
	"github.com/noah-isme/lms-report-api/internal/models"
	"github.com/noah-isme/lms-report-api/internal/scheduler"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

type scheduleRepository interface {
	Create(ctx context.Context, run *models.ScheduledRun) error
	GetByID(ctx context.Context, id string) (*models.ScheduledRun, error)
	ListByReport(ctx context.Context, reportID string) ([]models.ScheduledRun, error)
	Delete(ctx context.Context, id string) error
	Complete(ctx context.Context, runID string, firedAt time.Time, nextRunAt *time.Time) error
}

type reportGetter interface {
	GetByID(ctx context.Context, id string) (*models.Report, error)
}

// ScheduleService manages scheduled runs and ad-hoc firings.
type ScheduleService struct {
	repo      scheduleRepository
	reports   reportGetter
	deliverer scheduler.Deliverer
	validator *validator.Validate
	logger    *zap.Logger
}

func NewScheduleService(repo scheduleRepository, reports reportGetter, deliverer scheduler.Deliverer, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ScheduleService{repo: repo, reports: reports, deliverer: deliverer, validator: validate, logger: logger}
}

// Create attaches a scheduled run to a report. The first fire time lands on
// the next occurrence of the configured hour; on-demand runs are pending
// immediately.
func (s *ScheduleService) Create(ctx context.Context, userID, reportID string, req dto.CreateScheduleRequest) (*models.ScheduledRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	rpt, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !rpt.AllowsExport(req.Format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format "+req.Format+" is not enabled for this report")
	}
	delivery := models.DeliveryMode(req.Delivery)
	if delivery.WantsEmail() && len(req.Recipients) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email delivery needs at least one recipient")
	}

	run := &models.ScheduledRun{
		ID:         uuid.NewString(),
		ReportID:   reportID,
		UserID:     userID,
		Frequency:  models.Frequency(req.Frequency),
		RunHour:    req.RunHour,
		RunDay:     req.RunDay,
		Format:     req.Format,
		Delivery:   delivery,
		Recipients: req.Recipients,
	}
	first := firstFire(run, time.Now().UTC())
	run.NextRunAt = &first
	if run.Frequency == models.FrequencyMonthly && run.RunDay == 0 {
		run.RunDay = first.Day()
	}

	if err := s.repo.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the schedules attached to a report.
func (s *ScheduleService) List(ctx context.Context, reportID string) ([]models.ScheduledRun, error) {
	return s.repo.ListByReport(ctx, reportID)
}

// Delete removes one schedule.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// RunNow fires one schedule immediately, outside its bucket. The completion
// update advances recurring schedules and disables one-shot ones.
func (s *ScheduleService) RunNow(ctx context.Context, id string) error {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.deliverer.Deliver(ctx, *run); err != nil {
		return err
	}
	next := scheduler.Advance(run, now)
	if err := s.repo.Complete(ctx, run.ID, now, next); err != nil {
		return err
	}
	return nil
}

// firstFire computes when a newly created schedule fires first. On-demand
// runs are due in the very next sweep; monthly runs with a configured day
// wait for that day; everything else waits for the next occurrence of the
// configured hour.
func firstFire(run *models.ScheduledRun, now time.Time) time.Time {
	if run.Frequency == models.FrequencyOnDemand {
		return now
	}
	if run.Frequency == models.FrequencyMonthly && run.RunDay > 0 {
		return scheduler.FirstMonthly(run, now)
	}
	first := time.Date(now.Year(), now.Month(), now.Day(), run.RunHour, 0, 0, 0, time.UTC)
	if !first.After(now) {
		first = first.AddDate(0, 0, 1)
	}
	return first
}
