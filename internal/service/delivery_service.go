package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-report-api/internal/builder"
	"github.com/noah-isme/lms-report-api/internal/dto"
	"github.com/noah-isme/lms-report-api/internal/models"
	"github.com/noah-isme/lms-report-api/internal/report"
	"github.com/noah-isme/lms-report-api/pkg/export"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
	"github.com/noah-isme/lms-report-api/pkg/mailer"
	"github.com/noah-isme/lms-report-api/pkg/storage"
)

type artifactMailer interface {
	Send(to []string, subject, body string, attachment *mailer.Attachment) error
}

// DeliveryService renders a scheduled run's report and delivers the
// artifact to storage, email, or both.
type DeliveryService struct {
	loader  *report.Loader
	builder *builder.Builder
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	mailer  artifactMailer
	metrics *MetricsService
	logger  *zap.Logger
}

func NewDeliveryService(
	loader *report.Loader,
	exec *builder.Builder,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	mail artifactMailer,
	metrics *MetricsService,
	logger *zap.Logger,
) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryService{
		loader:  loader,
		builder: exec,
		storage: store,
		signer:  signer,
		mailer:  mail,
		metrics: metrics,
		logger:  logger,
	}
}

// Deliver executes one scheduled run end to end. The report is re-fetched
// by id; a schedule never assumes its report still exists.
func (s *DeliveryService) Deliver(ctx context.Context, run models.ScheduledRun) error {
	def, err := s.loader.Load(ctx, run.ReportID)
	if err != nil {
		s.metrics.RecordSweepRun("error")
		return err
	}
	if !def.Report.AllowsExport(run.Format) {
		s.metrics.RecordSweepRun("error")
		return appErrors.Clone(appErrors.ErrValidation, "format "+run.Format+" is not enabled for this report")
	}

	res, err := s.builder.Execute(ctx, def, &models.RequestContext{UserID: run.UserID})
	if err != nil {
		s.metrics.RecordSweepRun("error")
		return err
	}

	exporter, err := export.ForFormat(run.Format)
	if err != nil {
		s.metrics.RecordSweepRun("error")
		return err
	}
	data, err := exporter.Render(res.Table, def.Report.Name)
	if err != nil {
		s.metrics.RecordSweepRun("error")
		return fmt.Errorf("render %s artifact: %w", run.Format, err)
	}

	if run.Delivery.WantsExport() {
		if _, err := s.store(def.Report, run, exporter, data); err != nil {
			s.metrics.RecordSweepRun("error")
			return err
		}
	}
	if run.Delivery.WantsEmail() {
		if err := s.email(def.Report, run, exporter, data); err != nil {
			s.metrics.RecordSweepRun("error")
			return err
		}
	}

	s.metrics.RecordSweepRun("ok")
	return nil
}

// ExportNow renders a report interactively and stores the artifact behind a
// signed download token.
func (s *DeliveryService) ExportNow(ctx context.Context, reportID, userID, format string) (*dto.ExportResponse, error) {
	def, err := s.loader.Load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !def.Report.AllowsExport(format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format "+format+" is not enabled for this report")
	}

	res, err := s.builder.Execute(ctx, def, &models.RequestContext{UserID: userID})
	if err != nil {
		return nil, err
	}
	exporter, err := export.ForFormat(format)
	if err != nil {
		return nil, err
	}
	data, err := exporter.Render(res.Table, def.Report.Name)
	if err != nil {
		return nil, fmt.Errorf("render %s artifact: %w", format, err)
	}

	filename := artifactPath(def.Report.ID, exporter.Extension())
	if _, err := s.storage.Save(filename, data); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(def.Report.ID, filename)
	if err != nil {
		return nil, err
	}
	return &dto.ExportResponse{
		Filename:  filename,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Open resolves a signed download token into a stored artifact path.
func (s *DeliveryService) Open(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return s.storage.Path(relPath), nil
}

func (s *DeliveryService) store(rpt *models.Report, run models.ScheduledRun, exporter export.Exporter, data []byte) (string, error) {
	filename := artifactPath(rpt.ID, exporter.Extension())
	if _, err := s.storage.Save(filename, data); err != nil {
		return "", err
	}
	s.logger.Sugar().Infow("artifact stored",
		"report_id", rpt.ID, "schedule_id", run.ID, "file", filename)
	return filename, nil
}

func (s *DeliveryService) email(rpt *models.Report, run models.ScheduledRun, exporter export.Exporter, data []byte) error {
	if s.mailer == nil {
		return fmt.Errorf("schedule %s wants email delivery but no mailer is configured", run.ID)
	}
	if len(run.Recipients) == 0 {
		return fmt.Errorf("schedule %s wants email delivery but has no recipients", run.ID)
	}
	attachment := &mailer.Attachment{
		Filename:    fmt.Sprintf("%s.%s", rpt.Name, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Data:        data,
	}
	subject := fmt.Sprintf("Scheduled report: %s", rpt.Name)
	body := fmt.Sprintf("The scheduled %s export of %q is attached.", run.Frequency, rpt.Name)
	if err := s.mailer.Send(run.Recipients, subject, body, attachment); err != nil {
		return err
	}
	s.logger.Sugar().Infow("artifact mailed",
		"report_id", rpt.ID, "schedule_id", run.ID, "recipients", len(run.Recipients))
	return nil
}

func artifactPath(reportID, ext string) string {
	return fmt.Sprintf("reports/%s/%s.%s", reportID, time.Now().UTC().Format("20060102T150405"), ext)
}
