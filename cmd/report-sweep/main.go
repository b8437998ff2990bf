package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/lms-report-api/internal/builder"
	"github.com/noah-isme/lms-report-api/internal/models"
	"github.com/noah-isme/lms-report-api/internal/plugins"
	"github.com/noah-isme/lms-report-api/internal/rbac"
	"github.com/noah-isme/lms-report-api/internal/report"
	"github.com/noah-isme/lms-report-api/internal/repository"
	"github.com/noah-isme/lms-report-api/internal/scheduler"
	"github.com/noah-isme/lms-report-api/internal/service"
	"github.com/noah-isme/lms-report-api/pkg/config"
	"github.com/noah-isme/lms-report-api/pkg/database"
	"github.com/noah-isme/lms-report-api/pkg/logger"
	"github.com/noah-isme/lms-report-api/pkg/mailer"
	"github.com/noah-isme/lms-report-api/pkg/storage"
)

var (
	frequencyFlag string
	onceFlag      bool
	intervalFlag  time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "report-sweep",
		Short: "Execute due scheduled report runs",
		Long: "Sweeps the current hour bucket for due scheduled runs, renders each " +
			"report and delivers the artifact. Individual run failures are logged " +
			"and counted; the command only fails when the store is unreachable.",
		RunE: runSweep,
	}
	root.Flags().StringVar(&frequencyFlag, "frequency", "", "only sweep runs with this frequency (once, daily, weekly, monthly, ondemand)")
	root.Flags().BoolVar(&onceFlag, "once", false, "run a single sweep and exit instead of looping")
	root.Flags().DurationVar(&intervalFlag, "interval", time.Hour, "delay between sweeps when looping")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	frequency := models.Frequency(frequencyFlag)
	if frequencyFlag != "" && !models.ValidFrequency(frequency) {
		return fmt.Errorf("unknown frequency %q", frequencyFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	exportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	reportRepo := repository.NewReportRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	userRepo := repository.NewUserRepository(db)

	registry := plugins.NewRegistry()
	evaluator := rbac.NewEvaluator(userRepo, userRepo, logr)
	loader := report.NewLoader(reportRepo, registry, logr)
	exec := builder.New(db, registry, evaluator, logr, builder.Options{
		QueryTimeout:    cfg.Reports.QueryTimeout,
		DefaultPageSize: cfg.Reports.DefaultPageSize,
		MaxPageSize:     cfg.Reports.MaxPageSize,
	})

	deliverySvc := service.NewDeliveryService(loader, exec, exportStorage, signer, mailer.New(cfg.Mail), service.NewMetricsService(), logr)
	sweeper := scheduler.NewSweeper(scheduleRepo, deliverySvc, cfg.Sweep.WorkerConcurrency, logr)

	ctx := cmd.Context()
	for {
		sweepCtx, cancel := context.WithTimeout(ctx, cfg.Sweep.RunTimeout)
		stats, err := sweeper.Sweep(sweepCtx, time.Now().UTC(), frequency)
		cancel()
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		logr.Sugar().Infow("sweep finished",
			"due", stats.Due, "claimed", stats.Claimed, "failed", stats.Failed)

		if onceFlag {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(intervalFlag):
		}
	}
}
