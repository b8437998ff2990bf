package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-report-api/internal/models"
	"github.com/noah-isme/lms-report-api/pkg/jobs"
)

// RunStore is the persistence surface of the sweep.
type RunStore interface {
	// ListDue returns the runs whose next fire time falls inside the given
	// bucket, or, for on-demand, the pending never-fired ones. An optional
	// frequency narrows the selection.
	ListDue(ctx context.Context, bucket time.Time, frequency models.Frequency) ([]models.ScheduledRun, error)
	// Claim marks the run as dispatched for the bucket. It returns false
	// when another sweeper already holds the claim; the conditional update
	// on the stored marker makes the claim atomic.
	Claim(ctx context.Context, runID, bucketKey string) (bool, error)
	// Complete records the firing and the advanced next fire time. It runs
	// strictly after the run's own execution has finished.
	Complete(ctx context.Context, runID string, firedAt time.Time, nextRunAt *time.Time) error
}

// Deliverer executes one claimed run end to end.
type Deliverer interface {
	Deliver(ctx context.Context, run models.ScheduledRun) error
}

// Stats summarises one sweep.
type Stats struct {
	Due     int
	Claimed int
	Failed  int
}

// Sweeper picks up due scheduled runs and executes them through a bounded
// worker pool. Per-run failures are logged and counted, never fatal to the
// rest of the sweep.
type Sweeper struct {
	store     RunStore
	deliverer Deliverer
	logger    *zap.Logger
	workers   int

	mu     sync.Mutex
	failed int
}

func NewSweeper(store RunStore, deliverer Deliverer, workers int, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Sweeper{store: store, deliverer: deliverer, logger: logger, workers: workers}
}

// Sweep processes every run due in now's bucket. The returned error is
// reserved for the store being unreachable; individual run failures only
// show up in Stats.Failed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time, frequency models.Frequency) (Stats, error) {
	bucket := Bucket(now)
	bucketKey := BucketKey(now)

	due, err := s.store.ListDue(ctx, bucket, frequency)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Due: len(due)}
	if len(due) == 0 {
		return stats, nil
	}

	s.mu.Lock()
	s.failed = 0
	s.mu.Unlock()

	var wg sync.WaitGroup
	queue := jobs.NewQueue("schedule-sweep", func(jctx context.Context, job jobs.Job) error {
		defer wg.Done()
		run := job.Payload.(models.ScheduledRun)
		s.processRun(jctx, run, now)
		return nil
	}, jobs.QueueConfig{Workers: s.workers, BufferSize: len(due), Logger: s.logger})

	queue.Start(ctx)
	defer queue.Stop()

	for _, run := range due {
		claimed, err := s.store.Claim(ctx, run.ID, bucketKey)
		if err != nil {
			s.logger.Sugar().Errorw("claim failed", "run_id", run.ID, "bucket", bucketKey, "error", err)
			stats.Failed++
			continue
		}
		if !claimed {
			continue
		}
		stats.Claimed++
		wg.Add(1)
		if err := queue.Enqueue(jobs.Job{ID: run.ID, Type: "scheduled-run", Payload: run}); err != nil {
			wg.Done()
			s.logger.Sugar().Errorw("enqueue failed", "run_id", run.ID, "error", err)
			stats.Failed++
		}
	}

	wg.Wait()

	s.mu.Lock()
	stats.Failed += s.failed
	s.mu.Unlock()
	return stats, nil
}

// processRun executes one claimed run and advances its schedule. The
// next-fire update happens strictly after the execution finishes; a failed
// execution still completes the run with an advanced next fire so one broken
// report cannot wedge its schedule forever.
func (s *Sweeper) processRun(ctx context.Context, run models.ScheduledRun, now time.Time) {
	if err := s.deliverer.Deliver(ctx, run); err != nil {
		s.logger.Sugar().Errorw("scheduled run failed",
			"run_id", run.ID, "report_id", run.ReportID, "frequency", run.Frequency, "error", err)
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
	}

	next := Advance(&run, now)
	if err := s.store.Complete(ctx, run.ID, now.UTC(), next); err != nil {
		s.logger.Sugar().Errorw("failed to advance schedule", "run_id", run.ID, "error", err)
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
	}
}
