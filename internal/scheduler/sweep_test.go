package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/models"
)

type runStoreStub struct {
	mu        sync.Mutex
	due       []models.ScheduledRun
	listErr   error
	claims    map[string]string
	completed map[string]*time.Time
}

func newRunStoreStub(due ...models.ScheduledRun) *runStoreStub {
	return &runStoreStub{due: due, claims: map[string]string{}, completed: map[string]*time.Time{}}
}

func (s *runStoreStub) ListDue(ctx context.Context, bucket time.Time, frequency models.Frequency) ([]models.ScheduledRun, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.due, nil
}

func (s *runStoreStub) Claim(ctx context.Context, runID, bucketKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[runID] == bucketKey {
		return false, nil
	}
	s.claims[runID] = bucketKey
	return true, nil
}

func (s *runStoreStub) Complete(ctx context.Context, runID string, firedAt time.Time, nextRunAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[runID] = nextRunAt
	return nil
}

type delivererStub struct {
	mu    sync.Mutex
	runs  []string
	fails map[string]error
}

func (d *delivererStub) Deliver(ctx context.Context, run models.ScheduledRun) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runs = append(d.runs, run.ID)
	return d.fails[run.ID]
}

func TestSweepExecutesDueRuns(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)
	store := newRunStoreStub(
		models.ScheduledRun{ID: "s1", ReportID: "r1", Frequency: models.FrequencyDaily, RunHour: 9},
		models.ScheduledRun{ID: "s2", ReportID: "r2", Frequency: models.FrequencyOnDemand},
	)
	deliverer := &delivererStub{fails: map[string]error{}}

	stats, err := NewSweeper(store, deliverer, 2, nil).Sweep(context.Background(), now, "")
	require.NoError(t, err)

	assert.Equal(t, Stats{Due: 2, Claimed: 2, Failed: 0}, stats)
	assert.Len(t, deliverer.runs, 2)

	require.NotNil(t, store.completed["s1"], "daily run advances")
	assert.Equal(t, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), *store.completed["s1"])
	assert.Nil(t, store.completed["s2"], "on-demand run self-disables")
}

func TestSweepIsolatesPerRunFailures(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)
	store := newRunStoreStub(
		models.ScheduledRun{ID: "s1", Frequency: models.FrequencyDaily, RunHour: 9},
		models.ScheduledRun{ID: "s2", Frequency: models.FrequencyDaily, RunHour: 9},
	)
	deliverer := &delivererStub{fails: map[string]error{"s1": errors.New("render blew up")}}

	stats, err := NewSweeper(store, deliverer, 1, nil).Sweep(context.Background(), now, "")
	require.NoError(t, err, "a failing run never fails the sweep")

	assert.Equal(t, 2, stats.Claimed)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, deliverer.runs, 2, "the healthy run still executes")
	assert.NotNil(t, store.completed["s1"], "failed run still advances its schedule")
}

func TestSweepStoreUnreachable(t *testing.T) {
	store := newRunStoreStub()
	store.listErr = errors.New("connection refused")

	_, err := NewSweeper(store, &delivererStub{}, 1, nil).Sweep(context.Background(), time.Now(), "")
	assert.Error(t, err)
}

func TestConcurrentSweepsClaimExactlyOnce(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)
	store := newRunStoreStub(
		models.ScheduledRun{ID: "s1", Frequency: models.FrequencyDaily, RunHour: 9},
	)
	deliverer := &delivererStub{fails: map[string]error{}}

	var wg sync.WaitGroup
	results := make([]Stats, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats, err := NewSweeper(store, deliverer, 2, nil).Sweep(context.Background(), now, "")
			require.NoError(t, err)
			results[i] = stats
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, results[0].Claimed+results[1].Claimed, "exactly one sweeper wins the claim")
	assert.Len(t, deliverer.runs, 1, "the run executes exactly once per bucket")
}
