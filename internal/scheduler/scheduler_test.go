package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/models"
)

func TestBucketTruncatesToWholeHour(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 47, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), Bucket(now))
	assert.Equal(t, "2026-03-14T09", BucketKey(now))
}

func TestAdvanceDaily(t *testing.T) {
	run := &models.ScheduledRun{Frequency: models.FrequencyDaily, RunHour: 9}
	fired := time.Date(2026, 3, 14, 9, 12, 0, 0, time.UTC)

	next := Advance(run, fired)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), *next)
}

func TestAdvanceWeekly(t *testing.T) {
	run := &models.ScheduledRun{Frequency: models.FrequencyWeekly, RunHour: 6}
	fired := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC) // a Saturday

	next := Advance(run, fired)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 21, 6, 0, 0, 0, time.UTC), *next)
	assert.Equal(t, fired.Weekday(), next.Weekday())
}

func TestAdvanceMonthlyClampsDayOfMonth(t *testing.T) {
	scheduled := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)
	run := &models.ScheduledRun{Frequency: models.FrequencyMonthly, RunHour: 8, RunDay: 31, NextRunAt: &scheduled}

	next := Advance(run, scheduled)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), *next, "February clamps the 31st")

	run.NextRunAt = next
	next = Advance(run, *next)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC), *next, "the clamp is per month, the configured day comes back")

	run.NextRunAt = next
	next = Advance(run, *next)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 4, 30, 8, 0, 0, 0, time.UTC), *next)
}

func TestAdvanceMonthlyWithoutConfiguredDay(t *testing.T) {
	// legacy rows carry no run_day and follow the last fire time instead
	scheduled := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	run := &models.ScheduledRun{Frequency: models.FrequencyMonthly, RunHour: 8, NextRunAt: &scheduled}

	next := Advance(run, scheduled)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 4, 15, 8, 0, 0, 0, time.UTC), *next)
}

func TestFirstMonthly(t *testing.T) {
	run := &models.ScheduledRun{Frequency: models.FrequencyMonthly, RunHour: 8, RunDay: 31}

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC), FirstMonthly(run, now))

	// past this month's occurrence the run waits for the next month, clamped
	now = time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), FirstMonthly(run, now))
}

func TestAdvanceOneShotFrequenciesSelfDisable(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	assert.Nil(t, Advance(&models.ScheduledRun{Frequency: models.FrequencyOnce, RunHour: 10}, now))
	assert.Nil(t, Advance(&models.ScheduledRun{Frequency: models.FrequencyOnDemand}, now))
}
