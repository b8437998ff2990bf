// Package scheduler computes fire times for scheduled runs and drives the
// periodic sweep that executes the due ones.
package scheduler

import (
	"time"

	"github.com/noah-isme/lms-report-api/internal/models"
)

// BucketFormat renders an hour bucket as a stable string for claim markers.
const BucketFormat = "2006-01-02T15"

// Bucket truncates a timestamp to its whole-hour bucket in UTC. Due
// selection and claim markers both operate on the bucket, never the raw
// timestamp, so a run fires at most once per hour regardless of when within
// the hour a sweep happens to start.
func Bucket(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour)
}

// BucketKey is the claim-marker form of a bucket.
func BucketKey(now time.Time) string {
	return Bucket(now).Format(BucketFormat)
}

// Advance computes the fire time after a run fired at now. Recurring
// frequencies align to the run's configured hour; once and on-demand runs
// self-disable by returning nil.
func Advance(run *models.ScheduledRun, now time.Time) *time.Time {
	now = now.UTC()
	switch run.Frequency {
	case models.FrequencyDaily:
		next := atHour(now.AddDate(0, 0, 1), run.RunHour)
		return &next
	case models.FrequencyWeekly:
		next := atHour(now.AddDate(0, 0, 7), run.RunHour)
		return &next
	case models.FrequencyMonthly:
		next := monthlyNext(run, now)
		return &next
	default:
		return nil
	}
}

func atHour(t time.Time, hour int) time.Time {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
}

// monthlyNext keeps the run's configured day-of-month, clamped per target
// month. The clamp never sticks: a run for the 31st fires February 28 and
// returns to March 31.
func monthlyNext(run *models.ScheduledRun, now time.Time) time.Time {
	day := run.RunDay
	if day <= 0 {
		// runs created before run_day existed fall back to the last fire time
		if run.NextRunAt != nil {
			day = run.NextRunAt.UTC().Day()
		} else {
			day = now.Day()
		}
	}

	year, month := now.Year(), now.Month()+1
	if month > time.December {
		year, month = year+1, time.January
	}
	return onDay(year, month, day, run.RunHour)
}

// FirstMonthly is the first occurrence of the run's configured day and hour
// at or after now.
func FirstMonthly(run *models.ScheduledRun, now time.Time) time.Time {
	now = now.UTC()
	first := onDay(now.Year(), now.Month(), run.RunDay, run.RunHour)
	if first.After(now) {
		return first
	}
	year, month := now.Year(), now.Month()+1
	if month > time.December {
		year, month = year+1, time.January
	}
	return onDay(year, month, run.RunDay, run.RunHour)
}

func onDay(year int, month time.Month, day, hour int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, clampHour(hour), 0, 0, 0, time.UTC)
}

func clampHour(hour int) int {
	if hour < 0 || hour > 23 {
		return 0
	}
	return hour
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
