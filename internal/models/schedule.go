package models

import (
	"time"

	"github.com/lib/pq"
)

// Frequency enumerates how often a scheduled run fires.
type Frequency string

const (
	FrequencyOnce     Frequency = "once"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyOnDemand Frequency = "ondemand"
)

// ValidFrequency reports whether f is a recognised frequency value.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyOnDemand:
		return true
	}
	return false
}

// Recurring reports whether the frequency produces a next fire time after
// each execution.
func (f Frequency) Recurring() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// DeliveryMode selects what happens with the rendered artifact.
type DeliveryMode string

const (
	DeliveryExport DeliveryMode = "export"
	DeliveryEmail  DeliveryMode = "email"
	DeliveryBoth   DeliveryMode = "both"
)

// WantsExport reports whether the artifact should be written to storage.
func (d DeliveryMode) WantsExport() bool { return d == DeliveryExport || d == DeliveryBoth }

// WantsEmail reports whether the artifact should be mailed out.
func (d DeliveryMode) WantsEmail() bool { return d == DeliveryEmail || d == DeliveryBoth }

// ScheduledRun is a persisted timer attached to a report. It references the
// report by id only; the report must be re-fetched at execution time.
type ScheduledRun struct {
	ID         string         `db:"id" json:"id"`
	ReportID   string         `db:"report_id" json:"report_id"`
	UserID     string         `db:"user_id" json:"user_id"`
	Frequency  Frequency      `db:"frequency" json:"frequency"`
	RunHour    int            `db:"run_hour" json:"run_hour"`
	RunDay     int            `db:"run_day" json:"run_day,omitempty"`
	Format     string         `db:"format" json:"format"`
	Delivery   DeliveryMode   `db:"delivery" json:"delivery"`
	Recipients pq.StringArray `db:"recipients" json:"recipients,omitempty"`
	NextRunAt  *time.Time     `db:"next_run_at" json:"next_run_at,omitempty"`
	LastRunAt  *time.Time     `db:"last_run_at" json:"last_run_at,omitempty"`
	LastBucket *string        `db:"last_bucket" json:"-"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}
