package models

import (
	"time"

	"github.com/lib/pq"
)

// ReportType enumerates the supported report shapes. The type constrains
// which component plugins may be attached to a report.
type ReportType string

const (
	ReportTypeUsers      ReportType = "users"
	ReportTypeCourses    ReportType = "courses"
	ReportTypeSQL        ReportType = "sql"
	ReportTypeStatistics ReportType = "statistics"
)

// ComponentKind is the category a component instance belongs to.
type ComponentKind string

const (
	KindColumns     ComponentKind = "columns"
	KindFilters     ComponentKind = "filters"
	KindPermissions ComponentKind = "permissions"
	KindOrderBy     ComponentKind = "orderby"
	KindPlot        ComponentKind = "plot"
	KindCustomSQL   ComponentKind = "customsql"
)

// Kinds lists every component kind in a stable order.
var Kinds = []ComponentKind{KindColumns, KindFilters, KindPermissions, KindOrderBy, KindPlot, KindCustomSQL}

// FormData is the schema-less configuration record a plugin instance carries.
// Each plugin parses its own typed view out of it.
type FormData map[string]string

// Get returns the value for key, or the fallback when absent or empty.
func (f FormData) Get(key, fallback string) string {
	if v, ok := f[key]; ok && v != "" {
		return v
	}
	return fallback
}

// ComponentInstance is one configured use of a plugin within a report.
type ComponentInstance struct {
	ID       string   `json:"id"`
	Plugin   string   `json:"plugin"`
	FormData FormData `json:"formdata,omitempty"`
}

// ComponentTree groups component instances by kind. Order within a kind is
// significant: columns render in the order they were added.
type ComponentTree map[ComponentKind][]ComponentInstance

// Has reports whether an instance of the named plugin exists under kind.
func (t ComponentTree) Has(kind ComponentKind, plugin string) bool {
	for _, inst := range t[kind] {
		if inst.Plugin == plugin {
			return true
		}
	}
	return false
}

// Report is the persistent reporting entity. Components holds the encoded
// ComponentTree blob; decoding goes through the codec package.
type Report struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Type          ReportType     `db:"type" json:"type"`
	OwnerID       string         `db:"owner_id" json:"owner_id"`
	CourseID      *string        `db:"course_id" json:"course_id,omitempty"`
	Visible       bool           `db:"visible" json:"visible"`
	Global        bool           `db:"global" json:"global"`
	Components    string         `db:"components" json:"-"`
	ExportFormats pq.StringArray `db:"export_formats" json:"export_formats"`
	DisableTable  bool           `db:"disable_table" json:"disable_table"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// AllowsExport reports whether the given format is enabled for the report.
// An empty list means no exports have been enabled.
func (r *Report) AllowsExport(format string) bool {
	for _, f := range r.ExportFormats {
		if f == format {
			return true
		}
	}
	return false
}
