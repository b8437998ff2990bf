package plugins

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

// MissingPlaceholder is what table-mode rendering shows for empty values.
// Chart mode feeds 0 instead so aggregations stay numeric.
const MissingPlaceholder = "--"

// fieldColumns maps the directly selectable entity fields per report type.
var fieldColumns = map[models.ReportType]map[string]string{
	models.ReportTypeUsers: {
		"name":    "u.name",
		"email":   "u.email",
		"status":  "u.status",
		"created": "u.created_at",
	},
	models.ReportTypeCourses: {
		"fullname":  "c.fullname",
		"shortname": "c.shortname",
		"category":  "c.category",
		"visible":   "c.visible",
		"created":   "c.created_at",
	},
}

func builtinColumns() []ColumnPlugin {
	return []ColumnPlugin{
		fieldColumn{},
		timespentColumn{},
		gradeColumn{},
		activityCountColumn{},
		sqlColumn{},
	}
}

func headerFromForm(form models.FormData, alias, fallbackLabel string, orderable bool) models.Header {
	h := models.Header{
		Key:       alias,
		Label:     form.Get("label", fallbackLabel),
		Align:     models.Alignment(form.Get("align", string(models.AlignLeft))),
		Width:     form.Get("width", ""),
		Wrap:      models.WrapMode(form.Get("wrap", string(models.WrapNone))),
		Orderable: orderable,
	}
	return h
}

// rawString normalises a scanned database value for display.
func rawString(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// rawFloat parses a scanned database value as a number; empty on failure.
func rawFloat(raw interface{}) (float64, bool) {
	s := strings.TrimSpace(rawString(raw))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatDuration renders seconds as "Xd Yh Zm". Components that are zero at
// the front are dropped; sub-minute values render as "Zm" with Z = 0.
func FormatDuration(seconds int64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// fieldColumn selects an entity field verbatim.
type fieldColumn struct{}

func (fieldColumn) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindColumns,
		Name:        "field",
		Fullname:    "Entity field",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		HasForm:     true,
	}
}

func (fieldColumn) Fragment(inst models.ComponentInstance, reportType models.ReportType) (ColumnFragment, error) {
	column := inst.FormData.Get("column", "")
	expr, ok := fieldColumns[reportType][column]
	if !ok {
		return ColumnFragment{}, appErrors.Clone(appErrors.ErrValidation, "unknown field column "+column)
	}
	return ColumnFragment{
		Select: fmt.Sprintf("%s AS %s", expr, column),
		Alias:  column,
		Header: headerFromForm(inst.FormData, column, column, true),
		Format: func(raw interface{}, mode models.RenderMode) string {
			s := rawString(raw)
			if s == "" && mode == models.RenderTable {
				return MissingPlaceholder
			}
			return s
		},
	}, nil
}

// timespentColumn aggregates tracked seconds per entity and renders them as
// a duration in table mode, raw seconds in chart mode.
type timespentColumn struct{}

func (timespentColumn) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindColumns,
		Name:        "totaltimespent",
		Fullname:    "Total time spent",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		Unique:      true,
		HasForm:     true,
	}
}

func (timespentColumn) Fragment(inst models.ComponentInstance, reportType models.ReportType) (ColumnFragment, error) {
	var sub string
	switch reportType {
	case models.ReportTypeUsers:
		sub = "(SELECT SUM(t.timespent) FROM user_course_time t WHERE t.user_id = u.id)"
	case models.ReportTypeCourses:
		sub = "(SELECT SUM(t.timespent) FROM user_course_time t WHERE t.course_id = c.id)"
	default:
		return ColumnFragment{}, appErrors.Clone(appErrors.ErrValidation, "totaltimespent does not apply to "+string(reportType))
	}
	return ColumnFragment{
		Select: sub + " AS totaltimespent",
		Alias:  "totaltimespent",
		Header: headerFromForm(inst.FormData, "totaltimespent", "Total time spent", false),
		Format: func(raw interface{}, mode models.RenderMode) string {
			f, ok := rawFloat(raw)
			if !ok || f == 0 {
				if mode == models.RenderTable {
					return MissingPlaceholder
				}
				return "0"
			}
			if mode == models.RenderChart {
				return strconv.FormatFloat(f, 'f', -1, 64)
			}
			return FormatDuration(int64(f))
		},
	}, nil
}

// gradeColumn averages final grades (stored as a 0..1 fraction) and renders
// a percentage rounded to two decimals.
type gradeColumn struct{}

func (gradeColumn) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindColumns,
		Name:        "grade",
		Fullname:    "Average grade",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		Unique:      true,
		HasForm:     true,
	}
}

func (gradeColumn) Fragment(inst models.ComponentInstance, reportType models.ReportType) (ColumnFragment, error) {
	var sub string
	switch reportType {
	case models.ReportTypeUsers:
		sub = "(SELECT AVG(g.finalgrade) FROM grades g WHERE g.user_id = u.id)"
	case models.ReportTypeCourses:
		sub = "(SELECT AVG(g.finalgrade) FROM grades g WHERE g.course_id = c.id)"
	default:
		return ColumnFragment{}, appErrors.Clone(appErrors.ErrValidation, "grade does not apply to "+string(reportType))
	}
	return ColumnFragment{
		Select: sub + " AS grade",
		Alias:  "grade",
		Header: headerFromForm(inst.FormData, "grade", "Grade", false),
		Format: func(raw interface{}, mode models.RenderMode) string {
			f, ok := rawFloat(raw)
			if !ok || f == 0 {
				if mode == models.RenderTable {
					return MissingPlaceholder
				}
				return "0"
			}
			return strconv.FormatFloat(round2(f*100), 'f', 2, 64)
		},
	}, nil
}

// activityCountColumn counts completed activities. Counts render as 0 in
// both modes; a zero count is data, not a missing value.
type activityCountColumn struct{}

func (activityCountColumn) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindColumns,
		Name:        "activitycount",
		Fullname:    "Completed activities",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		Unique:      true,
		HasForm:     true,
	}
}

func (activityCountColumn) Fragment(inst models.ComponentInstance, reportType models.ReportType) (ColumnFragment, error) {
	var sub string
	switch reportType {
	case models.ReportTypeUsers:
		sub = "(SELECT COUNT(*) FROM activity_completions ac WHERE ac.user_id = u.id)"
	case models.ReportTypeCourses:
		sub = "(SELECT COUNT(*) FROM activity_completions ac WHERE ac.course_id = c.id)"
	default:
		return ColumnFragment{}, appErrors.Clone(appErrors.ErrValidation, "activitycount does not apply to "+string(reportType))
	}
	return ColumnFragment{
		Select: sub + " AS activitycount",
		Alias:  "activitycount",
		Header: headerFromForm(inst.FormData, "activitycount", "Completed activities", false),
		Format: func(raw interface{}, mode models.RenderMode) string {
			f, ok := rawFloat(raw)
			if !ok {
				return "0"
			}
			return strconv.FormatInt(int64(f), 10)
		},
	}, nil
}

// sqlColumn exposes one named column of a custom SQL report's result set.
type sqlColumn struct{}

func (sqlColumn) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindColumns,
		Name:        "sqlcolumn",
		Fullname:    "SQL result column",
		ReportTypes: []models.ReportType{models.ReportTypeSQL, models.ReportTypeStatistics},
		RequiresSQL: true,
		HasForm:     true,
	}
}

func (sqlColumn) Fragment(inst models.ComponentInstance, reportType models.ReportType) (ColumnFragment, error) {
	column := inst.FormData.Get("column", "")
	if !validIdentifier(column) {
		return ColumnFragment{}, appErrors.Clone(appErrors.ErrValidation, "invalid sql column name")
	}
	return ColumnFragment{
		Select: fmt.Sprintf("q.%s AS %s", column, column),
		Alias:  column,
		Header: headerFromForm(inst.FormData, column, column, false),
		Format: func(raw interface{}, mode models.RenderMode) string {
			s := rawString(raw)
			if s == "" {
				if mode == models.RenderTable {
					return MissingPlaceholder
				}
				return "0"
			}
			return s
		},
	}, nil
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// validIdentifier accepts plain lowercase SQL identifiers only. Anything a
// user could smuggle a quote or space through is rejected.
func validIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
