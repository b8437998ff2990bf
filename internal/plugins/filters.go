package plugins

import (
	"github.com/noah-isme/lms-report-api/internal/models"
)

func builtinFilters() []FilterPlugin {
	return []FilterPlugin{
		statusFilter{},
		courseFilter{},
		userFilter{},
		searchTextFilter{},
		dateRangeFilter{},
	}
}

// statusFilter narrows user reports by account status.
type statusFilter struct{}

func (statusFilter) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindFilters,
		Name:        "status",
		Fullname:    "Account status",
		ReportTypes: []models.ReportType{models.ReportTypeUsers},
		HasForm:     true,
	}
}

func (statusFilter) Predicate(inst models.ComponentInstance, reportType models.ReportType, rctx *models.RequestContext) (string, []interface{}, bool) {
	value, ok := rctx.FilterValue(inst.FormData.Get("key", "status"))
	if !ok || value == "all" {
		return "", nil, false
	}
	return "u.status = ?", []interface{}{value}, true
}

// courseFilter scopes users to a course through enrolments, or course
// reports to a single course.
type courseFilter struct{}

func (courseFilter) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindFilters,
		Name:        "course",
		Fullname:    "Course",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		HasForm:     true,
	}
}

func (courseFilter) Predicate(inst models.ComponentInstance, reportType models.ReportType, rctx *models.RequestContext) (string, []interface{}, bool) {
	value, ok := rctx.FilterValue(inst.FormData.Get("key", "course"))
	if !ok {
		return "", nil, false
	}
	if reportType == models.ReportTypeCourses {
		return "c.id = ?", []interface{}{value}, true
	}
	return "EXISTS (SELECT 1 FROM enrolments e WHERE e.user_id = u.id AND e.course_id = ?)", []interface{}{value}, true
}

// userFilter narrows to one user.
type userFilter struct{}

func (userFilter) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindFilters,
		Name:        "user",
		Fullname:    "User",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		HasForm:     true,
	}
}

func (userFilter) Predicate(inst models.ComponentInstance, reportType models.ReportType, rctx *models.RequestContext) (string, []interface{}, bool) {
	value, ok := rctx.FilterValue(inst.FormData.Get("key", "user"))
	if !ok {
		return "", nil, false
	}
	if reportType == models.ReportTypeCourses {
		return "EXISTS (SELECT 1 FROM enrolments e WHERE e.course_id = c.id AND e.user_id = ?)", []interface{}{value}, true
	}
	return "u.id = ?", []interface{}{value}, true
}

// searchTextFilter applies the free-text search box.
type searchTextFilter struct{}

func (searchTextFilter) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindFilters,
		Name:        "searchtext",
		Fullname:    "Free-text search",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		Unique:      true,
	}
}

func (searchTextFilter) Predicate(inst models.ComponentInstance, reportType models.ReportType, rctx *models.RequestContext) (string, []interface{}, bool) {
	if rctx.Search == "" {
		return "", nil, false
	}
	needle := "%" + rctx.Search + "%"
	if reportType == models.ReportTypeCourses {
		return "(c.fullname ILIKE ? OR c.shortname ILIKE ?)", []interface{}{needle, needle}, true
	}
	return "(u.name ILIKE ? OR u.email ILIKE ?)", []interface{}{needle, needle}, true
}

// dateRangeFilter bounds rows by creation time.
type dateRangeFilter struct{}

func (dateRangeFilter) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindFilters,
		Name:        "daterange",
		Fullname:    "Date range",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		Unique:      true,
	}
}

func (dateRangeFilter) Predicate(inst models.ComponentInstance, reportType models.ReportType, rctx *models.RequestContext) (string, []interface{}, bool) {
	column := "u.created_at"
	if reportType == models.ReportTypeCourses {
		column = "c.created_at"
	}
	switch {
	case !rctx.StartDate.IsZero() && !rctx.EndDate.IsZero():
		return column + " BETWEEN ? AND ?", []interface{}{rctx.StartDate, rctx.EndDate}, true
	case !rctx.StartDate.IsZero():
		return column + " >= ?", []interface{}{rctx.StartDate}, true
	case !rctx.EndDate.IsZero():
		return column + " <= ?", []interface{}{rctx.EndDate}, true
	}
	return "", nil, false
}
