package models

import "time"

// ContextLevel is the scope a role rule applies at.
type ContextLevel string

const (
	LevelSystem   ContextLevel = "system"
	LevelCategory ContextLevel = "category"
	LevelCourse   ContextLevel = "course"
)

// RoleRule grants access to users holding a role at a matching context level.
type RoleRule struct {
	Role         string       `json:"role"`
	ContextLevel ContextLevel `json:"context_level"`
}

// RoleSwitch is an explicit session override narrowing the user's effective
// role. Once set it takes precedence over the full role set, even when it is
// more restrictive.
type RoleSwitch struct {
	Role         string       `json:"role"`
	ContextLevel ContextLevel `json:"context_level"`
}

// RequestContext carries every runtime input of a report execution. It is
// threaded explicitly through the pipeline; nothing reads ambient state.
type RequestContext struct {
	UserID     string
	CourseID   string
	Filters    map[string]string
	Search     string
	StartDate  time.Time
	EndDate    time.Time
	Page       int
	Offset     int
	Limit      int
	SortColumn string
	SortDir    string
	RoleSwitch *RoleSwitch
	Mode       RenderMode
}

// FilterValue returns the context value bound to a filter key. The second
// return is false when the value is absent, which omits the predicate
// entirely rather than matching against an empty string.
func (c *RequestContext) FilterValue(key string) (string, bool) {
	if c.Filters == nil {
		return "", false
	}
	v, ok := c.Filters[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
