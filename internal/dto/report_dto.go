// Package dto defines the HTTP request and response payloads.
package dto

import (
	"github.com/noah-isme/lms-report-api/internal/models"
)

// CreateReportRequest creates a new empty report.
type CreateReportRequest struct {
	Name          string   `json:"name" validate:"required,min=1,max=255"`
	Type          string   `json:"type" validate:"required,oneof=users courses sql statistics"`
	CourseID      *string  `json:"course_id,omitempty"`
	Visible       bool     `json:"visible"`
	Global        bool     `json:"global"`
	ExportFormats []string `json:"export_formats" validate:"omitempty,dive,oneof=csv pdf"`
	DisableTable  bool     `json:"disable_table"`
}

// UpdateReportRequest mutates report metadata; components go through the
// component endpoints.
type UpdateReportRequest struct {
	Name          *string  `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	CourseID      *string  `json:"course_id,omitempty"`
	Visible       *bool    `json:"visible,omitempty"`
	Global        *bool    `json:"global,omitempty"`
	ExportFormats []string `json:"export_formats,omitempty" validate:"omitempty,dive,oneof=csv pdf"`
	DisableTable  *bool    `json:"disable_table,omitempty"`
}

// AddComponentRequest attaches a configured plugin instance to a report.
type AddComponentRequest struct {
	Kind     string            `json:"kind" validate:"required,oneof=columns filters permissions orderby plot customsql"`
	Plugin   string            `json:"plugin" validate:"required"`
	FormData map[string]string `json:"formdata,omitempty"`
}

// ExecuteRequest carries the runtime inputs of one interactive execution.
type ExecuteRequest struct {
	Filters    map[string]string `json:"filters,omitempty"`
	Search     string            `json:"search,omitempty"`
	StartDate  string            `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string            `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Page       int               `json:"page,omitempty" validate:"omitempty,min=1"`
	PageSize   int               `json:"page_size,omitempty" validate:"omitempty,min=1"`
	SortColumn string            `json:"sort_column,omitempty"`
	SortDir    string            `json:"sort_dir,omitempty" validate:"omitempty,oneof=asc desc"`
	RoleSwitch *RoleSwitchDTO    `json:"role_switch,omitempty"`
}

// RoleSwitchDTO narrows the caller's effective role for this execution.
type RoleSwitchDTO struct {
	Role         string `json:"role" validate:"required"`
	ContextLevel string `json:"context_level" validate:"required,oneof=system category course"`
}

// ExecuteResponse returns both renderings of an execution.
type ExecuteResponse struct {
	Table  *models.TabularResult `json:"table,omitempty"`
	Charts []models.Chart        `json:"charts,omitempty"`
	Cached bool                  `json:"cached"`
}

// ImportReportRequest wraps the uploaded XML document.
type ImportReportRequest struct {
	Document string `json:"document" validate:"required"`
}

// DuplicateReportRequest names the copy.
type DuplicateReportRequest struct {
	Name string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
}

// CreateScheduleRequest attaches a scheduled run to a report.
type CreateScheduleRequest struct {
	Frequency  string   `json:"frequency" validate:"required,oneof=once daily weekly monthly ondemand"`
	RunHour    int      `json:"run_hour" validate:"min=0,max=23"`
	RunDay     int      `json:"run_day,omitempty" validate:"omitempty,min=1,max=31"`
	Format     string   `json:"format" validate:"required,oneof=csv pdf"`
	Delivery   string   `json:"delivery" validate:"required,oneof=export email both"`
	Recipients []string `json:"recipients,omitempty" validate:"omitempty,dive,email"`
}

// ExportResponse points at a freshly rendered artifact.
type ExportResponse struct {
	Filename  string `json:"filename"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
