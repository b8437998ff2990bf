package models

import (
	"encoding/json"
	"time"
)

// Pagination metadata returned alongside list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// AuditEvent is a fire-and-forget record of a report lifecycle action.
type AuditEvent struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	ObjectID  string          `db:"object_id" json:"object_id"`
	ContextID *string         `db:"context_id" json:"context_id,omitempty"`
	UserID    *string         `db:"user_id" json:"user_id,omitempty"`
	Details   json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Audit event names emitted by the report service.
const (
	EventReportCreated = "report_created"
	EventReportUpdated = "report_updated"
	EventReportDeleted = "report_deleted"
	EventReportViewed  = "report_viewed"
)
