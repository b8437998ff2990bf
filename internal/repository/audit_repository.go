package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-report-api/internal/models"
)

// AuditRepository records report lifecycle events. Emission is fire and
// forget: a failed insert is logged and never surfaces to the caller.
type AuditRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAuditRepository(db *sqlx.DB, logger *zap.Logger) *AuditRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRepository{db: db, logger: logger}
}

// Emit stores one event.
func (r *AuditRepository) Emit(ctx context.Context, event models.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO audit_events (id, name, object_id, context_id, user_id, details, created_at)
        VALUES (:id, :name, :object_id, :context_id, :user_id, :details, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		r.logger.Sugar().Warnw("audit event dropped",
			"event", event.Name, "object_id", event.ObjectID, "error", err)
	}
}

// ListForObject returns the recorded events for one object, newest first.
func (r *AuditRepository) ListForObject(ctx context.Context, objectID string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.AuditEvent
	query := `SELECT id, name, object_id, context_id, user_id, details, created_at
        FROM audit_events WHERE object_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &out, query, objectID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
