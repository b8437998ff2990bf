package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

// UserRepository reads accounts and role assignments. It also implements
// the access-control collaborator consumed by the permission evaluator.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	query := `SELECT id, email, name, password_hash, active, site_admin, created_at FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	query := `SELECT id, email, name, password_hash, active, site_admin, created_at FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// AssignmentsForUser returns every role the user holds.
func (r *UserRepository) AssignmentsForUser(ctx context.Context, userID string) ([]models.RoleAssignment, error) {
	var out []models.RoleAssignment
	query := `SELECT user_id, role, context_level, course_id FROM role_assignments WHERE user_id = $1`
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	return out, nil
}

// IsSiteAdmin reports whether the account carries the site admin flag.
func (r *UserRepository) IsSiteAdmin(ctx context.Context, userID string) (bool, error) {
	var admin bool
	query := `SELECT site_admin FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &admin, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check site admin: %w", err)
	}
	return admin, nil
}

// HasCapability reports whether any of the user's roles carries the
// capability at the given context level. A course-level check also accepts
// roles assigned for that specific course.
func (r *UserRepository) HasCapability(ctx context.Context, userID, capability string, level models.ContextLevel, courseID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM role_assignments ra
        JOIN role_capabilities rc ON rc.role = ra.role
        WHERE ra.user_id = $1 AND rc.capability = $2
          AND (ra.context_level = $3 OR ra.context_level = 'system')
          AND ($4 = '' OR ra.course_id IS NULL OR ra.course_id = $4)`
	if err := r.db.GetContext(ctx, &count, query, userID, capability, level, courseID); err != nil {
		return false, fmt.Errorf("check capability: %w", err)
	}
	return count > 0, nil
}
