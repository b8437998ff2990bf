// Package rbac evaluates the role rules attached to a report. It consults
// the host platform's access-control collaborator for capabilities and the
// role-assignment store for held roles; it never reimplements either.
package rbac

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-report-api/internal/models"
)

// CapabilityManageReports gates the default policy and the list-all view.
const CapabilityManageReports = "managereports"

// AccessChecker is the host platform's access-control collaborator.
type AccessChecker interface {
	HasCapability(ctx context.Context, userID, capability string, level models.ContextLevel, courseID string) (bool, error)
	IsSiteAdmin(ctx context.Context, userID string) (bool, error)
}

// AssignmentStore resolves the roles a user holds.
type AssignmentStore interface {
	AssignmentsForUser(ctx context.Context, userID string) ([]models.RoleAssignment, error)
}

// Evaluator decides whether a user passes a report's permission gate.
type Evaluator struct {
	checker     AccessChecker
	assignments AssignmentStore
	logger      *zap.Logger
}

func NewEvaluator(checker AccessChecker, assignments AssignmentStore, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{checker: checker, assignments: assignments, logger: logger}
}

// Grants reports whether the user satisfies at least one rule. Rules OR
// together. An active role switch replaces the user's full role set with the
// single switched role, even when that denies access the full set would
// grant.
func (e *Evaluator) Grants(ctx context.Context, rules []models.RoleRule, userID string, rctx *models.RequestContext) (bool, error) {
	if len(rules) == 0 {
		return e.DefaultGrants(ctx, userID, rctx)
	}

	effective, err := e.effectiveRoles(ctx, userID, rctx)
	if err != nil {
		return false, err
	}

	for _, rule := range rules {
		for _, held := range effective {
			if held.Role == rule.Role && held.ContextLevel == rule.ContextLevel {
				return true, nil
			}
		}
	}
	return false, nil
}

// DefaultGrants is the empty-rule-set policy: site administrators and
// holders of the manage-reports capability pass, everyone else fails.
func (e *Evaluator) DefaultGrants(ctx context.Context, userID string, rctx *models.RequestContext) (bool, error) {
	admin, err := e.checker.IsSiteAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}

	level := models.LevelSystem
	courseID := ""
	if rctx != nil && rctx.CourseID != "" {
		level = models.LevelCourse
		courseID = rctx.CourseID
	}
	return e.checker.HasCapability(ctx, userID, CapabilityManageReports, level, courseID)
}

func (e *Evaluator) effectiveRoles(ctx context.Context, userID string, rctx *models.RequestContext) ([]models.RoleAssignment, error) {
	if rctx != nil && rctx.RoleSwitch != nil {
		sw := rctx.RoleSwitch
		e.logger.Sugar().Debugw("role switch active", "user_id", userID, "role", sw.Role, "context_level", sw.ContextLevel)
		return []models.RoleAssignment{{UserID: userID, Role: sw.Role, ContextLevel: sw.ContextLevel}}, nil
	}
	held, err := e.assignments.AssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return held, nil
}
