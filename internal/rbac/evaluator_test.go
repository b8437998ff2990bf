package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/models"
)

type checkerStub struct {
	admins       map[string]bool
	capabilities map[string]bool
}

func (c *checkerStub) HasCapability(ctx context.Context, userID, capability string, level models.ContextLevel, courseID string) (bool, error) {
	return c.capabilities[userID+":"+capability], nil
}

func (c *checkerStub) IsSiteAdmin(ctx context.Context, userID string) (bool, error) {
	return c.admins[userID], nil
}

type assignmentStub struct {
	held map[string][]models.RoleAssignment
}

func (a *assignmentStub) AssignmentsForUser(ctx context.Context, userID string) ([]models.RoleAssignment, error) {
	return a.held[userID], nil
}

func newEvaluator(assignments map[string][]models.RoleAssignment) *Evaluator {
	return NewEvaluator(
		&checkerStub{admins: map[string]bool{"admin": true}, capabilities: map[string]bool{"manager-user:managereports": true}},
		&assignmentStub{held: assignments},
		nil,
	)
}

func TestGrantsMatchesRoleAtLevel(t *testing.T) {
	rules := []models.RoleRule{{Role: "manager", ContextLevel: models.LevelSystem}}

	e := newEvaluator(map[string][]models.RoleAssignment{
		"course-manager": {{UserID: "course-manager", Role: "manager", ContextLevel: models.LevelCourse}},
		"system-manager": {{UserID: "system-manager", Role: "manager", ContextLevel: models.LevelSystem}},
	})

	ok, err := e.Grants(context.Background(), rules, "course-manager", &models.RequestContext{})
	require.NoError(t, err)
	assert.False(t, ok, "manager held only at course level must not satisfy a system rule")

	ok, err = e.Grants(context.Background(), rules, "system-manager", &models.RequestContext{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrantsRulesOrTogether(t *testing.T) {
	rules := []models.RoleRule{
		{Role: "manager", ContextLevel: models.LevelSystem},
		{Role: "teacher", ContextLevel: models.LevelCourse},
	}

	e := newEvaluator(map[string][]models.RoleAssignment{
		"teacher-user": {{UserID: "teacher-user", Role: "teacher", ContextLevel: models.LevelCourse}},
	})

	ok, err := e.Grants(context.Background(), rules, "teacher-user", &models.RequestContext{})
	require.NoError(t, err)
	assert.True(t, ok, "any single matching rule passes the gate")
}

func TestRoleSwitchNarrowsEvenWhenMoreRestrictive(t *testing.T) {
	rules := []models.RoleRule{{Role: "manager", ContextLevel: models.LevelSystem}}

	e := newEvaluator(map[string][]models.RoleAssignment{
		"system-manager": {
			{UserID: "system-manager", Role: "manager", ContextLevel: models.LevelSystem},
			{UserID: "system-manager", Role: "student", ContextLevel: models.LevelCourse},
		},
	})

	rctx := &models.RequestContext{
		RoleSwitch: &models.RoleSwitch{Role: "student", ContextLevel: models.LevelCourse},
	}
	ok, err := e.Grants(context.Background(), rules, "system-manager", rctx)
	require.NoError(t, err)
	assert.False(t, ok, "the switched role replaces the full role set")

	ok, err = e.Grants(context.Background(), rules, "system-manager", &models.RequestContext{})
	require.NoError(t, err)
	assert.True(t, ok, "without a switch the full role set applies")
}

func TestEmptyRuleSetDefaultPolicy(t *testing.T) {
	e := newEvaluator(nil)

	ok, err := e.Grants(context.Background(), nil, "admin", &models.RequestContext{})
	require.NoError(t, err)
	assert.True(t, ok, "site admins pass the default gate")

	ok, err = e.Grants(context.Background(), nil, "manager-user", &models.RequestContext{})
	require.NoError(t, err)
	assert.True(t, ok, "manage-reports capability passes the default gate")

	ok, err = e.Grants(context.Background(), nil, "random-user", &models.RequestContext{})
	require.NoError(t, err)
	assert.False(t, ok)
}
