package plugins

import (
	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

func builtinPermissions() []PermissionPlugin {
	return []PermissionPlugin{roleInCourse{}}
}

// roleInCourse grants access to users holding a role at a matching context
// level. Multiple instances OR together in the gate.
type roleInCourse struct{}

func (roleInCourse) Descriptor() Descriptor {
	return Descriptor{
		Kind:     models.KindPermissions,
		Name:     "roleincourse",
		Fullname: "Role at context level",
		ReportTypes: []models.ReportType{
			models.ReportTypeUsers,
			models.ReportTypeCourses,
			models.ReportTypeSQL,
			models.ReportTypeStatistics,
		},
		HasForm: true,
	}
}

func (roleInCourse) Rule(inst models.ComponentInstance) (models.RoleRule, error) {
	role := inst.FormData.Get("role", "")
	level := models.ContextLevel(inst.FormData.Get("context_level", ""))
	if role == "" {
		return models.RoleRule{}, appErrors.Clone(appErrors.ErrValidation, "permission rule is missing a role")
	}
	switch level {
	case models.LevelSystem, models.LevelCategory, models.LevelCourse:
	default:
		return models.RoleRule{}, appErrors.Clone(appErrors.ErrValidation, "permission rule has an invalid context level")
	}
	return models.RoleRule{Role: role, ContextLevel: level}, nil
}
