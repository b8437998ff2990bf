package plugins

import (
	"strings"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

func builtinSQL() []SQLPlugin {
	return []SQLPlugin{querySQL{}}
}

// querySQL supplies the base query of a sql-type report. The statement is
// wrapped as a subquery by the builder, so it must be a single SELECT with
// no trailing statements.
type querySQL struct{}

func (querySQL) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindCustomSQL,
		Name:        "querysql",
		Fullname:    "Custom SQL query",
		ReportTypes: []models.ReportType{models.ReportTypeSQL, models.ReportTypeStatistics},
		Unique:      true,
		RequiresSQL: true,
		HasForm:     true,
	}
}

func (querySQL) Query(inst models.ComponentInstance) (string, error) {
	raw := strings.TrimSpace(inst.FormData.Get("querysql", ""))
	if raw == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "custom sql query is empty")
	}
	if err := validateSelect(raw); err != nil {
		return "", err
	}
	return strings.TrimSuffix(raw, ";"), nil
}

// validateSelect rejects anything that is not one SELECT statement. This is
// a structural guard, not an authorization boundary; the executing database
// role carries read-only grants.
func validateSelect(q string) error {
	upper := strings.ToUpper(q)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return appErrors.Clone(appErrors.ErrValidation, "custom sql must be a SELECT statement")
	}
	trimmed := strings.TrimSuffix(strings.TrimSpace(q), ";")
	if strings.ContainsRune(trimmed, ';') {
		return appErrors.Clone(appErrors.ErrValidation, "custom sql must be a single statement")
	}
	for _, kw := range []string{"INSERT ", "UPDATE ", "DELETE ", "DROP ", "ALTER ", "TRUNCATE ", "GRANT ", "CREATE "} {
		if strings.Contains(upper, kw) {
			return appErrors.Clone(appErrors.ErrValidation, "custom sql must not contain data modification statements")
		}
	}
	return nil
}
