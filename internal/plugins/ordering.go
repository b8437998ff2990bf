package plugins

import (
	"fmt"
	"strings"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

func builtinOrderings() []OrderPlugin {
	return []OrderPlugin{fieldOrder{}}
}

// SortableColumns returns the alias -> SQL expression map of columns that
// accept an ORDER BY for the report type. A requested sort column outside
// this map is ignored and the report's declared default order applies.
func SortableColumns(reportType models.ReportType) map[string]string {
	return fieldColumns[reportType]
}

// fieldOrder declares the report's default ordering. Unique per report.
type fieldOrder struct{}

func (fieldOrder) Descriptor() Descriptor {
	return Descriptor{
		Kind:        models.KindOrderBy,
		Name:        "fieldorder",
		Fullname:    "Order by field",
		ReportTypes: []models.ReportType{models.ReportTypeUsers, models.ReportTypeCourses},
		Unique:      true,
		RequiresSQL: true,
		HasForm:     true,
	}
}

func (fieldOrder) OrderBy(inst models.ComponentInstance, reportType models.ReportType) (string, error) {
	column := inst.FormData.Get("column", "")
	direction := strings.ToUpper(inst.FormData.Get("direction", "asc"))
	if direction != "ASC" && direction != "DESC" {
		return "", appErrors.Clone(appErrors.ErrValidation, "order direction must be asc or desc")
	}
	expr, ok := fieldColumns[reportType][column]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "column "+column+" is not orderable")
	}
	return fmt.Sprintf("%s %s", expr, direction), nil
}
