package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/models"
)

func TestFieldOrderBuildsClause(t *testing.T) {
	clause, err := fieldOrder{}.OrderBy(models.ComponentInstance{
		FormData: models.FormData{"column": "name", "direction": "desc"},
	}, models.ReportTypeUsers)
	require.NoError(t, err)
	assert.Equal(t, "u.name DESC", clause)

	clause, err = fieldOrder{}.OrderBy(models.ComponentInstance{
		FormData: models.FormData{"column": "fullname"},
	}, models.ReportTypeCourses)
	require.NoError(t, err)
	assert.Equal(t, "c.fullname ASC", clause, "direction defaults to ascending")
}

func TestFieldOrderRejectsNonOrderableColumn(t *testing.T) {
	_, err := fieldOrder{}.OrderBy(models.ComponentInstance{
		FormData: models.FormData{"column": "totaltimespent"},
	}, models.ReportTypeUsers)
	assert.Error(t, err)

	_, err = fieldOrder{}.OrderBy(models.ComponentInstance{
		FormData: models.FormData{"column": "name", "direction": "sideways"},
	}, models.ReportTypeUsers)
	assert.Error(t, err)
}
