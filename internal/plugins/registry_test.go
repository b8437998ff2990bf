package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

func TestListFiltersByReportType(t *testing.T) {
	r := NewRegistry()

	for _, d := range r.List(models.KindColumns, models.ReportTypeSQL, models.ComponentTree{}) {
		assert.True(t, d.Supports(models.ReportTypeSQL), "%s listed for sql but does not support it", d.Name)
	}

	names := func(ds []Descriptor) []string {
		out := make([]string, len(ds))
		for i, d := range ds {
			out[i] = d.Name
		}
		return out
	}

	userCols := names(r.List(models.KindColumns, models.ReportTypeUsers, models.ComponentTree{}))
	assert.Contains(t, userCols, "field")
	assert.Contains(t, userCols, "totaltimespent")
	assert.NotContains(t, userCols, "sqlcolumn")

	sqlCols := names(r.List(models.KindColumns, models.ReportTypeSQL, models.ComponentTree{}))
	assert.Equal(t, []string{"sqlcolumn"}, sqlCols)
}

func TestListExcludesPresentUniquePlugins(t *testing.T) {
	r := NewRegistry()

	tree := models.ComponentTree{
		models.KindColumns: {
			{ID: "c1", Plugin: "totaltimespent"},
			{ID: "c2", Plugin: "field", FormData: models.FormData{"column": "name"}},
		},
	}

	var listed []string
	for _, d := range r.List(models.KindColumns, models.ReportTypeUsers, tree) {
		listed = append(listed, d.Name)
	}

	assert.NotContains(t, listed, "totaltimespent", "unique plugin already in the tree must not be offered again")
	assert.Contains(t, listed, "field", "non-unique plugins stay listable")
	assert.Contains(t, listed, "grade")
}

func TestListSortedByName(t *testing.T) {
	r := NewRegistry()

	ds := r.List(models.KindColumns, models.ReportTypeUsers, models.ComponentTree{})
	require.Greater(t, len(ds), 1)
	for i := 1; i < len(ds); i++ {
		assert.Less(t, ds[i-1].Name, ds[i].Name)
	}
}

func TestResolveUnknownPlugin(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve(models.KindColumns, "doesnotexist")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnknownPlugin.Code, appErr.Code)

	_, err = r.Column("doesnotexist")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownPlugin.Code, appErrors.FromError(err).Code)
}

func TestResolveKnownPlugin(t *testing.T) {
	r := NewRegistry()

	d, err := r.Resolve(models.KindFilters, "searchtext")
	require.NoError(t, err)
	assert.True(t, d.Unique)

	d, err = r.Resolve(models.KindCustomSQL, "querysql")
	require.NoError(t, err)
	assert.True(t, d.RequiresSQL)
}
