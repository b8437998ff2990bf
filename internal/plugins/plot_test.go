package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-report-api/internal/models"
)

func chartFixture() *models.TabularResult {
	return &models.TabularResult{
		Headers: []models.Header{
			{Key: "fullname", Label: "Course"},
			{Key: "totaltimespent", Label: "Total time spent"},
			{Key: "grade", Label: "Grade"},
		},
		Rows: [][]string{
			{"Algebra", "3600", "80.00"},
			{"Biology", "0", "0"},
		},
		RowCount: 2,
	}
}

func TestChartProjection(t *testing.T) {
	plot := chartPlot{name: "column", fullname: "Column chart", chartType: models.ChartColumn}

	chart, err := plot.Project(models.ComponentInstance{
		ID: "p1",
		FormData: models.FormData{
			"label_column":  "fullname",
			"value_columns": "totaltimespent, grade",
			"title":         "Course usage",
		},
	}, chartFixture())
	require.NoError(t, err)

	assert.Equal(t, models.ChartColumn, chart.Type)
	assert.Equal(t, "Course usage", chart.Title)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, "Total time spent", chart.Series[0].Name)
	assert.Equal(t, []string{"Algebra", "Biology"}, chart.Series[0].Labels)
	assert.Equal(t, []float64{3600, 0}, chart.Series[0].Values)
	assert.Equal(t, []float64{80, 0}, chart.Series[1].Values)
}

func TestPieChartTakesSingleSeries(t *testing.T) {
	plot := chartPlot{name: "pie", fullname: "Pie chart", chartType: models.ChartPie}

	_, err := plot.Project(models.ComponentInstance{
		ID:       "p1",
		FormData: models.FormData{"label_column": "fullname", "value_columns": "totaltimespent,grade"},
	}, chartFixture())
	assert.Error(t, err)

	chart, err := plot.Project(models.ComponentInstance{
		ID:       "p1",
		FormData: models.FormData{"label_column": "fullname", "value_columns": "grade"},
	}, chartFixture())
	require.NoError(t, err)
	assert.Len(t, chart.Series, 1)
}

func TestChartProjectionRejectsUnknownColumns(t *testing.T) {
	plot := chartPlot{name: "line", fullname: "Line chart", chartType: models.ChartLine}

	_, err := plot.Project(models.ComponentInstance{
		FormData: models.FormData{"label_column": "missing", "value_columns": "grade"},
	}, chartFixture())
	assert.Error(t, err)

	_, err = plot.Project(models.ComponentInstance{
		FormData: models.FormData{"label_column": "fullname", "value_columns": "missing"},
	}, chartFixture())
	assert.Error(t, err)

	_, err = plot.Project(models.ComponentInstance{
		FormData: models.FormData{"label_column": "fullname", "value_columns": "fullname"},
	}, chartFixture())
	assert.Error(t, err, "non-numeric value column")
}
