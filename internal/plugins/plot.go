package plugins

import (
	"strconv"
	"strings"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

func builtinPlots() []PlotPlugin {
	return []PlotPlugin{
		chartPlot{name: "pie", fullname: "Pie chart", chartType: models.ChartPie},
		chartPlot{name: "line", fullname: "Line chart", chartType: models.ChartLine},
		chartPlot{name: "bar", fullname: "Bar chart", chartType: models.ChartBar},
		chartPlot{name: "column", fullname: "Column chart", chartType: models.ChartColumn},
		chartPlot{name: "combination", fullname: "Combination chart", chartType: models.ChartCombination},
	}
}

// chartPlot projects a tabular result into a chart. All chart types share
// the same projection: one label column plus one or more value columns named
// in the form data. Values come from the chart-mode rendering, so missing
// data is already zero.
type chartPlot struct {
	name      string
	fullname  string
	chartType models.ChartType
}

func (p chartPlot) Descriptor() Descriptor {
	return Descriptor{
		Kind:     models.KindPlot,
		Name:     p.name,
		Fullname: p.fullname,
		ReportTypes: []models.ReportType{
			models.ReportTypeUsers,
			models.ReportTypeCourses,
			models.ReportTypeSQL,
			models.ReportTypeStatistics,
		},
		HasForm: true,
	}
}

func (p chartPlot) Project(inst models.ComponentInstance, result *models.TabularResult) (models.Chart, error) {
	labelKey := inst.FormData.Get("label_column", "")
	seriesSpec := inst.FormData.Get("value_columns", "")
	if labelKey == "" || seriesSpec == "" {
		return models.Chart{}, appErrors.Clone(appErrors.ErrValidation, "chart needs label_column and value_columns")
	}

	labelIdx, ok := columnIndex(result.Headers, labelKey)
	if !ok {
		return models.Chart{}, appErrors.Clone(appErrors.ErrValidation, "label column "+labelKey+" is not in the result")
	}

	labels := make([]string, len(result.Rows))
	for i, row := range result.Rows {
		labels[i] = row[labelIdx]
	}

	var series []models.ChartSeries
	for _, key := range strings.Split(seriesSpec, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		idx, ok := columnIndex(result.Headers, key)
		if !ok {
			return models.Chart{}, appErrors.Clone(appErrors.ErrValidation, "value column "+key+" is not in the result")
		}
		values := make([]float64, len(result.Rows))
		for i, row := range result.Rows {
			f, err := strconv.ParseFloat(row[idx], 64)
			if err != nil {
				return models.Chart{}, appErrors.Clone(appErrors.ErrValidation, "value column "+key+" is not numeric")
			}
			values[i] = f
		}
		series = append(series, models.ChartSeries{
			Name:   headerLabel(result.Headers, idx),
			Labels: labels,
			Values: values,
		})
	}
	if len(series) == 0 {
		return models.Chart{}, appErrors.Clone(appErrors.ErrValidation, "chart needs at least one value column")
	}
	if p.chartType == models.ChartPie && len(series) > 1 {
		return models.Chart{}, appErrors.Clone(appErrors.ErrValidation, "pie charts take a single value column")
	}

	return models.Chart{
		ID:     inst.ID,
		Type:   p.chartType,
		Title:  inst.FormData.Get("title", p.fullname),
		Series: series,
	}, nil
}

func columnIndex(headers []models.Header, key string) (int, bool) {
	for i, h := range headers {
		if h.Key == key {
			return i, true
		}
	}
	return 0, false
}

func headerLabel(headers []models.Header, idx int) string {
	if headers[idx].Label != "" {
		return headers[idx].Label
	}
	return headers[idx].Key
}
