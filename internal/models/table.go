package models

// RenderMode tells a column plugin which consumer it is formatting for.
// Table mode produces human-readable text (missing values as a placeholder),
// chart mode produces numeric feed values (missing values as zero).
type RenderMode string

const (
	RenderTable RenderMode = "table"
	RenderChart RenderMode = "chart"
)

// Alignment of a rendered column.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// WrapMode controls cell text wrapping.
type WrapMode string

const (
	WrapNone WrapMode = "nowrap"
	WrapCell WrapMode = "wrap"
)

// Header describes one column of a tabular result.
type Header struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Align     Alignment `json:"align"`
	Width     string    `json:"width,omitempty"`
	Wrap      WrapMode  `json:"wrap"`
	Orderable bool      `json:"orderable"`
}

// TabularResult is the normalized output of one report execution. It is
// produced fresh per execution and never persisted, except as an export
// artifact.
type TabularResult struct {
	Headers  []Header          `json:"headers"`
	Rows     [][]string        `json:"rows"`
	RowCount int               `json:"row_count"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// ChartType is a closed enumeration; adding a chart type means adding a new
// plot plugin case, not changing this dispatch contract.
type ChartType string

const (
	ChartPie         ChartType = "pie"
	ChartLine        ChartType = "line"
	ChartBar         ChartType = "bar"
	ChartColumn      ChartType = "column"
	ChartCombination ChartType = "combination"
)

// ChartSeries is one named series of a chart projection.
type ChartSeries struct {
	Name   string    `json:"name"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Chart is the plot projection of a tabular result.
type Chart struct {
	ID     string        `json:"id"`
	Type   ChartType     `json:"type"`
	Title  string        `json:"title"`
	Series []ChartSeries `json:"series"`
}
