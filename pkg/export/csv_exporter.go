package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/noah-isme/lms-report-api/internal/models"
)

// CSVExporter renders tabular results into CSV bytes.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) ContentType() string { return "text/csv" }
func (e *CSVExporter) Extension() string   { return "csv" }

// Render writes one header line followed by the rows as-is; cells already
// carry their table-mode rendering.
func (e *CSVExporter) Render(result *models.TabularResult, title string) ([]byte, error) {
	if result == nil || len(result.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	labels := make([]string, len(result.Headers))
	for i, h := range result.Headers {
		labels[i] = h.Label
	}
	if err := writer.Write(labels); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range result.Rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
