// Package export renders tabular results into downloadable byte formats.
// Adapters consume the normalized table model only; they never see report
// definitions or queries.
package export

import (
	"fmt"

	"github.com/noah-isme/lms-report-api/internal/models"
)

// Exporter renders one tabular result into a target format.
type Exporter interface {
	Render(result *models.TabularResult, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the adapter registered for a format name.
func ForFormat(format string) (Exporter, error) {
	switch format {
	case "csv":
		return &CSVExporter{}, nil
	case "pdf":
		return &PDFExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{"csv", "pdf"}
}
