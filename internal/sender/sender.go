// Package sender delivers the extraction report. Reports are written as
// indented JSON into the output root they describe.
package sender

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// ReportFileName is the report's name inside the output root.
const ReportFileName = "extraction-report.json"

// WriteReport writes report to outputRoot, replacing any previous report,
// and returns the path written.
func WriteReport(outputRoot string, report *models.ExtractionReport) (string, error) {
	path := filepath.Join(outputRoot, ReportFileName)
	utils.LogDebug("Preparing extraction report", map[string]string{"path": path})

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return path, fmt.Errorf("failed to marshal report: %w", err)
	}

	tmp := path + "." + utils.GenerateRandomID() + ".tmp"
	if err := os.WriteFile(tmp, append(jsonData, '\n'), 0o644); err != nil { //nolint:gosec // the report is meant to be readable
		return path, fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return path, fmt.Errorf("failed to replace report: %w", err)
	}
	return path, nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*models.ExtractionReport, error) {
	//nolint:gosec // G304: path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report models.ExtractionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}
