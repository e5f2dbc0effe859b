package scan

import (
	"bytes"
	"encoding/csv"
	"path"
	"strconv"

	"composer/internal/ledger"
)

// Report file names, written under the reports directory.
const (
	ReportJSON = "ci_fail_report.json"
	ReportCSV  = "ci_fail_report.csv"
)

var csvHeader = []string{
	"file", "ok", "quality_ok", "structural_ok", "json_fields_ok",
	"actual_lines", "predicted", "required",
}

// Reports are the paths, relative to the workspace root, of written reports.
type Reports struct {
	JSON string
	CSV  string
}

// WriteReports writes the per-file details as JSON and CSV.
func WriteReports(res *Result, evidence *ledger.EvidenceStore, writer *ledger.Writer) (Reports, error) {
	details := res.Files
	if details == nil {
		details = []FileReport{}
	}
	jsonPath, err := evidence.WriteReport(ReportJSON, details)
	if err != nil {
		return Reports{}, err
	}

	data, err := encodeCSV(details)
	if err != nil {
		return Reports{}, err
	}
	csvPath := path.Join(evidence.ReportsDir(), ReportCSV)
	if _, err := writer.WriteIfChanged(csvPath, data); err != nil {
		return Reports{}, err
	}
	return Reports{JSON: jsonPath, CSV: csvPath}, nil
}

func encodeCSV(details []FileReport) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, d := range details {
		row := []string{
			d.File,
			strconv.FormatBool(d.OK),
			strconv.FormatBool(d.Guard.QualityOK),
			strconv.FormatBool(d.Guard.StructuralOK),
			strconv.FormatBool(d.Guard.JSONFieldsOK),
			strconv.Itoa(d.Guard.ActualLines),
			strconv.Itoa(d.Guard.Predicted),
			strconv.Itoa(d.Guard.Required),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
