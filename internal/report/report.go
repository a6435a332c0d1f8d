// Package report exports finished scan results to downloadable files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/edaccess/coursecheck/internal/model"
)

var (
	// ErrScanNotFinished is returned when exporting a scan that has not
	// reached a terminal state yet.
	ErrScanNotFinished = errors.New("scan is still running")

	// ErrUnsupportedFormat is returned for report formats with no writer.
	ErrUnsupportedFormat = errors.New("unsupported report format")
)

// Export writes the scan result to dir in the given format and returns the
// written filename (relative to dir). The file is named
// report_<scanID>.<format>.
func Export(result *model.ScanResult, format model.ReportFormat, dir string) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nil scan result")
	}
	if !result.Status.Terminal() {
		return "", fmt.Errorf("%w: %s", ErrScanNotFinished, result.ScanID)
	}

	var write func(*model.ScanResult, string) error
	switch format {
	case model.FormatJSON:
		write = writeJSON
	case model.FormatCSV:
		write = writeCSV
	case model.FormatHTML:
		write = writeHTML
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("report_%s.%s", result.ScanID, format)
	if err := write(result, filepath.Join(dir, name)); err != nil {
		return "", err
	}
	return name, nil
}

func writeJSON(result *model.ScanResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func writeCSV(result *model.ScanResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"rule_id", "severity", "wcag_criteria", "wcag_level", "content_type", "content_item_id", "content_item_title", "location", "message"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	for _, iss := range result.Issues {
		row := []string{
			iss.RuleID,
			string(iss.Severity),
			iss.WCAGCriterion,
			string(iss.WCAGLevel),
			string(iss.ContentType),
			iss.ContentItemID,
			iss.ContentItemTitle,
			iss.LocationHint,
			iss.Message,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

var htmlReport = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Accessibility report for course {{.CourseID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
th { background: #f0f0f0; }
.sev-error { color: #b00020; font-weight: bold; }
.sev-warning { color: #8a6d00; }
</style>
</head>
<body>
<h1>Accessibility report</h1>
<p>Course {{.CourseID}} &mdash; scan {{.ScanID}} ({{.Status}})</p>
<p>{{.Counts.Passed}} passed, {{.Counts.Warnings}} warnings, {{.Counts.Errors}} errors across {{.ItemsScanned}} items.</p>
{{if .Issues}}
<table>
<tr><th>Severity</th><th>Rule</th><th>WCAG</th><th>Content</th><th>Location</th><th>Message</th></tr>
{{range .Issues}}
<tr>
<td class="sev-{{.Severity}}">{{.Severity}}</td>
<td>{{.RuleID}}</td>
<td>{{.WCAGCriterion}} ({{.WCAGLevel}})</td>
<td>{{.ContentItemTitle}} ({{.ContentType}})</td>
<td>{{.LocationHint}}</td>
<td>{{.Message}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No issues found.</p>
{{end}}
</body>
</html>
`))

func writeHTML(result *model.ScanResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if err := htmlReport.Execute(f, result); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
