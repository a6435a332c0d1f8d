package report_test

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/report"
)

func finishedScan() *model.ScanResult {
	done := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.ScanResult{
		ScanID:      "scan-1",
		CourseID:    "101",
		Status:      model.ScanCompleted,
		StartedAt:   done.Add(-time.Minute),
		CompletedAt: &done,
		Issues: []model.Issue{
			{
				RuleID:           "img-missing-alt",
				Severity:         model.SeverityError,
				WCAGCriterion:    "1.1.1",
				WCAGLevel:        model.LevelA,
				Message:          `image "x.png" has no alt attribute`,
				ContentItemID:    "intro",
				ContentItemTitle: "Intro, part 1",
				ContentType:      model.ContentPage,
				LocationHint:     "img:nth-of-type(1)",
			},
			{
				RuleID:        "link-text-vague",
				Severity:      model.SeverityWarning,
				WCAGCriterion: "2.4.4",
				WCAGLevel:     model.LevelA,
				Message:       "link text \"click here\" does not describe the destination",
				ContentItemID: "intro",
				ContentType:   model.ContentPage,
			},
		},
		Counts:       model.Counts{Passed: 10, Warnings: 1, Errors: 1},
		ItemsScanned: 2,
	}
}

func TestExport_JSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	name, err := report.Export(finishedScan(), model.FormatJSON, dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if name != "report_scan-1.json" {
		t.Errorf("filename: got %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded model.ScanResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.ScanID != "scan-1" || len(decoded.Issues) != 2 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestExport_CSV(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	name, err := report.Export(finishedScan(), model.FormatCSV, dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse csv (quoting of commas in messages?): %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "rule_id" {
		t.Errorf("header: %v", rows[0])
	}
	if rows[1][0] != "img-missing-alt" || rows[1][6] != "Intro, part 1" {
		t.Errorf("row 1: %v", rows[1])
	}
}

func TestExport_HTML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	name, err := report.Export(finishedScan(), model.FormatHTML, dir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	html := string(data)
	for _, want := range []string{"img-missing-alt", "1.1.1", "scan-1"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
	// Issue text must be escaped, not injected.
	if !strings.Contains(html, "&#34;click here&#34;") && !strings.Contains(html, "&quot;click here&quot;") {
		t.Errorf("expected escaped quotes in: %s", html)
	}
}

func TestExport_PDFUnsupported(t *testing.T) {
	t.Parallel()

	_, err := report.Export(finishedScan(), model.FormatPDF, t.TempDir())
	if !errors.Is(err, report.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExport_RunningScanRejected(t *testing.T) {
	t.Parallel()

	running := finishedScan()
	running.Status = model.ScanRunning
	running.CompletedAt = nil

	_, err := report.Export(running, model.FormatJSON, t.TempDir())
	if !errors.Is(err, report.ErrScanNotFinished) {
		t.Fatalf("expected ErrScanNotFinished, got %v", err)
	}
}

func TestExport_CreatesDirectory(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "downloads")

	if _, err := report.Export(finishedScan(), model.FormatJSON, dir); err != nil {
		t.Fatalf("Export into missing dir: %v", err)
	}
}
