// Package cli parses command line arguments for the one-shot scanner.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/edaccess/coursecheck/internal/model"
)

// Options are the parsed command line arguments.
type Options struct {
	CanvasURL   string
	Token       string
	CourseID    string
	Content     model.ScanOptions
	WCAGLevel   model.WCAGLevel
	ScanDepth   model.ScanDepth
	Format      model.ReportFormat
	OutDir      string
	Timeout     time.Duration
	Concurrency int
	Quiet       bool
}

// ParseArgs parses args (not including the program name) into Options.
// Errors and usage go to errOut.
func ParseArgs(args []string, errOut io.Writer) (Options, error) {
	opts := Options{}

	fs := flag.NewFlagSet("coursecheck", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var types, level, depth, format string
	fs.StringVar(&opts.CanvasURL, "canvas", "", "Canvas instance base URL (required)")
	fs.StringVar(&opts.Token, "token", "", "Canvas API token (required)")
	fs.StringVar(&opts.CourseID, "course", "", "Course id to scan (required)")
	fs.StringVar(&types, "types", "pages,assignments,announcements", "Content types to scan (comma-separated: pages,assignments,announcements,modules)")
	fs.StringVar(&level, "level", "AA", "Maximum WCAG level to check (A, AA, AAA)")
	fs.StringVar(&depth, "depth", "standard", "Scan depth (quick, standard, deep)")
	fs.StringVar(&format, "format", "", "Export report format (json, csv, html); empty disables export")
	fs.StringVar(&opts.OutDir, "out", ".", "Directory for exported reports")
	fs.DurationVar(&opts.Timeout, "timeout", 15*time.Second, "Per-item fetch timeout")
	fs.IntVar(&opts.Concurrency, "concurrency", 4, "Concurrent item evaluations")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Suppress per-issue output, print the summary only")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	if opts.CanvasURL == "" {
		return Options{}, fmt.Errorf("-canvas (Canvas base URL) is required")
	}
	if opts.Token == "" {
		return Options{}, fmt.Errorf("-token (Canvas API token) is required")
	}
	if opts.CourseID == "" {
		return Options{}, fmt.Errorf("-course (course id) is required")
	}
	if opts.Timeout <= 0 {
		return Options{}, fmt.Errorf("-timeout must be > 0 (got %s)", opts.Timeout)
	}
	if opts.Concurrency <= 0 {
		return Options{}, fmt.Errorf("-concurrency must be > 0 (got %d)", opts.Concurrency)
	}

	content, err := parseContentTypes(types)
	if err != nil {
		return Options{}, err
	}
	opts.Content = content

	switch model.WCAGLevel(strings.ToUpper(level)) {
	case model.LevelA, model.LevelAA, model.LevelAAA:
		opts.WCAGLevel = model.WCAGLevel(strings.ToUpper(level))
	default:
		return Options{}, fmt.Errorf("-level must be A, AA or AAA (got %q)", level)
	}

	switch model.ScanDepth(depth) {
	case model.DepthQuick, model.DepthStandard, model.DepthDeep:
		opts.ScanDepth = model.ScanDepth(depth)
	default:
		return Options{}, fmt.Errorf("-depth must be quick, standard or deep (got %q)", depth)
	}

	switch model.ReportFormat(format) {
	case "", model.FormatJSON, model.FormatCSV, model.FormatHTML:
		opts.Format = model.ReportFormat(format)
	case model.FormatPDF:
		return Options{}, fmt.Errorf("-format pdf is not supported; use json, csv or html")
	default:
		return Options{}, fmt.Errorf("-format must be json, csv or html (got %q)", format)
	}

	return opts, nil
}

func parseContentTypes(s string) (model.ScanOptions, error) {
	var opts model.ScanOptions
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "":
		case "pages":
			opts.Pages = true
		case "assignments":
			opts.Assignments = true
		case "announcements":
			opts.Announcements = true
		case "modules":
			opts.Modules = true
		default:
			return model.ScanOptions{}, fmt.Errorf("unknown content type %q (want pages, assignments, announcements or modules)", strings.TrimSpace(part))
		}
	}
	if !opts.Any() {
		return model.ScanOptions{}, fmt.Errorf("-types selects no content")
	}
	return opts, nil
}
