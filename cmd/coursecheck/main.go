// Command coursecheck runs a one-shot accessibility scan of a Canvas course
// and prints the findings.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"

	"github.com/edaccess/coursecheck/internal/app"
	"github.com/edaccess/coursecheck/internal/cli"
	"github.com/edaccess/coursecheck/internal/fetcher"
	"github.com/edaccess/coursecheck/internal/logging"
	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/report"
	"github.com/edaccess/coursecheck/internal/store"
	"github.com/edaccess/coursecheck/internal/webclient"
)

const cliUser = "cli"

func main() {
	opts, err := cli.ParseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[-] Error: %v\n", err)
		os.Exit(1)
	}

	printBanner(opts.Quiet)

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "[-] Error: %v\n", err)
		os.Exit(1)
	}
}

func printBanner(quiet bool) {
	if quiet {
		return
	}
	banner := figure.NewColorFigure("coursecheck", "doom", "cyan", true)
	banner.Print()
	_, _ = color.New(color.FgCyan).Println("    Canvas course accessibility scanner")
	fmt.Println()
}

func run(opts cli.Options) error {
	logger := quietLogger(opts.Quiet)

	cfg := app.DefaultConfig()
	cfg.Canvas = fetcher.Config{
		BaseURL:     opts.CanvasURL,
		Token:       opts.Token,
		PerPage:     fetcher.DefaultConfig().PerPage,
		ItemTimeout: opts.Timeout,
		MaxRetries:  fetcher.DefaultConfig().MaxRetries,
	}
	cfg.WebClient = webclient.Config{
		Backend: webclient.BackendNetHTTP,
		Timeout: opts.Timeout,
	}
	cfg.ScanConcurrency = opts.Concurrency

	mem := store.NewMemoryStore()

	settings := model.DefaultSettings()
	settings.WCAGLevel = opts.WCAGLevel
	settings.ScanDepth = opts.ScanDepth
	if err := mem.PutSettings(context.Background(), cliUser, settings); err != nil {
		return fmt.Errorf("storing scan settings: %w", err)
	}

	orch := app.NewOrchestrator(cfg, mem, mem, nil, logger)
	defer orch.Close()

	scanID, err := orch.StartScan(context.Background(), opts.CourseID, cliUser, opts.Content)
	if err != nil {
		return fmt.Errorf("starting scan: %w", err)
	}

	events, ok := orch.Events(scanID)
	if ok {
		for ev := range events {
			if ev.Type == app.ScanEventProgress && !opts.Quiet {
				fmt.Printf("  ... %d items scanned, %d failed\n", ev.Processed, ev.Failed)
			}
		}
	}

	result, err := orch.GetScan(context.Background(), scanID)
	if err != nil {
		return fmt.Errorf("reading scan result: %w", err)
	}

	printResult(result, opts.Quiet)

	if opts.Format != "" {
		name, err := report.Export(result, opts.Format, opts.OutDir)
		if err != nil {
			return fmt.Errorf("exporting report: %w", err)
		}
		fmt.Printf("Report written to %s\n", name)
	}

	if result.Status == model.ScanFailed {
		return fmt.Errorf("scan failed: %s", result.Error)
	}
	return nil
}

func printResult(result *model.ScanResult, quiet bool) {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	if !quiet {
		for _, iss := range result.Issues {
			c := yellow
			if iss.Severity == model.SeverityError {
				c = red
			}
			_, _ = c.Printf("[%s] %s", iss.Severity, iss.RuleID)
			if iss.WCAGCriterion != "" {
				fmt.Printf(" (WCAG %s, level %s)", iss.WCAGCriterion, iss.WCAGLevel)
			}
			fmt.Printf(": %s\n", iss.Message)
			fmt.Printf("    in %s %q", iss.ContentType, iss.ContentItemTitle)
			if iss.LocationHint != "" {
				fmt.Printf(" at %s", iss.LocationHint)
			}
			fmt.Println()
		}
		if len(result.Issues) > 0 {
			fmt.Println()
		}
	}

	fmt.Printf("Scan %s for course %s: %s\n", result.ScanID, result.CourseID, result.Status)
	fmt.Printf("%d items scanned, %d failed\n", result.ItemsScanned, result.ItemsFailed)
	_, _ = green.Printf("  passed:   %d\n", result.Counts.Passed)
	_, _ = yellow.Printf("  warnings: %d\n", result.Counts.Warnings)
	_, _ = red.Printf("  errors:   %d\n", result.Counts.Errors)
}

// quietLogger silences structured logs in quiet mode; findings still print.
func quietLogger(quiet bool) logging.Logger {
	if quiet {
		return nopLogger{}
	}
	return logging.NewStdoutLogger("coursecheck")
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...logging.Field) {}
func (nopLogger) Info(string, ...logging.Field) {}
func (nopLogger) Warn(string, ...logging.Field) {}
func (nopLogger) Error(string, ...logging.Field) {}

func (nopLogger) With(...logging.Field) logging.Logger { return nopLogger{} }
