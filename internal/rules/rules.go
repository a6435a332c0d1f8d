package rules

import (
	"fmt"
	"strings"

	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/normalizer"
)

// minContrastNormalText is the WCAG 1.4.3 (AA) threshold for normal-size
// text.
const minContrastNormalText = 4.5

// vagueLinkTexts are link names that say nothing about the destination.
var vagueLinkTexts = map[string]bool{
	"click here": true,
	"here":       true,
	"click":      true,
	"read more":  true,
	"more":       true,
	"link":       true,
	"this":       true,
	"learn more": true,
	"details":    true,
	"go":         true,
}

// MissingAltText flags images without an alt attribute. An explicitly empty
// alt marks a decorative image and passes.
type MissingAltText struct{}

func (MissingAltText) ID() string { return "img-missing-alt" }
func (MissingAltText) Criterion() string { return "1.1.1" }
func (MissingAltText) Level() model.WCAGLevel { return model.LevelA }
func (MissingAltText) Severity() model.Severity { return model.SeverityError }

func (r MissingAltText) Evaluate(doc *model.StructuralDocument) []model.Issue {
	var issues []model.Issue
	for _, img := range doc.Images {
		if img.HasAlt {
			continue
		}
		issues = append(issues, issue(r, fmt.Sprintf("image %q has no alt attribute; screen readers cannot describe it", img.Src), img.Locator))
	}
	return issues
}

// EmptyHeadings flags headings with no rendered text.
type EmptyHeadings struct{}

func (EmptyHeadings) ID() string { return "heading-empty" }
func (EmptyHeadings) Criterion() string { return "1.3.1" }
func (EmptyHeadings) Level() model.WCAGLevel { return model.LevelA }
func (EmptyHeadings) Severity() model.Severity { return model.SeverityError }

func (r EmptyHeadings) Evaluate(doc *model.StructuralDocument) []model.Issue {
	var issues []model.Issue
	for _, h := range doc.Headings {
		if h.Text != "" {
			continue
		}
		issues = append(issues, issue(r, fmt.Sprintf("heading level %d is empty", h.Level), h.Locator))
	}
	return issues
}

// HeadingOrderSkipped flags jumps in the heading hierarchy, e.g. an H1
// followed directly by an H3.
type HeadingOrderSkipped struct{}

func (HeadingOrderSkipped) ID() string { return "heading-order-skipped" }
func (HeadingOrderSkipped) Criterion() string { return "1.3.1" }
func (HeadingOrderSkipped) Level() model.WCAGLevel { return model.LevelA }
func (HeadingOrderSkipped) Severity() model.Severity { return model.SeverityWarning }

func (r HeadingOrderSkipped) Evaluate(doc *model.StructuralDocument) []model.Issue {
	var issues []model.Issue
	prev := 0
	for _, h := range doc.Headings {
		if prev > 0 && h.Level > prev+1 {
			issues = append(issues, issue(r, fmt.Sprintf("heading level jumps from H%d to H%d", prev, h.Level), h.Locator))
		}
		prev = h.Level
	}
	return issues
}

// LinkTextNotDescriptive flags links whose accessible name carries no
// information about the destination ("click here" and friends).
type LinkTextNotDescriptive struct{}

func (LinkTextNotDescriptive) ID() string { return "link-text-vague" }
func (LinkTextNotDescriptive) Criterion() string { return "2.4.4" }
func (LinkTextNotDescriptive) Level() model.WCAGLevel { return model.LevelA }
func (LinkTextNotDescriptive) Severity() model.Severity { return model.SeverityWarning }

func (r LinkTextNotDescriptive) Evaluate(doc *model.StructuralDocument) []model.Issue {
	var issues []model.Issue
	for _, l := range doc.Links {
		if l.AriaLabel != "" {
			continue
		}
		name := strings.ToLower(strings.TrimRight(l.Text, ".!…"))
		if name == "" || vagueLinkTexts[name] {
			msg := fmt.Sprintf("link text %q does not describe the destination %q", l.Text, l.Href)
			if l.Text == "" {
				msg = fmt.Sprintf("link to %q has no text", l.Href)
			}
			issues = append(issues, issue(r, msg, l.Locator))
		}
	}
	return issues
}

// TableMissingHeaders flags data tables with no header cells.
type TableMissingHeaders struct{}

func (TableMissingHeaders) ID() string { return "table-missing-headers" }
func (TableMissingHeaders) Criterion() string { return "1.3.1" }
func (TableMissingHeaders) Level() model.WCAGLevel { return model.LevelA }
func (TableMissingHeaders) Severity() model.Severity { return model.SeverityError }

func (r TableMissingHeaders) Evaluate(doc *model.StructuralDocument) []model.Issue {
	var issues []model.Issue
	for _, t := range doc.Tables {
		if t.HasHeaderCells {
			continue
		}
		issues = append(issues, issue(r, "table has no header cells (<th>); screen readers cannot associate data with headings", t.Locator))
	}
	return issues
}

// FormControlMissingLabel flags visible form controls without an
// accessible name.
type FormControlMissingLabel struct{}

func (FormControlMissingLabel) ID() string { return "form-control-missing-label" }
func (FormControlMissingLabel) Criterion() string { return "3.3.2" }
func (FormControlMissingLabel) Level() model.WCAGLevel { return model.LevelA }
func (FormControlMissingLabel) Severity() model.Severity { return model.SeverityError }

func (r FormControlMissingLabel) Evaluate(doc *model.StructuralDocument) []model.Issue {
	var issues []model.Issue
	for _, c := range doc.FormControls {
		if c.Hidden || c.Kind == "submit" || c.Kind == "button" || c.HasLabel {
			continue
		}
		issues = append(issues, issue(r, fmt.Sprintf("form control (%s) has no associated label", c.Kind), c.Locator))
	}
	return issues
}

// LowContrastText flags text runs whose resolved color pair falls below the
// AA contrast threshold for normal text. Runs with an unresolved pair are
// skipped, never failed.
type LowContrastText struct{}

func (LowContrastText) ID() string { return "text-low-contrast" }
func (LowContrastText) Criterion() string { return "1.4.3" }
func (LowContrastText) Level() model.WCAGLevel { return model.LevelAA }
func (LowContrastText) Severity() model.Severity { return model.SeverityError }

func (r LowContrastText) Evaluate(doc *model.StructuralDocument) []model.Issue {
	var issues []model.Issue
	for _, run := range doc.TextRuns {
		if run.Colors == nil {
			continue
		}
		ratio := normalizer.ContrastRatio(run.Colors.Foreground, run.Colors.Background)
		if ratio >= minContrastNormalText {
			continue
		}
		issues = append(issues, issue(r, fmt.Sprintf("text contrast ratio %.2f:1 is below the %.1f:1 minimum", ratio, minContrastNormalText), run.Locator))
	}
	return issues
}

// issue builds an Issue carrying the rule's static metadata. Content-item
// scoping is filled in by the orchestrator.
func issue(r Rule, message, location string) model.Issue {
	return model.Issue{
		RuleID:        r.ID(),
		Severity:      r.Severity(),
		WCAGCriterion: r.Criterion(),
		WCAGLevel:     r.Level(),
		Message:       message,
		LocationHint:  location,
	}
}
