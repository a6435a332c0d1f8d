package model

// Severity buckets an issue for counting and display.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// WCAGLevel is a WCAG conformance level, ordered A < AA < AAA.
type WCAGLevel string

const (
	LevelA   WCAGLevel = "A"
	LevelAA  WCAGLevel = "AA"
	LevelAAA WCAGLevel = "AAA"
)

// Rank returns the ordering value of a level so rules can be filtered by a
// configured maximum. Unknown levels rank highest so they are never
// accidentally included.
func (l WCAGLevel) Rank() int {
	switch l {
	case LevelA:
		return 1
	case LevelAA:
		return 2
	case LevelAAA:
		return 3
	}
	return 4
}

// Rule ids used for failures synthesized by the orchestrator rather than
// produced by an accessibility rule.
const (
	RuleFetchFailure = "fetch-failure"
	RuleParseFailure = "parse-failure"
)

// Issue is one accessibility finding. Created only by rules (or synthesized
// for item-level failures); never mutated after creation.
type Issue struct {
	// RuleID identifies the rule that produced the issue.
	RuleID string `json:"rule_id"`

	Severity Severity `json:"severity"`

	// WCAGCriterion is the numbered success criterion, e.g. "1.1.1".
	WCAGCriterion string `json:"wcag_criteria"`

	// WCAGLevel is the conformance level of the criterion.
	WCAGLevel WCAGLevel `json:"wcag_level"`

	// Message is a human-readable explanation of the finding.
	Message string `json:"message"`

	// ContentItemID and ContentItemTitle scope the issue to the course
	// content it was found in.
	ContentItemID    string      `json:"content_item_id"`
	ContentItemTitle string      `json:"content_item_title,omitempty"`
	ContentType      ContentType `json:"content_type,omitempty"`

	// LocationHint points at the offending element (selector-ish).
	LocationHint string `json:"location,omitempty"`
}
