// Package rules holds the WCAG checks and the engine that runs them.
//
// A rule is a named, independently testable unit evaluating one structural
// document. The engine runs rules in registration order so reports are
// reproducible, and contains per-rule faults: a panicking rule becomes a
// single synthetic warning issue instead of aborting the scan.
package rules

import (
	"fmt"
	"sync"

	"github.com/edaccess/coursecheck/internal/logging"
	"github.com/edaccess/coursecheck/internal/model"
)

// Rule is one WCAG check. Implementations must be stateless; Evaluate is
// called concurrently for different documents.
type Rule interface {
	// ID is a stable identifier, e.g. "img-missing-alt".
	ID() string

	// Criterion is the WCAG success criterion number, e.g. "1.1.1".
	Criterion() string

	// Level is the conformance level of the criterion.
	Level() model.WCAGLevel

	// Severity is the bucket issues from this rule are reported under.
	Severity() model.Severity

	// Evaluate returns zero or more issues for the document. The engine
	// fills in content-item scoping afterwards.
	Evaluate(doc *model.StructuralDocument) []model.Issue
}

// Engine runs a registered set of rules against documents.
type Engine struct {
	mu     sync.RWMutex
	rules  []Rule
	logger logging.Logger
}

// NewEngine creates an empty engine. Use Register to add rules, or
// DefaultEngine for the built-in set.
func NewEngine(logger logging.Logger) *Engine {
	return &Engine{logger: logger}
}

// DefaultEngine returns an engine with the built-in rules registered in
// their canonical order.
func DefaultEngine(logger logging.Logger) *Engine {
	e := NewEngine(logger)
	e.Register(MissingAltText{})
	e.Register(EmptyHeadings{})
	e.Register(HeadingOrderSkipped{})
	e.Register(LinkTextNotDescriptive{})
	e.Register(TableMissingHeaders{})
	e.Register(FormControlMissingLabel{})
	e.Register(LowContrastText{})
	return e
}

// Register appends a rule. Registration order is evaluation order.
func (e *Engine) Register(r Rule) {
	if r == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
}

// Rules returns the registered rules in order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// RunResult is the outcome of evaluating all active rules against one
// document.
type RunResult struct {
	// Issues in rule registration order, then rule-internal order.
	Issues []model.Issue

	// Evaluated is the number of rule evaluations that ran.
	Evaluated int

	// Passed is the number of evaluations that produced no issue.
	Passed int
}

// Run evaluates every registered rule whose level is at or below maxLevel.
// A rule that panics contributes one warning issue carrying its id and
// does not stop the remaining rules.
func (e *Engine) Run(doc *model.StructuralDocument, maxLevel model.WCAGLevel) RunResult {
	var res RunResult
	for _, r := range e.Rules() {
		if r.Level().Rank() > maxLevel.Rank() {
			continue
		}
		res.Evaluated++

		issues, fault := e.evaluateOne(r, doc)
		if fault != nil {
			res.Issues = append(res.Issues, *fault)
			continue
		}
		if len(issues) == 0 {
			res.Passed++
			continue
		}
		res.Issues = append(res.Issues, issues...)
	}
	return res
}

// evaluateOne runs a single rule, converting a panic into a synthetic
// warning issue. This containment is what keeps one buggy or overly strict
// rule from taking down a whole scan.
func (e *Engine) evaluateOne(r Rule, doc *model.StructuralDocument) (issues []model.Issue, fault *model.Issue) {
	defer func() {
		if rec := recover(); rec != nil {
			if e.logger != nil {
				e.logger.Warn("rule evaluation fault",
					logging.Field{Key: "rule_id", Value: r.ID()},
					logging.Field{Key: "source", Value: doc.Source},
					logging.Field{Key: "panic", Value: fmt.Sprint(rec)})
			}
			fault = &model.Issue{
				RuleID:        r.ID(),
				Severity:      model.SeverityWarning,
				WCAGCriterion: r.Criterion(),
				WCAGLevel:     r.Level(),
				Message:       fmt.Sprintf("rule %q failed to evaluate: %v", r.ID(), rec),
			}
		}
	}()
	return r.Evaluate(doc), nil
}
