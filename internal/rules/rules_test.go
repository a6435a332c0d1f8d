package rules_test

import (
	"reflect"
	"testing"

	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/normalizer"
	"github.com/edaccess/coursecheck/internal/rules"
	"github.com/edaccess/coursecheck/internal/testutil"
)

func docFromHTML(t *testing.T, html string) *model.StructuralDocument {
	t.Helper()
	doc, err := normalizer.Normalize(html, "")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return doc
}

func issuesByRule(res rules.RunResult, ruleID string) []model.Issue {
	var out []model.Issue
	for _, iss := range res.Issues {
		if iss.RuleID == ruleID {
			out = append(out, iss)
		}
	}
	return out
}

// ─── Individual rules ──────────────────────────────────────────────────

func TestMissingAltText(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `
		<img src="no-alt.png">
		<img src="decorative.png" alt="">
		<img src="described.png" alt="a chart">
	`)

	issues := rules.MissingAltText{}.Evaluate(doc)
	if len(issues) != 1 {
		t.Fatalf("expected exactly 1 issue, got %d: %+v", len(issues), issues)
	}
	iss := issues[0]
	if iss.RuleID != "img-missing-alt" {
		t.Errorf("rule id: got %q", iss.RuleID)
	}
	if iss.WCAGCriterion != "1.1.1" || iss.WCAGLevel != model.LevelA {
		t.Errorf("wcag metadata: got %q level %q", iss.WCAGCriterion, iss.WCAGLevel)
	}
	if iss.Severity != model.SeverityError {
		t.Errorf("severity: got %q", iss.Severity)
	}
}

func TestEmptyHeadings(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `<h1>Title</h1><h2></h2><h3>  </h3>`)

	issues := rules.EmptyHeadings{}.Evaluate(doc)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %+v", len(issues), issues)
	}
}

func TestHeadingOrderSkipped(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `<h1>A</h1><h3>B</h3><h4>C</h4><h2>D</h2>`)

	issues := rules.HeadingOrderSkipped{}.Evaluate(doc)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue (h1->h3), got %d: %+v", len(issues), issues)
	}
	if issues[0].Severity != model.SeverityWarning {
		t.Errorf("severity: got %q", issues[0].Severity)
	}
}

func TestHeadingOrderSkipped_FirstHeadingNeverFlagged(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `<h3>Starts deep</h3><h4>Fine</h4>`)

	if issues := (rules.HeadingOrderSkipped{}).Evaluate(doc); len(issues) != 0 {
		t.Fatalf("a document starting below h1 should pass, got %+v", issues)
	}
}

func TestLinkTextNotDescriptive(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `
		<a href="/a">click here</a>
		<a href="/b">Read More...</a>
		<a href="/c">Course syllabus</a>
		<a href="/d" aria-label="Assignment rubric">here</a>
		<a href="/e"></a>
	`)

	issues := rules.LinkTextNotDescriptive{}.Evaluate(doc)
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d: %+v", len(issues), issues)
	}
}

func TestTableMissingHeaders(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `
		<table><tr><th>H</th></tr><tr><td>1</td></tr></table>
		<table><tr><td>1</td><td>2</td></tr></table>
	`)

	issues := rules.TableMissingHeaders{}.Evaluate(doc)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %+v", len(issues), issues)
	}
}

func TestFormControlMissingLabel(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `
		<input type="text" name="unlabeled">
		<label for="ok">OK</label><input id="ok" type="text">
		<input type="hidden" name="csrf">
		<input type="submit" value="Send">
	`)

	issues := rules.FormControlMissingLabel{}.Evaluate(doc)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue (only the unlabeled text input), got %d: %+v", len(issues), issues)
	}
}

func TestLowContrastText(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `
		<p style="color:#999999;background-color:#ffffff">too light</p>
		<p style="color:#000000;background-color:#ffffff">fine</p>
		<p>unknown colors are skipped</p>
	`)

	issues := rules.LowContrastText{}.Evaluate(doc)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %+v", len(issues), issues)
	}
	if issues[0].WCAGLevel != model.LevelAA {
		t.Errorf("expected level AA, got %q", issues[0].WCAGLevel)
	}
}

// ─── Engine ────────────────────────────────────────────────────────────

func TestEngine_LevelFilter(t *testing.T) {
	t.Parallel()
	// Low-contrast content that only the AA rule would flag.
	doc := docFromHTML(t, `<p style="color:#999999;background-color:#ffffff">light gray</p>`)
	engine := rules.DefaultEngine(&testutil.DummyLogger{})

	atA := engine.Run(doc, model.LevelA)
	if len(issuesByRule(atA, "text-low-contrast")) != 0 {
		t.Errorf("AA rule ran at level A: %+v", atA.Issues)
	}
	if atA.Evaluated != 6 {
		t.Errorf("expected 6 level-A evaluations, got %d", atA.Evaluated)
	}

	atAA := engine.Run(doc, model.LevelAA)
	if len(issuesByRule(atAA, "text-low-contrast")) != 1 {
		t.Errorf("AA rule missing at level AA: %+v", atAA.Issues)
	}
	if atAA.Evaluated != 7 {
		t.Errorf("expected 7 evaluations at AA, got %d", atAA.Evaluated)
	}
}

func TestEngine_PassedCountsCleanEvaluations(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `<h1>Clean</h1><p>nothing wrong here</p>`)
	engine := rules.DefaultEngine(&testutil.DummyLogger{})

	res := engine.Run(doc, model.LevelAA)
	if len(res.Issues) != 0 {
		t.Fatalf("expected clean document, got %+v", res.Issues)
	}
	if res.Passed != res.Evaluated {
		t.Errorf("passed %d != evaluated %d for clean document", res.Passed, res.Evaluated)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `
		<h1>A</h1><h4>B</h4>
		<img src="x.png">
		<a href="/x">here</a>
	`)
	engine := rules.DefaultEngine(&testutil.DummyLogger{})

	first := engine.Run(doc, model.LevelAA)
	second := engine.Run(doc, model.LevelAA)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated runs differ:\n%+v\n%+v", first, second)
	}
}

// panickingRule blows up on any document with at least one image.
type panickingRule struct{}

func (panickingRule) ID() string { return "panicking-rule" }
func (panickingRule) Criterion() string { return "9.9.9" }
func (panickingRule) Level() model.WCAGLevel { return model.LevelA }
func (panickingRule) Severity() model.Severity { return model.SeverityError }

func (panickingRule) Evaluate(doc *model.StructuralDocument) []model.Issue {
	if len(doc.Images) > 0 {
		panic("boom")
	}
	return nil
}

func TestEngine_PanicContained(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `<img src="x.png" alt="ok"><h1>Title</h1><h3>Skipped</h3>`)

	logger := &testutil.DummyLogger{}
	engine := rules.NewEngine(logger)
	engine.Register(panickingRule{})
	engine.Register(rules.HeadingOrderSkipped{})

	res := engine.Run(doc, model.LevelAA)

	faults := issuesByRule(res, "panicking-rule")
	if len(faults) != 1 {
		t.Fatalf("expected 1 fault issue, got %d: %+v", len(faults), res.Issues)
	}
	if faults[0].Severity != model.SeverityWarning {
		t.Errorf("fault severity: got %q, want warning", faults[0].Severity)
	}
	if faults[0].WCAGCriterion != "9.9.9" {
		t.Errorf("fault should carry the rule's criterion, got %q", faults[0].WCAGCriterion)
	}

	// The remaining rules still ran.
	if len(issuesByRule(res, "heading-order-skipped")) != 1 {
		t.Errorf("later rule did not run after panic: %+v", res.Issues)
	}
	if len(logger.Warns) == 0 {
		t.Error("expected the fault to be logged")
	}
}

func TestEngine_RegistrationOrderIsEvaluationOrder(t *testing.T) {
	t.Parallel()
	doc := docFromHTML(t, `<img src="x.png"><a href="/x">here</a>`)
	engine := rules.DefaultEngine(&testutil.DummyLogger{})

	res := engine.Run(doc, model.LevelAA)
	if len(res.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %+v", res.Issues)
	}
	if res.Issues[0].RuleID != "img-missing-alt" || res.Issues[1].RuleID != "link-text-vague" {
		t.Errorf("issue order does not follow registration order: %+v", res.Issues)
	}
}
