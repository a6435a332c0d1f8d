package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edaccess/coursecheck/internal/fetcher"
	"github.com/edaccess/coursecheck/internal/logging"
	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/normalizer"
)

// itemOutcome is the result of processing one content item. Outcomes are
// collected into an index-addressed slice so issue order stays stable no
// matter how the pool schedules the work.
type itemOutcome struct {
	issues []model.Issue
	passed int
	failed bool
}

// runScan is the single writer for its ScanResult: fetch, normalize,
// evaluate, aggregate, finalize. Item-level faults become issues; only a
// scan where nothing at all could be processed ends up failed.
func (o *Orchestrator) runScan(ctx context.Context, result *model.ScanResult) {
	cf, err := o.newFetcher(result.RequestedOptions.ScanDepth)
	if err != nil {
		o.finalize(result, model.ScanFailed, fmt.Sprintf("building content fetcher: %v", err))
		return
	}
	defer func() {
		if cerr := cf.Close(); cerr != nil {
			o.logger.Warn("closing content fetcher",
				logging.Field{Key: "scan_id", Value: result.ScanID},
				logging.Field{Key: "error", Value: cerr.Error()})
		}
	}()

	for _, ct := range model.ScanContentTypes {
		if !result.RequestedOptions.Content.Enabled(ct) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		o.scanCollection(ctx, cf, ct, result)
	}

	status := model.ScanCompleted
	reason := ""
	if result.ItemsScanned == 0 && result.ItemsFailed > 0 {
		// Every content item failed; nothing was actually checked.
		status = model.ScanFailed
		reason = "all content items failed to fetch or parse"
	}
	o.finalize(result, status, reason)
}

// scanCollection walks one content type's pagination, processing each
// fetched batch before requesting the next page.
func (o *Orchestrator) scanCollection(ctx context.Context, cf fetcher.ContentFetcher, ct model.ContentType, result *model.ScanResult) {
	cursor := ""
	for {
		items, next, err := cf.Fetch(ctx, result.CourseID, ct, cursor)
		if err != nil {
			// The whole collection is unreachable; record one failure
			// issue scoped to it and move on to the next content type.
			o.logger.Warn("collection fetch failed",
				logging.Field{Key: "scan_id", Value: result.ScanID},
				logging.Field{Key: "content_type", Value: string(ct)},
				logging.Field{Key: "error", Value: err.Error()})
			result.Issues = append(result.Issues, fetchFailureIssue(ct, string(ct)+"s", "", err))
			result.Counts.Errors++
			result.ItemsFailed++
			return
		}

		outcomes := o.processItems(ctx, items, result.RequestedOptions.WCAGLevel)
		for _, out := range outcomes {
			result.Issues = append(result.Issues, out.issues...)
			result.Counts.Passed += out.passed
			for _, iss := range out.issues {
				switch iss.Severity {
				case model.SeverityError:
					result.Counts.Errors++
				case model.SeverityWarning:
					result.Counts.Warnings++
				}
			}
			if out.failed {
				result.ItemsFailed++
			} else {
				result.ItemsScanned++
			}
		}

		o.emitEvent(result.ScanID, ScanEvent{
			ScanID:    result.ScanID,
			Type:      ScanEventProgress,
			Processed: result.ItemsScanned,
			Failed:    result.ItemsFailed,
		})

		if next == "" || result.RequestedOptions.ScanDepth == model.DepthQuick {
			// Quick depth samples the first page of each collection.
			return
		}
		cursor = next
	}
}

// processItems runs normalize+evaluate for a batch on a bounded pool,
// collecting outcomes by index so report order is deterministic.
func (o *Orchestrator) processItems(ctx context.Context, items []model.ContentItem, level model.WCAGLevel) []itemOutcome {
	outcomes := make([]itemOutcome, len(items))

	concurrency := o.cfg.ScanConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = o.processItem(items[i], level)
		}(i)
	}
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) processItem(item model.ContentItem, level model.WCAGLevel) itemOutcome {
	if item.FetchErr != "" {
		return itemOutcome{
			issues: []model.Issue{fetchFailureIssue(item.Type, item.ID, item.Title, fmt.Errorf("%s", item.FetchErr))},
			failed: true,
		}
	}

	doc, err := normalizer.Normalize(item.RawHTML, item.SourceURL)
	if err != nil {
		return itemOutcome{
			issues: []model.Issue{{
				RuleID:           model.RuleParseFailure,
				Severity:         model.SeverityError,
				Message:          fmt.Sprintf("content could not be parsed: %v", err),
				ContentItemID:    item.ID,
				ContentItemTitle: item.Title,
				ContentType:      item.Type,
			}},
			failed: true,
		}
	}

	run := o.engine.Run(doc, level)
	issues := make([]model.Issue, 0, len(run.Issues))
	for _, iss := range run.Issues {
		iss.ContentItemID = item.ID
		iss.ContentItemTitle = item.Title
		iss.ContentType = item.Type
		issues = append(issues, iss)
	}
	return itemOutcome{issues: issues, passed: run.Passed}
}

func fetchFailureIssue(ct model.ContentType, itemID, title string, err error) model.Issue {
	msg := fmt.Sprintf("content could not be fetched: %v", err)
	if err == context.DeadlineExceeded {
		msg = "content fetch timed out"
	}
	return model.Issue{
		RuleID:           model.RuleFetchFailure,
		Severity:         model.SeverityError,
		Message:          msg,
		ContentItemID:    itemID,
		ContentItemTitle: title,
		ContentType:      ct,
	}
}

// finalize transitions the result to its terminal status and persists it.
func (o *Orchestrator) finalize(result *model.ScanResult, status model.ScanStatus, reason string) {
	now := time.Now().UTC()
	result.Status = status
	result.CompletedAt = &now
	result.Error = reason

	// The scan context may already be canceled; persistence should still
	// happen so the terminal state is visible.
	putCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.scans.Put(putCtx, result); err != nil {
		o.logger.Error("persisting scan result",
			logging.Field{Key: "scan_id", Value: result.ScanID},
			logging.Field{Key: "error", Value: err.Error()})
	}

	o.emitEvent(result.ScanID, ScanEvent{
		ScanID: result.ScanID,
		Type:   ScanEventResult,
		Status: status,
		Error:  reason,
	})
	o.logger.Info("scan finished",
		logging.Field{Key: "scan_id", Value: result.ScanID},
		logging.Field{Key: "status", Value: string(status)},
		logging.Field{Key: "errors", Value: result.Counts.Errors},
		logging.Field{Key: "warnings", Value: result.Counts.Warnings},
		logging.Field{Key: "passed", Value: result.Counts.Passed})
}
