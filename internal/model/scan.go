package model

import "time"

// ScanStatus is the lifecycle state of a scan run.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// Terminal reports whether the status is final. Terminal results are
// immutable; a fresh scan produces a new scan id.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

// ScanOptions selects which content collections a scan covers.
type ScanOptions struct {
	Pages         bool `json:"pages"`
	Assignments   bool `json:"assignments"`
	Announcements bool `json:"announcements"`
	Modules       bool `json:"modules"`
}

// DefaultScanOptions mirrors the tool UI defaults: everything except
// modules.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Pages:         true,
		Assignments:   true,
		Announcements: true,
		Modules:       false,
	}
}

// Enabled reports whether the given content type is selected.
func (o ScanOptions) Enabled(ct ContentType) bool {
	switch ct {
	case ContentPage:
		return o.Pages
	case ContentAssignment:
		return o.Assignments
	case ContentAnnouncement:
		return o.Announcements
	case ContentModule:
		return o.Modules
	}
	return false
}

// Any reports whether at least one content type is selected.
func (o ScanOptions) Any() bool {
	return o.Pages || o.Assignments || o.Announcements || o.Modules
}

// RequestedOptions records everything that shaped a scan so a stored result
// is self-describing.
type RequestedOptions struct {
	Content ScanOptions `json:"content"`

	// WCAGLevel is the maximum conformance level of the rules that ran.
	WCAGLevel WCAGLevel `json:"wcag_level"`

	// ScanDepth is the coverage knob: quick samples the first page of each
	// collection, standard walks full pagination, deep additionally fetches
	// rendered page bodies.
	ScanDepth ScanDepth `json:"scan_depth"`
}

// Counts summarizes one scan. passed counts rule evaluations that produced
// no issue; warnings/errors count issues by severity. The evaluation total
// is passed + warnings + errors.
type Counts struct {
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// ScanResult is the persisted outcome of one scan run. Created with
// status=running; exactly one writer (the owning scan goroutine)
// transitions it to completed/failed, after which it is read-only.
type ScanResult struct {
	// ScanID is unique per run.
	ScanID string `json:"scan_id"`

	// CourseID is the Canvas course the scan covered.
	CourseID string `json:"course_id"`

	// UserID is who requested the scan.
	UserID string `json:"user_id,omitempty"`

	RequestedOptions RequestedOptions `json:"requested_options"`

	Status ScanStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Issues is ordered: content types in ScanContentTypes order, items in
	// fetch order within a type, rules in registration order within an item.
	Issues []Issue `json:"issues"`

	Counts Counts `json:"counts"`

	// ItemsScanned / ItemsFailed track partial-failure coverage.
	ItemsScanned int `json:"items_scanned"`
	ItemsFailed  int `json:"items_failed"`

	// Error carries a scan-level diagnostic when Status is failed.
	Error string `json:"error,omitempty"`
}
