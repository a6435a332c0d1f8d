// Package store persists scan results and per-user settings.
package store

import (
	"context"
	"errors"

	"github.com/edaccess/coursecheck/internal/model"
)

var (
	// ErrScanNotFound is returned when no scan exists for the given id.
	ErrScanNotFound = errors.New("scan not found")

	// ErrScanFinalized is returned on an attempt to modify a scan whose
	// status is terminal. A fresh scan gets a new scan id instead.
	ErrScanFinalized = errors.New("scan already finalized")
)

// ScanStore holds scan results keyed by scan id and course id. Writes are
// create-only for new ids and single-writer per scan id; terminal rows are
// immutable.
type ScanStore interface {
	// Put creates or updates a scan result. Updating a terminal row
	// returns ErrScanFinalized.
	Put(ctx context.Context, result *model.ScanResult) error

	// Get returns the scan result or ErrScanNotFound.
	Get(ctx context.Context, scanID string) (*model.ScanResult, error)

	// ListByCourse returns scans for a course, most recent first.
	ListByCourse(ctx context.Context, courseID string) ([]*model.ScanResult, error)
}

// SettingsStore holds per-user tool settings.
type SettingsStore interface {
	// GetSettings returns the user's settings, or defaults when none are
	// stored.
	GetSettings(ctx context.Context, userID string) (model.Settings, error)

	// PutSettings stores the user's settings.
	PutSettings(ctx context.Context, userID string, s model.Settings) error
}
