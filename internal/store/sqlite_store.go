package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edaccess/coursecheck/internal/logging"
	"github.com/edaccess/coursecheck/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore implements ScanStore and SettingsStore on a single SQLite
// database. Scan rows keep status/timestamps as columns for querying and
// the full result as JSON.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

var (
	_ ScanStore     = (*SQLiteStore)(nil)
	_ SettingsStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore runs migrations from schema.sql and returns the store.
// db should typically be the SQLite DB at <storage root>/coursecheck.db.
func NewSQLiteStore(db *sql.DB, logger logging.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Put creates or updates a scan row. Terminal rows are immutable.
func (s *SQLiteStore) Put(ctx context.Context, result *model.ScanResult) error {
	if result == nil || result.ScanID == "" {
		return fmt.Errorf("scan result must have a scan id")
	}

	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM scans WHERE scan_id = ?`, result.ScanID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		// new row
	case err != nil:
		return fmt.Errorf("check existing scan: %w", err)
	case model.ScanStatus(existing).Terminal():
		return fmt.Errorf("%w: %s", ErrScanFinalized, result.ScanID)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode scan result: %w", err)
	}

	var completedAt any
	if result.CompletedAt != nil {
		completedAt = result.CompletedAt.UTC().Unix()
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO scans
		(scan_id, course_id, user_id, status, started_at, completed_at, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.ScanID, result.CourseID, result.UserID, string(result.Status),
		result.StartedAt.UTC().Unix(), completedAt, string(payload))
	if err != nil {
		return fmt.Errorf("store scan %s: %w", result.ScanID, err)
	}
	return nil
}

// Get returns a scan result by id.
func (s *SQLiteStore) Get(ctx context.Context, scanID string) (*model.ScanResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM scans WHERE scan_id = ?`, scanID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("load scan %s: %w", scanID, err)
	}
	return decodeScan(payload)
}

// ListByCourse returns a course's scans, most recent first.
func (s *SQLiteStore) ListByCourse(ctx context.Context, courseID string) ([]*model.ScanResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result_json FROM scans WHERE course_id = ? ORDER BY started_at DESC, scan_id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list scans for course %s: %w", courseID, err)
	}
	defer rows.Close()

	var out []*model.ScanResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		result, err := decodeScan(payload)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping undecodable scan row",
					logging.Field{Key: "course_id", Value: courseID},
					logging.Field{Key: "error", Value: err.Error()})
			}
			continue
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

func decodeScan(payload string) (*model.ScanResult, error) {
	var result model.ScanResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode scan result: %w", err)
	}
	return &result, nil
}

// Get returns a user's settings, falling back to defaults when none are
// stored yet.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (model.Settings, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT settings_json FROM settings WHERE user_id = ?`, userID).Scan(&payload)
	if err == sql.ErrNoRows {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("load settings for %s: %w", userID, err)
	}
	var out model.Settings
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return model.Settings{}, fmt.Errorf("decode settings for %s: %w", userID, err)
	}
	return out, nil
}

// PutSettings stores a user's settings.
func (s *SQLiteStore) PutSettings(ctx context.Context, userID string, settings model.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO settings (user_id, settings_json, updated_at)
		VALUES (?, ?, ?)`, userID, string(payload), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store settings for %s: %w", userID, err)
	}
	return nil
}
