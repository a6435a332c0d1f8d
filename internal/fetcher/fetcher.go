// Package fetcher retrieves course content for scanning.
package fetcher

import (
	"context"
	"time"

	"github.com/edaccess/coursecheck/internal/model"
)

// ContentFetcher is the contract the scan orchestrator consumes: one
// collection of course content at a time, cursor-paged, with no assumption
// about a maximum item count.
type ContentFetcher interface {
	// Fetch returns one page of content items of the given type. cursor ""
	// requests the first page; a non-empty nextCursor means more pages
	// remain. Returned items carry their raw HTML bodies.
	Fetch(ctx context.Context, courseID string, ct model.ContentType, cursor string) (items []model.ContentItem, nextCursor string, err error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// Config tunes the Canvas-backed fetcher.
type Config struct {
	// BaseURL is the Canvas instance root, e.g. "https://canvas.example.edu".
	BaseURL string

	// Token is the Canvas API bearer token.
	Token string

	// PerPage is the requested collection page size.
	PerPage int

	// ItemTimeout bounds each individual request. Mandatory: exceeding it
	// is a per-item fetch failure, never fatal for the scan.
	ItemTimeout time.Duration

	// MaxRetries bounds backoff retries for transient failures.
	MaxRetries int
}

// DefaultConfig returns sensible fetcher defaults; BaseURL and Token must
// still be provided.
func DefaultConfig() Config {
	return Config{
		PerPage:     50,
		ItemTimeout: 15 * time.Second,
		MaxRetries:  3,
	}
}
