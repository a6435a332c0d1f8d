package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edaccess/coursecheck/internal/fetcher"
	"github.com/edaccess/coursecheck/internal/logging"
	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/rules"
	"github.com/edaccess/coursecheck/internal/store"
	"github.com/edaccess/coursecheck/internal/webclient"
)

// ErrNoContentTypes is returned when a scan request selects no content at
// all.
var ErrNoContentTypes = errors.New("scan options select no content types")

type ScanEventType string

const (
	ScanEventStatus   ScanEventType = "status"
	ScanEventProgress ScanEventType = "progress"
	ScanEventResult   ScanEventType = "result"
)

// ScanEvent is one progress notification for a running scan, consumed by
// the websocket surface and the CLI.
type ScanEvent struct {
	ScanID string        `json:"scan_id"`
	Type   ScanEventType `json:"type"`

	// For status changes
	Status model.ScanStatus `json:"status,omitempty"`
	Error  string           `json:"error,omitempty"`

	// For progress (optional fields)
	Processed int `json:"processed,omitempty"`
	Failed    int `json:"failed,omitempty"`
}

// FetcherFactory builds the content fetcher for one scan. The scan depth
// decides whether a rendering backend is attached.
type FetcherFactory func(depth model.ScanDepth) (fetcher.ContentFetcher, error)

// Orchestrator drives scan runs: it creates the running ScanResult, owns
// the pipeline goroutine (single writer per scan), and exposes lookups.
type Orchestrator struct {
	cfg      *Config
	scans    store.ScanStore
	settings store.SettingsStore
	engine   *rules.Engine
	logger   logging.Logger

	newFetcher FetcherFactory

	jobsMu  sync.Mutex
	events  map[string]chan ScanEvent
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator ties together config, stores, rule engine and logger.
// The default fetcher factory talks to the configured Canvas instance;
// tests swap it via SetFetcherFactory.
func NewOrchestrator(cfg *Config, scans store.ScanStore, settings store.SettingsStore, engine *rules.Engine, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if engine == nil {
		engine = rules.DefaultEngine(logger)
	}
	o := &Orchestrator{
		cfg:      cfg,
		scans:    scans,
		settings: settings,
		engine:   engine,
		logger:   logger,
		events:   make(map[string]chan ScanEvent),
		cancels:  make(map[string]context.CancelFunc),
	}
	o.newFetcher = o.canvasFetcherFactory
	return o
}

// SetFetcherFactory overrides how content fetchers are built (tests,
// alternative LMS backends).
func (o *Orchestrator) SetFetcherFactory(f FetcherFactory) {
	if f != nil {
		o.newFetcher = f
	}
}

func (o *Orchestrator) canvasFetcherFactory(depth model.ScanDepth) (fetcher.ContentFetcher, error) {
	wc, err := webclient.New(o.cfg.WebClient, o.logger)
	if err != nil {
		return nil, fmt.Errorf("new webclient: %w", err)
	}

	var renderWC webclient.WebClient
	if depth == model.DepthDeep {
		renderWC, err = webclient.New(webclient.Config{
			Backend: webclient.BackendChromedp,
			Timeout: o.cfg.WebClient.Timeout,
		}, o.logger)
		if err != nil {
			// A missing browser should degrade to a standard fetch, not
			// block the scan.
			o.logger.Warn("rendered backend unavailable, scanning API bodies only",
				logging.Field{Key: "error", Value: err.Error()})
			renderWC = nil
		}
	}

	cf, err := fetcher.NewCanvasFetcher(o.cfg.Canvas, wc, renderWC, o.logger)
	if err != nil {
		_ = wc.Close()
		return nil, err
	}
	return cf, nil
}

// StartScan validates the request, stores a running ScanResult and kicks
// off the pipeline. It returns the scan id immediately; progress flows
// through Events and the final state through GetScan.
func (o *Orchestrator) StartScan(ctx context.Context, courseID, userID string, opts model.ScanOptions) (string, error) {
	if courseID == "" {
		return "", fmt.Errorf("course id is required")
	}
	if !opts.Any() {
		return "", ErrNoContentTypes
	}

	settings, err := o.settings.GetSettings(ctx, userID)
	if err != nil {
		o.logger.Warn("loading user settings failed, using defaults",
			logging.Field{Key: "user_id", Value: userID},
			logging.Field{Key: "error", Value: err.Error()})
		settings = model.DefaultSettings()
	}

	scanID := uuid.New().String()
	result := &model.ScanResult{
		ScanID:   scanID,
		CourseID: courseID,
		UserID:   userID,
		RequestedOptions: model.RequestedOptions{
			Content:   opts,
			WCAGLevel: settings.WCAGLevel,
			ScanDepth: settings.ScanDepth,
		},
		Status:    model.ScanRunning,
		StartedAt: time.Now().UTC(),
		Issues:    []model.Issue{},
	}
	if err := o.scans.Put(ctx, result); err != nil {
		return "", fmt.Errorf("create scan record: %w", err)
	}

	// The scan outlives the initiating request, so it gets its own
	// context; the cancel func is kept for shutdown.
	jobCtx, cancel := context.WithCancel(context.Background())

	o.jobsMu.Lock()
	o.events[scanID] = make(chan ScanEvent, 16)
	o.cancels[scanID] = cancel
	o.jobsMu.Unlock()

	o.emitEvent(scanID, ScanEvent{ScanID: scanID, Type: ScanEventStatus, Status: model.ScanRunning})
	o.logger.Info("scan started",
		logging.Field{Key: "scan_id", Value: scanID},
		logging.Field{Key: "course_id", Value: courseID})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.jobsMu.Lock()
			ch := o.events[scanID]
			delete(o.events, scanID)
			delete(o.cancels, scanID)
			o.jobsMu.Unlock()
			if ch != nil {
				close(ch)
			}
		}()
		o.runScan(jobCtx, result)
	}()

	return scanID, nil
}

// GetScan returns a scan result, running or terminal.
func (o *Orchestrator) GetScan(ctx context.Context, scanID string) (*model.ScanResult, error) {
	return o.scans.Get(ctx, scanID)
}

// ListScans returns a course's scans, most recent first.
func (o *Orchestrator) ListScans(ctx context.Context, courseID string) ([]*model.ScanResult, error) {
	return o.scans.ListByCourse(ctx, courseID)
}

// Events returns the progress channel for an in-flight scan. The channel
// closes when the scan reaches a terminal state; ok is false when the scan
// is unknown or already finished.
func (o *Orchestrator) Events(scanID string) (<-chan ScanEvent, bool) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	ch, ok := o.events[scanID]
	return ch, ok
}

func (o *Orchestrator) emitEvent(scanID string, ev ScanEvent) {
	o.jobsMu.Lock()
	ch := o.events[scanID]
	o.jobsMu.Unlock()
	if ch == nil {
		return
	}

	// Non-blocking send; drop if buffer is full.
	select {
	case ch <- ev:
	default:
	}
}

// Close cancels in-flight scans and waits for their goroutines.
func (o *Orchestrator) Close() {
	o.jobsMu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.jobsMu.Unlock()
	o.wg.Wait()
}
