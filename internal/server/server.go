// Package server is the HTTP + WebSocket API surface.
package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/edaccess/coursecheck/internal/app"
	"github.com/edaccess/coursecheck/internal/fetcher"
	"github.com/edaccess/coursecheck/internal/logging"
	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/report"
	"github.com/edaccess/coursecheck/internal/store"
	"github.com/edaccess/coursecheck/internal/webclient"

	_ "modernc.org/sqlite" // SQLite driver
)

// Server wires the orchestrator, stores and Canvas passthroughs behind a
// chi router.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	scans        store.ScanStore
	settings     store.SettingsStore
	canvas       *fetcher.CanvasFetcher
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
	db           *sql.DB
}

// NewServer creates a Server with its own Orchestrator and sqlite-backed
// stores under the configured storage root.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	storageRoot, err := expandPath(cfg.AppConfig.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("expanding storage root path: %w", err)
	}
	cfg.AppConfig.StorageRoot = storageRoot
	if err := os.MkdirAll(cfg.AppConfig.StorageRoot, 0755); err != nil {
		logger.Warn("creating storage root directory", logging.Field{Key: "path", Value: cfg.AppConfig.StorageRoot}, logging.Field{Key: "error", Value: err.Error()})
	}

	db, err := sql.Open("sqlite", filepath.Join(cfg.AppConfig.StorageRoot, "coursecheck.db"))
	if err != nil {
		return nil, fmt.Errorf("opening scan database: %w", err)
	}

	st, err := store.NewSQLiteStore(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating scan store: %w", err)
	}

	wc, err := webclient.New(cfg.AppConfig.WebClient, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating webclient: %w", err)
	}
	canvas, err := fetcher.NewCanvasFetcher(cfg.AppConfig.Canvas, wc, nil, logger)
	if err != nil {
		_ = wc.Close()
		db.Close()
		return nil, fmt.Errorf("creating canvas fetcher: %w", err)
	}

	orch := app.NewOrchestrator(cfg.AppConfig, st, st, nil, logger)

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		scans:        st,
		settings:     st,
		canvas:       canvas,
		router:       r,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
		db: db,
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/api/scan", s.optionsHandler("POST"))
	r.Options("/api/scan/{scanID}", s.optionsHandler("GET"))
	r.Options("/api/scans", s.optionsHandler("GET"))
	r.Options("/api/export/{scanID}", s.optionsHandler("POST"))
	r.Options("/api/settings", s.optionsHandler("GET, POST"))
	r.Options("/api/course/{courseID}", s.optionsHandler("GET"))
	r.Options("/api/course/{courseID}/pages/{pageURL}", s.optionsHandler("GET"))
	r.Options("/api/course/{courseID}/assignments", s.optionsHandler("GET"))
	r.Options("/ws/scan/{scanID}", s.optionsHandler("GET"))

	// Scans
	r.Post("/api/scan", s.handleStartScan)
	r.Get("/api/scan/{scanID}", s.handleGetScan)
	r.Get("/api/scans", s.handleListScans)

	// Report export + downloads
	r.Post("/api/export/{scanID}", s.handleExport)
	r.Handle("/downloads/*", http.StripPrefix("/downloads/", http.FileServer(http.Dir(s.cfg.AppConfig.DownloadDir()))))

	// Settings
	r.Get("/api/settings", s.handleGetSettings)
	r.Post("/api/settings", s.handlePutSettings)

	// Canvas passthroughs
	r.Get("/api/course/{courseID}", s.handleCourseInfo)
	r.Get("/api/course/{courseID}/pages/{pageURL}", s.handlePageContent)
	r.Get("/api/course/{courseID}/assignments", s.handleAssignments)

	// WebSocket for scan progress
	r.Get("/ws/scan/{scanID}", s.handleScanWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the orchestrator and underlying resources.
func (s *Server) Close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	if s.canvas != nil {
		_ = s.canvas.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.AppConfig.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrScanNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNoContentTypes):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrScanNotFinished):
		return http.StatusConflict
	case errors.Is(err, report.ErrUnsupportedFormat):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// --- HTTP handlers ---

// Scans

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CourseID string             `json:"courseId"`
		UserID   string             `json:"userId"`
		Options  *model.ScanOptions `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.CourseID == "" {
		writeError(w, http.StatusBadRequest, "courseId is required")
		return
	}

	opts := model.DefaultScanOptions()
	if body.Options != nil {
		opts = *body.Options
	}

	scanID, err := s.orchestrator.StartScan(r.Context(), body.CourseID, body.UserID, opts)
	if err != nil {
		s.logger.Warn("starting scan", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.logger.Info("started scan", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "course_id", Value: body.CourseID})
	writeJSON(w, http.StatusAccepted, map[string]string{"scanId": scanID})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	result, err := s.orchestrator.GetScan(r.Context(), scanID)
	if err != nil {
		s.logger.Warn("getting scan", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("courseId")
	if courseID == "" {
		writeError(w, http.StatusBadRequest, "missing courseId query parameter")
		return
	}

	results, err := s.orchestrator.ListScans(r.Context(), courseID)
	if err != nil {
		s.logger.Warn("listing scans", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.logger.Info("listed scans", logging.Field{Key: "course_id", Value: courseID}, logging.Field{Key: "count", Value: len(results)})
	writeJSON(w, http.StatusOK, results)
}

// Report export

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	var body struct {
		Format model.ReportFormat `json:"format"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Format == "" {
		body.Format = model.FormatJSON
	}

	result, err := s.scans.Get(r.Context(), scanID)
	if err != nil {
		s.logger.Warn("exporting scan", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusForError(err), err.Error())
		return
	}

	name, err := report.Export(result, body.Format, s.cfg.AppConfig.DownloadDir())
	if err != nil {
		s.logger.Warn("exporting scan", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.logger.Info("exported scan", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "file", Value: name})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"downloadUrl": "/downloads/" + name,
	})
}

// Settings

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId query parameter")
		return
	}

	settings, err := s.settings.GetSettings(r.Context(), userID)
	if err != nil {
		s.logger.Warn("getting settings", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId query parameter")
		return
	}

	settings := model.DefaultSettings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := s.settings.PutSettings(r.Context(), userID, settings); err != nil {
		s.logger.Warn("saving settings", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.logger.Info("saved settings", logging.Field{Key: "user_id", Value: userID})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Canvas passthroughs

func (s *Server) handleCourseInfo(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")

	raw, err := s.canvas.CourseInfo(r.Context(), courseID)
	if err != nil {
		s.logger.Warn("getting course info", logging.Field{Key: "course_id", Value: courseID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (s *Server) handlePageContent(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	pageURL := chi.URLParam(r, "pageURL")

	item, err := s.canvas.PageContent(r.Context(), courseID, pageURL)
	if err != nil {
		s.logger.Warn("getting page content", logging.Field{Key: "course_id", Value: courseID}, logging.Field{Key: "page", Value: pageURL}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title": item.Title,
		"url":   item.SourceURL,
		"body":  item.RawHTML,
	})
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")

	raw, err := s.canvas.Assignments(r.Context(), courseID)
	if err != nil {
		s.logger.Warn("getting assignments", logging.Field{Key: "course_id", Value: courseID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// WebSocket

func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	events, ok := s.orchestrator.Events(scanID)
	if !ok {
		// The scan may have finished already; send the stored result if
		// there is one.
		if result, err := s.orchestrator.GetScan(r.Context(), scanID); err == nil {
			_ = conn.WriteJSON(app.ScanEvent{ScanID: scanID, Type: app.ScanEventResult, Status: result.Status, Error: result.Error})
			return
		}
		_ = conn.WriteJSON(map[string]string{"error": "scan not found"})
		return
	}

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			// Client disconnected; the scan keeps running.
			return
		}
	}

	// Channel closed: scan reached a terminal state. Send the final result
	// snapshot so the client does not have to poll.
	if result, err := s.orchestrator.GetScan(r.Context(), scanID); err == nil {
		_ = conn.WriteJSON(app.ScanEvent{ScanID: scanID, Type: app.ScanEventResult, Status: result.Status, Error: result.Error})
	}
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
