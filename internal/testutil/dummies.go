// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/edaccess/coursecheck/internal/logging"
	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns body "ok:<url>" with status 200. Set Responses[url]
// to script bodies and FailURLs[url] = true to force an error for a URL.
type DummyWebClient struct {
	ResponseDelay time.Duration
	Responses     map[string][]byte
	StatusCodes   map[string]int
	FailURLs      map[string]bool
	mu            sync.Mutex
	Requests      []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, &errString{"dummy fetch fail for " + req.URL}
	}

	body := []byte("ok:" + req.URL)
	if d.Responses != nil {
		if b, ok := d.Responses[req.URL]; ok {
			body = b
		}
	}
	status := 200
	if d.StatusCodes != nil {
		if sc, ok := d.StatusCodes[req.URL]; ok {
			status = sc
		}
	}

	return &webclient.Response{
		Request:    req,
		Body:       body,
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: "GET", URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// ─── ContentFetcher ────────────────────────────────────────────────────

// DummyFetcher implements fetcher.ContentFetcher from scripted items.
// Items[contentType] is returned in a single page; Errs[contentType] forces
// a collection-level error instead.
type DummyFetcher struct {
	Items map[model.ContentType][]model.ContentItem
	Errs  map[model.ContentType]error

	mu      sync.Mutex
	Fetches []model.ContentType
	Closed  bool
}

func (d *DummyFetcher) Fetch(_ context.Context, _ string, ct model.ContentType, _ string) ([]model.ContentItem, string, error) {
	d.mu.Lock()
	d.Fetches = append(d.Fetches, ct)
	d.mu.Unlock()

	if d.Errs != nil {
		if err := d.Errs[ct]; err != nil {
			return nil, "", err
		}
	}
	return d.Items[ct], "", nil
}

func (d *DummyFetcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

type errString struct{ s string }

func (e *errString) Error() string { return e.s }
