package webclient

import (
	"context"
	"net/http"
	"time"
)

// WebClient abstracts HTTP retrieval so fetchers can swap a plain client
// for a rendering one without caring which is underneath.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	// Get is a convenience method for simple GET requests
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// Backend names accepted by the factory.
type Backend string

const (
	BackendNetHTTP  Backend = "nethttp"
	BackendChromedp Backend = "chromedp"
)

// Config selects and tunes a backend.
type Config struct {
	Backend Backend

	// Timeout bounds one request (nethttp) or one navigation (chromedp).
	Timeout time.Duration

	// IdleAfter is how long the chromedp backend waits with no network
	// activity before taking the rendered DOM.
	IdleAfter time.Duration
}
