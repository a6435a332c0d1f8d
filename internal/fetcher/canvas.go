package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/edaccess/coursecheck/internal/logging"
	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/webclient"
)

// CanvasFetcher retrieves course content from the Canvas REST API.
//
// Collection listings and item bodies go through wc; when renderClient is
// non-nil, wiki page bodies are re-fetched through it so script-built
// markup is scanned (deep scan depth).
type CanvasFetcher struct {
	cfg          Config
	wc           webclient.WebClient
	renderClient webclient.WebClient
	logger       logging.Logger
}

var _ ContentFetcher = (*CanvasFetcher)(nil)

// NewCanvasFetcher builds a fetcher over the given webclient. renderClient
// may be nil for non-rendered scans.
func NewCanvasFetcher(cfg Config, wc webclient.WebClient, renderClient webclient.WebClient, logger logging.Logger) (*CanvasFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("canvas fetcher: base URL is required")
	}
	if wc == nil {
		return nil, fmt.Errorf("canvas fetcher: webclient is nil")
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultConfig().PerPage
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultConfig().ItemTimeout
	}
	return &CanvasFetcher{
		cfg:          cfg,
		wc:           wc,
		renderClient: renderClient,
		logger:       logger.With(logging.Field{Key: "component", Value: "canvas-fetcher"}),
	}, nil
}

// Canvas wire shapes. Only the fields the scan needs.

type canvasPageStub struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type canvasPage struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

type canvasAssignment struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
}

type canvasDiscussion struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	HTMLURL string `json:"html_url"`
}

type canvasModule struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Items []struct {
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
	} `json:"items"`
}

// Fetch implements ContentFetcher.
func (cf *CanvasFetcher) Fetch(ctx context.Context, courseID string, ct model.ContentType, cursor string) ([]model.ContentItem, string, error) {
	listURL := cursor
	if listURL == "" {
		var err error
		listURL, err = cf.firstPageURL(courseID, ct)
		if err != nil {
			return nil, "", err
		}
	}

	body, next, err := cf.getWithRetry(ctx, cf.wc, listURL)
	if err != nil {
		return nil, "", fmt.Errorf("list %s for course %s: %w", ct, courseID, err)
	}

	var items []model.ContentItem
	switch ct {
	case model.ContentPage:
		items, err = cf.pageItems(ctx, courseID, body)
	case model.ContentAssignment:
		items, err = assignmentItems(body)
	case model.ContentAnnouncement:
		items, err = announcementItems(body)
	case model.ContentModule:
		items, err = moduleItems(body)
	default:
		return nil, "", fmt.Errorf("unsupported content type %q", ct)
	}
	if err != nil {
		return nil, "", fmt.Errorf("decode %s listing: %w", ct, err)
	}
	return items, next, nil
}

func (cf *CanvasFetcher) firstPageURL(courseID string, ct model.ContentType) (string, error) {
	base := strings.TrimRight(cf.cfg.BaseURL, "/")
	q := url.Values{"per_page": {strconv.Itoa(cf.cfg.PerPage)}}
	var path string
	switch ct {
	case model.ContentPage:
		path = fmt.Sprintf("/api/v1/courses/%s/pages", url.PathEscape(courseID))
	case model.ContentAssignment:
		path = fmt.Sprintf("/api/v1/courses/%s/assignments", url.PathEscape(courseID))
	case model.ContentAnnouncement:
		path = fmt.Sprintf("/api/v1/courses/%s/discussion_topics", url.PathEscape(courseID))
		q.Set("only_announcements", "true")
	case model.ContentModule:
		path = fmt.Sprintf("/api/v1/courses/%s/modules", url.PathEscape(courseID))
		q.Set("include[]", "items")
	default:
		return "", fmt.Errorf("unsupported content type %q", ct)
	}
	return base + path + "?" + q.Encode(), nil
}

// pageItems resolves page stubs into full bodies; the listing endpoint does
// not include them. A single page fetch failure fails only that item, which
// the orchestrator records and moves past.
func (cf *CanvasFetcher) pageItems(ctx context.Context, courseID string, listing []byte) ([]model.ContentItem, error) {
	var stubs []canvasPageStub
	if err := json.Unmarshal(listing, &stubs); err != nil {
		return nil, err
	}

	items := make([]model.ContentItem, 0, len(stubs))
	for _, stub := range stubs {
		item, err := cf.fetchPage(ctx, courseID, stub)
		if err != nil {
			cf.logger.Warn("page body fetch failed",
				logging.Field{Key: "course_id", Value: courseID},
				logging.Field{Key: "page", Value: stub.URL},
				logging.Field{Key: "error", Value: err.Error()})
			// Emit the item with no body and carry the error in-band so
			// the orchestrator can record a per-item failure issue.
			items = append(items, model.ContentItem{
				ID:       stub.URL,
				Type:     model.ContentPage,
				Title:    stub.Title,
				FetchErr: err.Error(),
			})
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (cf *CanvasFetcher) fetchPage(ctx context.Context, courseID string, stub canvasPageStub) (model.ContentItem, error) {
	base := strings.TrimRight(cf.cfg.BaseURL, "/")
	pageURL := fmt.Sprintf("%s/api/v1/courses/%s/pages/%s", base, url.PathEscape(courseID), url.PathEscape(stub.URL))

	body, _, err := cf.getWithRetry(ctx, cf.wc, pageURL)
	if err != nil {
		return model.ContentItem{}, err
	}
	var page canvasPage
	if err := json.Unmarshal(body, &page); err != nil {
		return model.ContentItem{}, fmt.Errorf("decode page %s: %w", stub.URL, err)
	}

	rawHTML := page.Body
	if cf.renderClient != nil && page.HTMLURL != "" {
		if rendered, _, err := cf.getWithRetry(ctx, cf.renderClient, page.HTMLURL); err != nil {
			cf.logger.Warn("rendered fetch failed, falling back to API body",
				logging.Field{Key: "url", Value: page.HTMLURL},
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			rawHTML = string(rendered)
		}
	}

	return model.ContentItem{
		ID:        page.URL,
		Type:      model.ContentPage,
		Title:     page.Title,
		RawHTML:   rawHTML,
		SourceURL: page.HTMLURL,
	}, nil
}

func assignmentItems(listing []byte) ([]model.ContentItem, error) {
	var assignments []canvasAssignment
	if err := json.Unmarshal(listing, &assignments); err != nil {
		return nil, err
	}
	items := make([]model.ContentItem, 0, len(assignments))
	for _, a := range assignments {
		items = append(items, model.ContentItem{
			ID:        strconv.FormatInt(a.ID, 10),
			Type:      model.ContentAssignment,
			Title:     a.Name,
			RawHTML:   a.Description,
			SourceURL: a.HTMLURL,
		})
	}
	return items, nil
}

func announcementItems(listing []byte) ([]model.ContentItem, error) {
	var topics []canvasDiscussion
	if err := json.Unmarshal(listing, &topics); err != nil {
		return nil, err
	}
	items := make([]model.ContentItem, 0, len(topics))
	for _, t := range topics {
		items = append(items, model.ContentItem{
			ID:        strconv.FormatInt(t.ID, 10),
			Type:      model.ContentAnnouncement,
			Title:     t.Title,
			RawHTML:   t.Message,
			SourceURL: t.HTMLURL,
		})
	}
	return items, nil
}

// moduleItems builds a checkable fragment from a module's item titles and
// links. Modules have no body of their own; what is checkable is how their
// entries are named.
func moduleItems(listing []byte) ([]model.ContentItem, error) {
	var modules []canvasModule
	if err := json.Unmarshal(listing, &modules); err != nil {
		return nil, err
	}
	items := make([]model.ContentItem, 0, len(modules))
	for _, m := range modules {
		var b strings.Builder
		b.WriteString("<ul>")
		for _, it := range m.Items {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, it.HTMLURL, it.Title)
		}
		b.WriteString("</ul>")
		items = append(items, model.ContentItem{
			ID:      strconv.FormatInt(m.ID, 10),
			Type:    model.ContentModule,
			Title:   m.Name,
			RawHTML: b.String(),
		})
	}
	return items, nil
}

// getWithRetry GETs one URL with the per-item timeout and exponential
// backoff on transient failures. Returns the body and the rel="next" link
// when the response is paginated.
func (cf *CanvasFetcher) getWithRetry(ctx context.Context, wc webclient.WebClient, rawURL string) ([]byte, string, error) {
	var body []byte
	var next string

	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, cf.cfg.ItemTimeout)
		defer cancel()

		req := &webclient.Request{
			Method:  http.MethodGet,
			URL:     rawURL,
			Headers: http.Header{},
		}
		if cf.cfg.Token != "" {
			req.Headers.Set("Authorization", "Bearer "+cf.cfg.Token)
		}

		resp, err := wc.Do(reqCtx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("canvas returned %d for %s", resp.StatusCode, rawURL)
		case resp.StatusCode >= 400:
			// Client errors won't heal on retry.
			return backoff.Permanent(fmt.Errorf("canvas returned %d for %s", resp.StatusCode, rawURL))
		}
		body = resp.Body
		next = nextLink(resp.Headers.Get("Link"))
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cf.cfg.MaxRetries)),
		ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, "", err
	}
	return body, next, nil
}

// nextLink extracts the rel="next" target from a Canvas Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(sections[0]), "<>")
		for _, param := range sections[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return target
			}
		}
	}
	return ""
}

// CourseInfo returns raw course metadata for API passthrough.
func (cf *CanvasFetcher) CourseInfo(ctx context.Context, courseID string) (json.RawMessage, error) {
	base := strings.TrimRight(cf.cfg.BaseURL, "/")
	body, _, err := cf.getWithRetry(ctx, cf.wc, fmt.Sprintf("%s/api/v1/courses/%s", base, url.PathEscape(courseID)))
	if err != nil {
		return nil, fmt.Errorf("course info %s: %w", courseID, err)
	}
	return body, nil
}

// PageContent returns one wiki page as a content item.
func (cf *CanvasFetcher) PageContent(ctx context.Context, courseID, pageURL string) (model.ContentItem, error) {
	return cf.fetchPage(ctx, courseID, canvasPageStub{URL: pageURL, Title: pageURL})
}

// Assignments returns the raw assignment listing for API passthrough.
func (cf *CanvasFetcher) Assignments(ctx context.Context, courseID string) (json.RawMessage, error) {
	first, err := cf.firstPageURL(courseID, model.ContentAssignment)
	if err != nil {
		return nil, err
	}
	body, _, err := cf.getWithRetry(ctx, cf.wc, first)
	if err != nil {
		return nil, fmt.Errorf("assignments %s: %w", courseID, err)
	}
	return body, nil
}

// Close implements ContentFetcher.
func (cf *CanvasFetcher) Close() error {
	if cf.renderClient != nil {
		_ = cf.renderClient.Close()
	}
	return cf.wc.Close()
}
