package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edaccess/coursecheck/internal/fetcher"
	"github.com/edaccess/coursecheck/internal/model"
	"github.com/edaccess/coursecheck/internal/testutil"
	"github.com/edaccess/coursecheck/internal/webclient"
)

func newCanvasFetcher(t *testing.T, baseURL string) *fetcher.CanvasFetcher {
	t.Helper()

	wc, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: 5 * time.Second}, &testutil.DummyLogger{}, nil)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}

	cfg := fetcher.Config{
		BaseURL:     baseURL,
		Token:       "test-token",
		PerPage:     10,
		ItemTimeout: 2 * time.Second,
		MaxRetries:  3,
	}
	cf, err := fetcher.NewCanvasFetcher(cfg, wc, nil, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewCanvasFetcher: %v", err)
	}
	t.Cleanup(func() { cf.Close() })
	return cf
}

// ─── Pages ─────────────────────────────────────────────────────────────

func TestCanvasFetcher_PagesResolveBodies(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/courses/101/pages", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		fmt.Fprint(w, `[{"url":"intro","title":"Intro"},{"url":"syllabus","title":"Syllabus"}]`)
	})
	mux.HandleFunc("/api/v1/courses/101/pages/intro", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url":"intro","title":"Intro","body":"<h1>Welcome</h1>","html_url":"https://x/intro"}`)
	})
	mux.HandleFunc("/api/v1/courses/101/pages/syllabus", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url":"syllabus","title":"Syllabus","body":"<p>Read this</p>","html_url":"https://x/syllabus"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cf := newCanvasFetcher(t, srv.URL)

	items, next, err := cf.Fetch(context.Background(), "101", model.ContentPage, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if next != "" {
		t.Errorf("unexpected next cursor %q", next)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "intro" || items[0].RawHTML != "<h1>Welcome</h1>" {
		t.Errorf("item 0: %+v", items[0])
	}
	if items[1].Title != "Syllabus" || items[1].SourceURL != "https://x/syllabus" {
		t.Errorf("item 1: %+v", items[1])
	}
}

func TestCanvasFetcher_PageBodyFailureIsPerItem(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/courses/101/pages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"url":"good","title":"Good"},{"url":"gone","title":"Gone"}]`)
	})
	mux.HandleFunc("/api/v1/courses/101/pages/good", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url":"good","title":"Good","body":"<p>ok</p>"}`)
	})
	mux.HandleFunc("/api/v1/courses/101/pages/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cf := newCanvasFetcher(t, srv.URL)

	items, _, err := cf.Fetch(context.Background(), "101", model.ContentPage, "")
	if err != nil {
		t.Fatalf("a single bad page must not fail the listing: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].FetchErr != "" {
		t.Errorf("good page carries error: %+v", items[0])
	}
	if items[1].FetchErr == "" {
		t.Errorf("bad page should carry its fetch error: %+v", items[1])
	}
}

// ─── Pagination ────────────────────────────────────────────────────────

func TestCanvasFetcher_LinkHeaderPagination(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/courses/101/assignments", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/v1/courses/101/assignments?page=2>; rel="next", <%s/api/v1/courses/101/assignments?page=1>; rel="first"`, srv.URL, srv.URL))
			fmt.Fprint(w, `[{"id":1,"name":"HW 1","description":"<p>a</p>"}]`)
		case "2":
			fmt.Fprint(w, `[{"id":2,"name":"HW 2","description":"<p>b</p>"}]`)
		default:
			http.NotFound(w, r)
		}
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	cf := newCanvasFetcher(t, srv.URL)
	ctx := context.Background()

	first, next, err := cf.Fetch(ctx, "101", model.ContentAssignment, "")
	if err != nil {
		t.Fatalf("Fetch first page: %v", err)
	}
	if len(first) != 1 || first[0].Title != "HW 1" {
		t.Fatalf("first page: %+v", first)
	}
	if next == "" {
		t.Fatal("expected a next cursor from the Link header")
	}

	second, next2, err := cf.Fetch(ctx, "101", model.ContentAssignment, next)
	if err != nil {
		t.Fatalf("Fetch second page: %v", err)
	}
	if len(second) != 1 || second[0].Title != "HW 2" {
		t.Fatalf("second page: %+v", second)
	}
	if next2 != "" {
		t.Errorf("last page should have no next cursor, got %q", next2)
	}
}

// ─── Retries ───────────────────────────────────────────────────────────

func TestCanvasFetcher_RetriesTransient5xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/courses/101/assignments", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "temporarily down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[{"id":1,"name":"HW 1","description":"<p>a</p>"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cf := newCanvasFetcher(t, srv.URL)

	items, _, err := cf.Fetch(context.Background(), "101", model.ContentAssignment, "")
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items: %+v", items)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestCanvasFetcher_NoRetryOn4xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/courses/101/assignments", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cf := newCanvasFetcher(t, srv.URL)

	_, _, err := cf.Fetch(context.Background(), "101", model.ContentAssignment, "")
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("client errors must not be retried, got %d attempts", got)
	}
}

// ─── Other content types ───────────────────────────────────────────────

func TestCanvasFetcher_Announcements(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/courses/101/discussion_topics", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("only_announcements") != "true" {
			t.Error("missing only_announcements=true")
		}
		fmt.Fprint(w, `[{"id":7,"title":"Exam moved","message":"<p>New date</p>","html_url":"https://x/7"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cf := newCanvasFetcher(t, srv.URL)

	items, _, err := cf.Fetch(context.Background(), "101", model.ContentAnnouncement, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 || items[0].ID != "7" || items[0].Type != model.ContentAnnouncement {
		t.Fatalf("items: %+v", items)
	}
	if items[0].RawHTML != "<p>New date</p>" {
		t.Errorf("message body: %q", items[0].RawHTML)
	}
}

func TestCanvasFetcher_ModulesSynthesizeLinkList(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/courses/101/modules", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("include[]") != "items" {
			t.Error("missing include[]=items")
		}
		fmt.Fprint(w, `[{"id":3,"name":"Week 1","items":[{"title":"here","html_url":"https://x/1"},{"title":"Lecture notes","html_url":"https://x/2"}]}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cf := newCanvasFetcher(t, srv.URL)

	items, _, err := cf.Fetch(context.Background(), "101", model.ContentModule, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Week 1" {
		t.Fatalf("items: %+v", items)
	}
	want := `<ul><li><a href="https://x/1">here</a></li><li><a href="https://x/2">Lecture notes</a></li></ul>`
	if items[0].RawHTML != want {
		t.Errorf("synthesized fragment:\n got %q\nwant %q", items[0].RawHTML, want)
	}
}

func TestCanvasFetcher_TimeoutIsBounded(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/courses/101/assignments", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wc, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: 10 * time.Second}, &testutil.DummyLogger{}, nil)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	cf, err := fetcher.NewCanvasFetcher(fetcher.Config{
		BaseURL:     srv.URL,
		ItemTimeout: 150 * time.Millisecond,
		MaxRetries:  0,
	}, wc, nil, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewCanvasFetcher: %v", err)
	}
	defer cf.Close()

	start := time.Now()
	_, _, err = cf.Fetch(context.Background(), "101", model.ContentAssignment, "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout not enforced, took %s", elapsed)
	}
}
