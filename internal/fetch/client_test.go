package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webcrawler/internal/crawler"
)

// TestNewClient tests client construction.
func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{name: "defaults", opts: nil},
		{name: "valid proxy", opts: []Option{WithProxy("127.0.0.1:9050")}},
		{name: "proxy without port", opts: []Option{WithProxy("127.0.0.1")}, wantErr: ErrInvalidProxyAddress},
		{name: "proxy with empty host", opts: []Option{WithProxy(":9050")}, wantErr: ErrInvalidProxyAddress},
		{name: "proxy port out of range", opts: []Option{WithProxy("localhost:70000")}, wantErr: ErrInvalidProxyAddress},
		{name: "proxy port zero", opts: []Option{WithProxy("localhost:0")}, wantErr: ErrInvalidProxyAddress},
		{name: "non-positive body size", opts: []Option{WithMaxBodySize(0)}, wantErr: ErrInvalidBodySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewClient(tt.opts...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c == nil {
				t.Fatal("expected non-nil client")
			}
		})
	}
}

// TestClient_Fetch tests single requests against a local server.
func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns page with links", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body><a href="/next">n</a></body></html>`)) //nolint:errcheck
		}))
		defer server.Close()

		c, err := NewClient()
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		page, err := c.Fetch(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", page.StatusCode)
		}
		if page.Title() != "Home" {
			t.Errorf("expected title 'Home', got %q", page.Title())
		}

		links, err := page.ExtractLinks()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(links) != 1 || links[0] != server.URL+"/next" {
			t.Errorf("expected [%s/next], got %v", server.URL, links)
		}
	})

	t.Run("error status is a StatusError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		c, err := NewClient()
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		_, err = c.Fetch(context.Background(), server.URL+"/missing")
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected *StatusError, got %v", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", statusErr.StatusCode)
		}
	})

	t.Run("sends user agent and host settings", func(t *testing.T) {
		t.Parallel()

		type seen struct {
			ua, cookie, token string
		}
		got := make(chan seen, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got <- seen{
				ua:     r.Header.Get("User-Agent"),
				cookie: r.Header.Get("Cookie"),
				token:  r.Header.Get("X-Token"),
			}
			w.Header().Set("Content-Type", "text/plain")
		}))
		defer server.Close()

		c, err := NewClient(
			WithUserAgent("test-agent/1.0"),
			WithHostSettings(map[string]HostSettings{
				"127.0.0.1": {Cookie: "session=abc", Headers: map[string]string{"X-Token": "secret"}},
			}),
		)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		if _, err := c.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s := <-got
		if s.ua != "test-agent/1.0" {
			t.Errorf("expected user agent 'test-agent/1.0', got %q", s.ua)
		}
		if s.cookie != "session=abc" {
			t.Errorf("expected cookie 'session=abc', got %q", s.cookie)
		}
		if s.token != "secret" {
			t.Errorf("expected X-Token 'secret', got %q", s.token)
		}
	})

	t.Run("truncates large bodies", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(strings.Repeat("x", 100))) //nolint:errcheck
		}))
		defer server.Close()

		c, err := NewClient(WithMaxBodySize(10))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		page, err := c.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Body) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(page.Body))
		}
		if !page.Truncated {
			t.Error("expected page to be marked truncated")
		}
	})

	t.Run("follows redirects and resolves against final url", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new/", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<a href="child">c</a>`)) //nolint:errcheck
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c, err := NewClient()
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		page, err := c.Fetch(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.URL != server.URL+"/old" {
			t.Errorf("expected requested URL to be kept, got %q", page.URL)
		}
		if page.FinalURL != server.URL+"/new/" {
			t.Errorf("expected final URL %s/new/, got %q", server.URL, page.FinalURL)
		}
		links, err := page.ExtractLinks()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(links) != 1 || links[0] != server.URL+"/new/child" {
			t.Errorf("expected link resolved against final URL, got %v", links)
		}
	})

	t.Run("keeps cookies between requests", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "42", Path: "/"})
		})
		mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("sid"); err != nil || c.Value != "42" {
				w.WriteHeader(http.StatusForbidden)
			}
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c, err := NewClient()
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		if _, err := c.Fetch(context.Background(), server.URL+"/login"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := c.Fetch(context.Background(), server.URL+"/private"); err != nil {
			t.Errorf("expected cookie to be sent, got %v", err)
		}
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		c, err := NewClient()
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		if _, err := c.Fetch(ctx, server.URL); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

// TestPage tests content handling.
func TestPage(t *testing.T) {
	t.Parallel()

	t.Run("non-html has no links", func(t *testing.T) {
		t.Parallel()

		page := &Page{URL: "http://example.test/data.json", ContentType: "application/json", Body: []byte(`{"a":"<a href='/x'>"}`)}
		links, err := page.ExtractLinks()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(links) != 0 {
			t.Errorf("expected no links, got %v", links)
		}
	})

	t.Run("missing content type is sniffed", func(t *testing.T) {
		t.Parallel()

		page := &Page{URL: "http://example.test/", Body: []byte(`<!DOCTYPE html><html><body><a href="/x">x</a></body></html>`)}
		if !page.IsHTML() {
			t.Fatal("expected sniffed HTML")
		}
		links, err := page.ExtractLinks()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(links) != 1 {
			t.Errorf("expected 1 link, got %v", links)
		}
	})

	t.Run("fingerprint depends only on body", func(t *testing.T) {
		t.Parallel()

		a := &Page{URL: "http://a.test/", Body: []byte("same")}
		b := &Page{URL: "http://b.test/", Body: []byte("same")}
		c := &Page{URL: "http://a.test/", Body: []byte("different")}

		if a.Fingerprint() != b.Fingerprint() {
			t.Error("expected equal fingerprints for equal bodies")
		}
		if a.Fingerprint() == c.Fingerprint() {
			t.Error("expected different fingerprints for different bodies")
		}
		if len(a.Fingerprint()) != 64 {
			t.Errorf("expected 64 hex characters, got %d", len(a.Fingerprint()))
		}
	})

	t.Run("summary", func(t *testing.T) {
		t.Parallel()

		page := &Page{
			URL:         "http://example.test/",
			FinalURL:    "http://example.test/",
			StatusCode:  200,
			ContentType: "text/html",
			Body:        []byte(`<title>Hi</title>`),
		}
		s := page.Summary()
		if s.Title != "Hi" || s.Size != int64(len(page.Body)) || s.Hash != page.Fingerprint() {
			t.Errorf("unexpected summary %+v", s)
		}
	})
}

// TestClient_WithEngine crawls a small site end to end.
func TestClient_WithEngine(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/a">a</a><a href="/b">b</a><a href="/gone">gone</a>`)) //nolint:errcheck
	})
	for _, p := range []string{"/a", "/b"} {
		mux.HandleFunc(p, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprintf(w, `<title>%s</title><a href="/">home</a>`, p) //nolint:errcheck
		})
	}
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	recorder := NewRecorder(client)

	engine, err := crawler.New(recorder, 4, 4, 2, crawler.WithGracePeriod(time.Second))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	result, err := engine.Download(context.Background(), server.URL+"/", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Downloaded) != 3 {
		t.Errorf("expected 3 downloads, got %v", result.Downloaded)
	}
	var fetchErr *crawler.FetchError
	if !errors.As(result.Errors[server.URL+"/gone"], &fetchErr) {
		t.Fatalf("expected fetch error for /gone, got %v", result.Errors)
	}
	var statusErr *StatusError
	if !errors.As(fetchErr, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected wrapped 404, got %v", fetchErr)
	}

	pages := recorder.Pages(result.SortedDownloaded())
	if len(pages) != 3 {
		t.Fatalf("expected 3 recorded pages, got %d", len(pages))
	}
	for _, p := range pages {
		if p.Hash == "" {
			t.Errorf("expected hash for %s", p.URL)
		}
	}
	if n := recorder.Len(); n != 0 {
		t.Errorf("expected handed out pages to be forgotten, %d left", n)
	}
	if again := recorder.Pages(result.SortedDownloaded()); len(again) != 0 {
		t.Errorf("expected no pages on second call, got %d", len(again))
	}
}
