package crawler

import (
	"context"
	"sort"
)

// Downloader fetches a URL and returns a handle to its content.
// Implementations must be safe for concurrent use and should return promptly
// once ctx is done.
type Downloader interface {
	Download(ctx context.Context, url string) (Document, error)
}

// Document is fetched content that can report its outbound links.
// The returned links are expected to be absolute URLs.
type Document interface {
	ExtractLinks() ([]string, error)
}

// DownloaderFunc adapts a function to the Downloader interface.
type DownloaderFunc func(ctx context.Context, url string) (Document, error)

// Download calls f(ctx, url).
func (f DownloaderFunc) Download(ctx context.Context, url string) (Document, error) {
	return f(ctx, url)
}

// Result is the outcome of one crawl.
type Result struct {
	// Downloaded lists every URL fetched successfully. Order is unspecified.
	Downloaded []string

	// Errors maps each failed URL to the reason it failed.
	// A URL never appears in both Downloaded and Errors unless link
	// extraction failed after a successful download.
	Errors map[string]error

	// Partial is set when the caller's context ended before the crawl
	// finished; Downloaded and Errors then hold what was known at that point.
	Partial bool
}

// emptyResult returns a Result with no URLs and a non-nil error map.
func emptyResult() *Result {
	return &Result{
		Downloaded: make([]string, 0),
		Errors:     make(map[string]error),
	}
}

// SortedDownloaded returns a sorted copy of Downloaded.
func (r *Result) SortedDownloaded() []string {
	urls := make([]string, len(r.Downloaded))
	copy(urls, r.Downloaded)
	sort.Strings(urls)
	return urls
}

// ErrorDescriptions returns Errors with each error rendered as a string.
func (r *Result) ErrorDescriptions() map[string]string {
	descriptions := make(map[string]string, len(r.Errors))
	for url, err := range r.Errors {
		descriptions[url] = err.Error()
	}
	return descriptions
}
