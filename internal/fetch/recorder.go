package fetch

import (
	"context"
	"sync"

	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/model"
)

// Recorder wraps a Downloader and keeps a summary of every Page it returns
// until Pages hands it out. It is safe for concurrent use.
type Recorder struct {
	next crawler.Downloader

	mu    sync.Mutex
	pages map[string]model.Page
}

var _ crawler.Downloader = (*Recorder)(nil)

// NewRecorder creates a Recorder in front of next.
func NewRecorder(next crawler.Downloader) *Recorder {
	return &Recorder{
		next:  next,
		pages: make(map[string]model.Page),
	}
}

// Download implements crawler.Downloader.
func (r *Recorder) Download(ctx context.Context, rawURL string) (crawler.Document, error) {
	doc, err := r.next.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if page, ok := doc.(*Page); ok {
		summary := page.Summary()
		r.mu.Lock()
		r.pages[rawURL] = summary
		r.mu.Unlock()
	}
	return doc, nil
}

// Pages returns the summaries recorded for urls, in the order given, and
// forgets them. URLs without a summary are skipped.
func (r *Recorder) Pages(urls []string) []model.Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	pages := make([]model.Page, 0, len(urls))
	for _, u := range urls {
		if p, ok := r.pages[u]; ok {
			pages = append(pages, p)
			delete(r.pages, u)
		}
	}
	return pages
}

// Len returns the number of pages recorded and not yet handed out.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}
