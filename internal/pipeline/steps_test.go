package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/model"
)

type fakeCrawler struct {
	mu       sync.Mutex
	calls    []string
	hosts    []string
	depth    int
	result   *crawler.Result
	err      error
	blockCtx bool
}

func (f *fakeCrawler) Download(ctx context.Context, seed string, depth int) (*crawler.Result, error) {
	return f.DownloadHosts(ctx, seed, depth, nil)
}

func (f *fakeCrawler) DownloadHosts(ctx context.Context, seed string, depth int, hosts []string) (*crawler.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, seed)
	f.hosts = hosts
	f.depth = depth
	f.mu.Unlock()

	if f.blockCtx {
		<-ctx.Done()
		return &crawler.Result{Downloaded: []string{seed}, Errors: map[string]error{}, Partial: true}, nil
	}
	if f.result != nil {
		return f.result, f.err
	}
	return &crawler.Result{Downloaded: []string{seed}, Errors: map[string]error{}}, f.err
}

type fakePages map[string]model.Page

func (f fakePages) Pages(urls []string) []model.Page {
	pages := make([]model.Page, 0, len(urls))
	for _, u := range urls {
		if p, ok := f[u]; ok {
			pages = append(pages, p)
		}
	}
	return pages
}

type fakeStore struct {
	mu      sync.Mutex
	saved   []*model.CrawlReport
	err     error
	ctxErrs []error
}

func (f *fakeStore) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, report)
	report.ID = int64(len(f.saved))
	return nil
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("fills the report", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{result: &crawler.Result{
			Downloaded: []string{"https://a.test/b", "https://a.test/"},
			Errors: map[string]error{
				"https://a.test/x": &crawler.FetchError{URL: "https://a.test/x", Err: errors.New("refused")},
			},
		}}
		step := NewCrawlStep(fc, WithCrawlDepth(3))

		started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		report := &model.CrawlReport{ID: 9, Seed: "https://a.test/", StartedAt: started}
		if err := step.Do(t.Context(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if fc.depth != 3 || fc.hosts != nil {
			t.Errorf("crawler called with depth %d hosts %v, want 3 and nil", fc.depth, fc.hosts)
		}
		if report.ID != 9 || !report.StartedAt.Equal(started) || report.Depth != 3 {
			t.Errorf("report header = %+v", report)
		}
		if len(report.Downloaded) != 2 || report.Downloaded[0] != "https://a.test/" {
			t.Errorf("Downloaded = %v, want sorted", report.Downloaded)
		}
		if len(report.Failures) != 1 || report.Failures[0].Kind != model.ErrorKindFetch {
			t.Errorf("Failures = %+v", report.Failures)
		}
	})

	t.Run("restricts to allowed hosts", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{}
		step := NewCrawlStep(fc, WithAllowedHosts([]string{"b.test", "a.test"}))
		report := &model.CrawlReport{Seed: "https://a.test/"}
		if err := step.Do(t.Context(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fc.hosts) != 2 {
			t.Errorf("hosts = %v, want 2 hosts", fc.hosts)
		}
		if fc.depth != crawler.DefaultDepth {
			t.Errorf("depth = %d, want default %d", fc.depth, crawler.DefaultDepth)
		}
		if len(report.AllowedHosts) != 2 || report.AllowedHosts[0] != "a.test" {
			t.Errorf("AllowedHosts = %v, want sorted", report.AllowedHosts)
		}
		if report.StartedAt.IsZero() {
			t.Error("expected StartedAt to be set")
		}
	})

	t.Run("malformed seed", func(t *testing.T) {
		t.Parallel()

		malformed := &crawler.MalformedURLError{URL: "nohost", Reason: "missing host"}
		fc := &fakeCrawler{
			result: &crawler.Result{Downloaded: []string{}, Errors: map[string]error{"nohost": malformed}},
			err:    malformed,
		}
		report := &model.CrawlReport{Seed: "nohost"}

		err := NewCrawlStep(fc).Do(t.Context(), report)
		var target *crawler.MalformedURLError
		if !errors.As(err, &target) {
			t.Fatalf("expected MalformedURLError, got %v", err)
		}
		failure, ok := report.Failure("nohost")
		if !ok || failure.Kind != model.ErrorKindMalformedURL {
			t.Errorf("expected malformed failure in report, got %+v", report.Failures)
		}
	})
}

func TestPagesStep(t *testing.T) {
	t.Parallel()

	pages := fakePages{
		"https://a.test/": {URL: "https://a.test/", Hash: "h1"},
		"https://b.test/": {URL: "https://b.test/", Hash: "h2"},
	}
	report := &model.CrawlReport{Downloaded: []string{"https://a.test/", "https://c.test/"}}

	if err := NewPagesStep(pages).Do(t.Context(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Pages) != 1 || report.Pages[0].Hash != "h1" {
		t.Errorf("Pages = %+v", report.Pages)
	}
}

func TestStoreStep(t *testing.T) {
	t.Parallel()

	t.Run("saves report", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		report := &model.CrawlReport{Seed: "https://a.test/"}
		if err := NewStoreStep(store, nil).Do(t.Context(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.ID != 1 || len(store.saved) != 1 {
			t.Errorf("expected report saved with ID 1, got ID %d", report.ID)
		}
	})

	t.Run("wraps store error", func(t *testing.T) {
		t.Parallel()

		errDisk := errors.New("disk full")
		err := NewStoreStep(&fakeStore{err: errDisk}, nil).Do(t.Context(), &model.CrawlReport{})
		if !errors.Is(err, errDisk) {
			t.Errorf("expected wrapped store error, got %v", err)
		}
	})
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("step layout", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(DefaultPipelineConfig{Crawler: &fakeCrawler{}})
		if names := p.StepNames(); len(names) != 1 || names[0] != "crawl" {
			t.Errorf("StepNames() = %v, want [crawl]", names)
		}

		p = DefaultPipeline(DefaultPipelineConfig{
			Crawler: &fakeCrawler{},
			Pages:   fakePages{},
			Store:   &fakeStore{},
		})
		names := p.StepNames()
		if len(names) != 3 || names[0] != "crawl" || names[1] != "pages" || names[2] != "store" {
			t.Errorf("StepNames() = %v, want [crawl pages store]", names)
		}
	})

	t.Run("interrupted crawl is still stored", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		p := DefaultPipeline(DefaultPipelineConfig{
			Crawler: &fakeCrawler{blockCtx: true},
			Depth:   2,
			Pages:   fakePages{"https://a.test/": {URL: "https://a.test/", Hash: "h"}},
			Store:   store,
		})

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		report := &model.CrawlReport{Seed: "https://a.test/"}
		if err := p.Execute(ctx, report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Partial {
			t.Error("expected partial report")
		}
		if len(store.saved) != 1 || len(report.Pages) != 1 {
			t.Fatalf("expected report with pages to be stored, saved=%d pages=%d", len(store.saved), len(report.Pages))
		}
		if store.ctxErrs[0] != nil {
			t.Errorf("expected store to get a live context, got %v", store.ctxErrs[0])
		}
	})
}

type linkDoc []string

func (d linkDoc) ExtractLinks() ([]string, error) {
	return d, nil
}

func TestDefaultPipeline_WithEngine(t *testing.T) {
	t.Parallel()

	web := map[string][]string{
		"https://a.test/":  {"https://a.test/1", "https://b.test/"},
		"https://a.test/1": {"https://a.test/"},
		"https://b.test/":  {},
	}
	engine, err := crawler.New(crawler.DownloaderFunc(func(_ context.Context, u string) (crawler.Document, error) {
		links, ok := web[u]
		if !ok {
			return nil, errors.New("not found")
		}
		return linkDoc(links), nil
	}), 2, 2, 1, crawler.WithGracePeriod(time.Second))
	if err != nil {
		t.Fatalf("crawler.New() error = %v", err)
	}
	t.Cleanup(engine.Close)

	store := &fakeStore{}
	p := DefaultPipeline(DefaultPipelineConfig{
		Crawler:      engine,
		Depth:        2,
		AllowedHosts: []string{"a.test"},
		Store:        store,
	})

	report := &model.CrawlReport{Seed: "https://a.test/"}
	if err := p.Execute(t.Context(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := append([]string(nil), report.Downloaded...)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "https://a.test/" || got[1] != "https://a.test/1" {
		t.Errorf("Downloaded = %v, want a.test pages only", got)
	}
	if report.ID == 0 {
		t.Error("expected report to be stored")
	}
}
