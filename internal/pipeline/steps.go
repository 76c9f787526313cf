package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/model"
)

// Crawler runs a crawl. *crawler.Engine implements it.
type Crawler interface {
	Download(ctx context.Context, seed string, depth int) (*crawler.Result, error)
	DownloadHosts(ctx context.Context, seed string, depth int, hosts []string) (*crawler.Result, error)
}

// PageSource returns page summaries for downloaded URLs.
// *fetch.Recorder implements it.
type PageSource interface {
	Pages(urls []string) []model.Page
}

// ReportStore persists crawl reports. *database.CrawlDB implements it.
type ReportStore interface {
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) error
}

// CrawlStep crawls from the report's seed and fills in the results.
type CrawlStep struct {
	crawler      Crawler
	depth        int
	allowedHosts []string
	logger       *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlDepth sets the number of layers to crawl. Default is crawler.DefaultDepth.
func WithCrawlDepth(depth int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.depth = depth
	}
}

// WithAllowedHosts restricts the crawl to the given hosts.
func WithAllowedHosts(hosts []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.allowedHosts = hosts
	}
}

// WithCrawlLogger sets the logger of the step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a CrawlStep running on c.
func NewCrawlStep(c Crawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler: c,
		depth:   crawler.DefaultDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls report.Seed and replaces the report's results.
// A malformed seed is recorded as a failure and also returned.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if report.StartedAt.IsZero() {
		report.StartedAt = time.Now()
	}
	start := time.Now()

	var (
		result *crawler.Result
		err    error
	)
	if len(s.allowedHosts) > 0 {
		result, err = s.crawler.DownloadHosts(ctx, report.Seed, s.depth, s.allowedHosts)
	} else {
		result, err = s.crawler.Download(ctx, report.Seed, s.depth)
	}

	filled := model.NewCrawlReport(report.Seed, s.depth, s.allowedHosts, report.StartedAt, time.Since(start), result)
	filled.ID = report.ID
	*report = *filled

	if err != nil {
		var malformed *crawler.MalformedURLError
		if errors.As(err, &malformed) {
			return fmt.Errorf("invalid seed %q: %w", report.Seed, err)
		}
		return fmt.Errorf("crawl %s: %w", report.Seed, err)
	}

	s.logger.Debug("crawl step finished",
		"seed", report.Seed,
		"downloaded", len(report.Downloaded),
		"failed", len(report.Failures),
	)
	return nil
}

// PagesStep attaches page summaries for the downloaded URLs.
type PagesStep struct {
	source PageSource
}

// NewPagesStep creates a PagesStep reading from source.
func NewPagesStep(source PageSource) *PagesStep {
	return &PagesStep{source: source}
}

// Name returns the step name.
func (s *PagesStep) Name() string {
	return "pages"
}

// Do sets report.Pages.
func (s *PagesStep) Do(_ context.Context, report *model.CrawlReport) error {
	report.Pages = s.source.Pages(report.Downloaded)
	return nil
}

// StoreStep saves the report.
type StoreStep struct {
	store  ReportStore
	logger *slog.Logger
}

// NewStoreStep creates a StoreStep writing to store.
func NewStoreStep(store ReportStore, logger *slog.Logger) *StoreStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *StoreStep) Name() string {
	return "store"
}

// Do saves report.
func (s *StoreStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if err := s.store.SaveCrawlReport(ctx, report); err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}
	s.logger.Debug("crawl report saved", "seed", report.Seed, "id", report.ID)
	return nil
}

// DefaultPipelineConfig holds the parts of the default pipeline.
type DefaultPipelineConfig struct {
	// Crawler runs the crawl. Required.
	Crawler Crawler

	// Depth is the number of layers to crawl.
	Depth int

	// AllowedHosts restricts the crawl when non-empty.
	AllowedHosts []string

	// Pages, when set, supplies page summaries for the report.
	Pages PageSource

	// Store, when set, persists every report.
	Store ReportStore
}

// DefaultPipeline creates the crawl pipeline: crawl, then attach page
// summaries and store the report as final steps.
func DefaultPipeline(cfg DefaultPipelineConfig, opts ...Option) *Pipeline {
	p := New(opts...)

	p.AddStep(NewCrawlStep(cfg.Crawler,
		WithCrawlDepth(cfg.Depth),
		WithAllowedHosts(cfg.AllowedHosts),
		WithCrawlLogger(p.logger),
	))
	if cfg.Pages != nil {
		p.AddFinalStep(NewPagesStep(cfg.Pages))
	}
	if cfg.Store != nil {
		p.AddFinalStep(NewStoreStep(cfg.Store, p.logger))
	}
	return p
}
