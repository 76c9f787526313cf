package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/webcrawler/internal/workerpool"
)

// Default engine sizes, used by the CLI when no value is given.
const (
	DefaultDepth       = 1
	DefaultDownloaders = 10
	DefaultExtractors  = 10
	DefaultPerHost     = 10

	// DefaultGracePeriod is how long Close lets in-flight work finish
	// before cancelling it.
	DefaultGracePeriod = 60 * time.Second
)

// ErrNoDownloader is returned by New when the downloader is nil.
var ErrNoDownloader = errors.New("crawler requires a downloader")

// Engine crawls pages breadth-first with bounded parallelism and a per-host
// concurrency cap shared by all of its crawls. An Engine is safe for
// concurrent use by multiple goroutines.
type Engine struct {
	downloader Downloader

	// downloads runs every fetch; extractors runs every link extraction.
	downloads  *workerpool.Pool
	extractors *workerpool.Pool

	// hosts holds the per-host admission queues shared by all sessions.
	hosts *registry

	perHost  int
	maxHosts int
	grace    time.Duration
	logger   *slog.Logger

	active    atomic.Int64
	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithGracePeriod sets how long Close waits for in-flight work.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) {
		e.grace = d
	}
}

// WithMaxHosts bounds the number of host queues kept by the engine.
// Zero or a negative value keeps every queue for the engine's lifetime.
func WithMaxHosts(n int) Option {
	return func(e *Engine) {
		e.maxHosts = n
	}
}

// New creates an Engine that fetches with downloader using at most
// downloaders concurrent downloads, extractors concurrent link extractions,
// and perHost concurrent downloads per host.
func New(downloader Downloader, downloaders, extractors, perHost int, opts ...Option) (*Engine, error) {
	if downloader == nil {
		return nil, ErrNoDownloader
	}
	if downloaders <= 0 || extractors <= 0 || perHost <= 0 {
		return nil, fmt.Errorf("%w (downloaders=%d, extractors=%d, perHost=%d)",
			ErrInvalidPoolSize, downloaders, extractors, perHost)
	}

	e := &Engine{
		downloader: downloader,
		perHost:    perHost,
		grace:      DefaultGracePeriod,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	downloads, err := workerpool.New(downloaders,
		workerpool.WithName("downloads"),
		workerpool.WithLogger(e.logger),
		workerpool.WithGracePeriod(e.grace),
	)
	if err != nil {
		return nil, fmt.Errorf("download pool: %w", err)
	}

	extractorPool, err := workerpool.New(extractors,
		workerpool.WithName("extractors"),
		workerpool.WithLogger(e.logger),
		workerpool.WithGracePeriod(e.grace),
	)
	if err != nil {
		downloads.Close()
		return nil, fmt.Errorf("extraction pool: %w", err)
	}

	hosts, err := newRegistry(perHost, e.maxHosts, downloads, e.logger)
	if err != nil {
		downloads.Close()
		extractorPool.Close()
		return nil, fmt.Errorf("host registry: %w", err)
	}

	e.downloads = downloads
	e.extractors = extractorPool
	e.hosts = hosts

	return e, nil
}

// Download crawls from seed, following links up to depth layers, with no host
// restriction. Depth 1 fetches only the seed.
//
// Per-URL failures are reported in the Result, never as the returned error.
// The error is non-nil only when seed has no derivable host; it is then a
// *MalformedURLError, also recorded in Result.Errors. If ctx ends before the
// crawl finishes, the Result holds what was collected so far and is marked
// Partial.
func (e *Engine) Download(ctx context.Context, seed string, depth int) (*Result, error) {
	if depth <= 0 {
		return emptyResult(), nil
	}
	return e.crawl(ctx, seed, depth, NewScope(nil))
}

// DownloadHosts is Download restricted to URLs whose host is one of hosts.
// An empty hosts list yields an empty Result without any network access.
func (e *Engine) DownloadHosts(ctx context.Context, seed string, depth int, hosts []string) (*Result, error) {
	if depth <= 0 || len(hosts) == 0 {
		return emptyResult(), nil
	}

	scope := NewScope(hosts)
	if scope.Unrestricted() {
		// Nothing in the list names a host, so nothing can match.
		return emptyResult(), nil
	}
	return e.crawl(ctx, seed, depth, scope)
}

// crawl runs one session.
func (e *Engine) crawl(ctx context.Context, seed string, depth int, scope *Scope) (*Result, error) {
	e.active.Add(1)
	defer e.active.Add(-1)

	start := time.Now()
	e.logger.Info("crawl started",
		"seed", seed,
		"depth", depth,
		"hosts", scope.Hosts(),
	)

	result, err := newSession(ctx, e, seed, depth, scope).run()
	if err != nil {
		e.logger.Warn("crawl rejected seed", "seed", seed, "error", err)
		return result, err
	}

	e.logger.Info("crawl finished",
		"seed", seed,
		"downloaded", len(result.Downloaded),
		"errors", len(result.Errors),
		"partial", result.Partial,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

// Close stops the engine. New work is refused immediately; in-flight work
// gets the grace period to finish before it is cancelled. Crawls still
// running complete with the refused URLs recorded as ErrEngineClosed.
// Close is idempotent and safe to call concurrently with Download.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.logger.Debug("closing crawler engine", "activeCrawls", e.active.Load())

		var wg sync.WaitGroup
		for _, p := range []*workerpool.Pool{e.downloads, e.extractors} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Close()
			}()
		}
		wg.Wait()
	})
}

// Stats is a point-in-time view of engine activity.
type Stats struct {
	// ActiveCrawls is the number of Download calls in progress.
	ActiveCrawls int
	// Hosts is the number of host queues currently tracked.
	Hosts int
	// RunningDownloads and WaitingDownloads describe the download pool.
	RunningDownloads int
	WaitingDownloads int
	// RunningExtractions is the number of link extractions in progress.
	RunningExtractions int
}

// Stats returns current engine activity.
func (e *Engine) Stats() Stats {
	return Stats{
		ActiveCrawls:       int(e.active.Load()),
		Hosts:              e.hosts.size(),
		RunningDownloads:   e.downloads.Running(),
		WaitingDownloads:   e.downloads.Waiting(),
		RunningExtractions: e.extractors.Running(),
	}
}

// HostLoad returns the number of running and pending downloads for host.
// Both are zero for a host the engine does not track.
func (e *Engine) HostLoad(host string) (running, pending int) {
	q, ok := e.hosts.lookup(host)
	if !ok {
		return 0, 0
	}
	return q.stats()
}
