package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// fetched is a successfully downloaded document together with the URL it
// came from. The URL is kept only for the layer the document belongs to.
type fetched struct {
	url string
	doc Document
}

// session is the state of one Engine.Download call. Nothing in it is shared
// with other sessions; only the host queues it submits to are.
type session struct {
	engine *Engine
	ctx    context.Context
	logger *slog.Logger

	seed  string
	depth int
	scope *Scope

	mu         sync.Mutex
	visited    map[string]struct{}
	downloaded []string
	errors     map[string]error
	// layer receives the documents downloaded during the current layer.
	layer chan fetched

	// outstanding counts scheduled work of the current layer that has not
	// resolved yet: downloads, and extractions that may schedule downloads.
	outstanding sync.WaitGroup

	// abandoned is closed when the caller stopped waiting for this session.
	abandoned chan struct{}
}

// newSession creates the state for crawling seed up to depth layers.
func newSession(ctx context.Context, e *Engine, seed string, depth int, scope *Scope) *session {
	return &session{
		engine:    e,
		ctx:       ctx,
		logger:    e.logger.With("seed", seed),
		seed:      seed,
		depth:     depth,
		scope:     scope,
		visited:   make(map[string]struct{}),
		errors:    make(map[string]error),
		abandoned: make(chan struct{}),
	}
}

// run performs the layered crawl and returns its result.
// The returned error is non-nil only when the seed itself is malformed.
func (s *session) run() (*Result, error) {
	host, err := hostOf(s.seed)
	if err != nil {
		s.recordError(s.seed, err)
		return s.snapshot(false), err
	}
	if !s.scope.allows(host) {
		s.logger.Debug("seed outside allowed hosts", "host", host)
		return s.snapshot(false), nil
	}

	s.mu.Lock()
	s.visited[s.seed] = struct{}{}
	s.mu.Unlock()

	current, ok := s.runLayer(func() {
		s.schedule(host, s.seed)
	})
	if !ok {
		return s.snapshot(true), nil
	}
	s.logLayer(1, len(current))

	for depth := 2; depth <= s.depth && len(current) > 0; depth++ {
		docs := current
		next, ok := s.runLayer(func() {
			for _, f := range docs {
				s.extract(f)
			}
		})
		if !ok {
			return s.snapshot(true), nil
		}
		s.logLayer(depth, len(next))
		current = next
	}

	return s.snapshot(false), nil
}

// runLayer starts a layer's work and blocks until all of it has resolved.
// It returns the documents downloaded during the layer, or false if the
// caller's context ended first.
func (s *session) runLayer(start func()) ([]fetched, bool) {
	ch := make(chan fetched)
	s.mu.Lock()
	s.layer = ch
	s.mu.Unlock()

	collected := make(chan []fetched, 1)
	go s.collect(ch, collected)

	start()

	if !s.wait() {
		close(s.abandoned)
		return nil, false
	}
	close(ch)
	return <-collected, true
}

// collect gathers documents sent on ch until it is closed.
func (s *session) collect(ch <-chan fetched, out chan<- []fetched) {
	var docs []fetched
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				out <- docs
				return
			}
			docs = append(docs, f)
		case <-s.abandoned:
			return
		}
	}
}

// wait is the layer barrier. It returns false if the caller's context ends
// before the outstanding counter drops to zero.
func (s *session) wait() bool {
	done := make(chan struct{})
	go func() {
		s.outstanding.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-s.ctx.Done():
		s.logger.Debug("crawl interrupted", "error", s.ctx.Err())
		return false
	}
}

// schedule counts rawURL as outstanding and hands it to its host queue.
func (s *session) schedule(host, rawURL string) {
	s.outstanding.Add(1)
	s.engine.hosts.admit(host, s, rawURL)
}

// resolve marks one unit of outstanding work as finished.
func (s *session) resolve() {
	s.outstanding.Done()
}

// fetch downloads rawURL. It runs on the download pool; poolCtx is cancelled
// when the engine shuts down.
func (s *session) fetch(poolCtx context.Context, rawURL string) {
	if err := s.interrupted(poolCtx); err != nil {
		s.recordError(rawURL, err)
		return
	}

	ctx, cancel := context.WithCancelCause(s.ctx)
	defer cancel(nil)
	stop := context.AfterFunc(poolCtx, func() {
		cancel(ErrEngineClosed)
	})
	defer stop()

	doc, err := s.download(ctx, rawURL)
	if err != nil {
		s.logger.Debug("download failed", "url", rawURL, "error", err)
		s.recordError(rawURL, &FetchError{URL: rawURL, Err: err})
		return
	}

	s.mu.Lock()
	s.downloaded = append(s.downloaded, rawURL)
	ch := s.layer
	s.mu.Unlock()

	select {
	case ch <- fetched{url: rawURL, doc: doc}:
	case <-s.abandoned:
	}
}

// download calls the Downloader, turning a panic or a missing document into
// an error.
func (s *session) download(ctx context.Context, rawURL string) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errDownloaderPanic, r)
		}
	}()

	doc, err = s.engine.downloader.Download(ctx, rawURL)
	if err == nil && doc == nil {
		return nil, ErrNoDocument
	}
	return doc, err
}

// extractLinks calls ExtractLinks, turning a panic into an error.
func extractLinks(doc Document) (links []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errDocumentPanic, r)
		}
	}()
	return doc.ExtractLinks()
}

// extract submits link extraction for f to the extraction pool.
func (s *session) extract(f fetched) {
	s.outstanding.Add(1)
	s.engine.extractors.Submit(func(ctx context.Context) {
		defer s.resolve()
		s.discover(ctx, f)
	})
}

// discover extracts the links of f and schedules the unseen, in-scope ones.
func (s *session) discover(poolCtx context.Context, f fetched) {
	if err := s.interrupted(poolCtx); err != nil {
		s.logger.Debug("skipping link extraction", "url", f.url, "error", err)
		if errors.Is(err, ErrEngineClosed) {
			s.recordError(f.url, &ExtractionError{URL: f.url, Err: err})
		}
		return
	}

	links, err := extractLinks(f.doc)
	if err != nil {
		s.logger.Debug("link extraction failed", "url", f.url, "error", err)
		s.recordError(f.url, &ExtractionError{URL: f.url, Err: err})
		return
	}

	for _, link := range links {
		if s.ctx.Err() != nil {
			return
		}
		s.consider(link)
	}
}

// consider schedules link if it is new and in scope. Links without a
// derivable host are recorded as errors instead.
func (s *session) consider(link string) {
	s.mu.Lock()
	if _, seen := s.visited[link]; seen {
		s.mu.Unlock()
		return
	}

	host, err := hostOf(link)
	if err != nil {
		s.visited[link] = struct{}{}
		s.errors[link] = err
		s.mu.Unlock()
		return
	}
	if !s.scope.allows(host) {
		s.mu.Unlock()
		return
	}

	s.visited[link] = struct{}{}
	s.mu.Unlock()

	s.schedule(host, link)
}

// interrupted returns the reason work should not start, if any.
func (s *session) interrupted(poolCtx context.Context) error {
	if poolCtx.Err() != nil {
		return ErrEngineClosed
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return nil
}

// recordError stores err as the failure of rawURL.
func (s *session) recordError(rawURL string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[rawURL] = err
}

// snapshot copies the session state into a Result.
func (s *session) snapshot(partial bool) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &Result{
		Downloaded: make([]string, len(s.downloaded)),
		Errors:     make(map[string]error, len(s.errors)),
		Partial:    partial,
	}
	copy(result.Downloaded, s.downloaded)
	for url, err := range s.errors {
		result.Errors[url] = err
	}
	return result
}

// logLayer reports the end of a layer.
func (s *session) logLayer(depth, downloaded int) {
	s.mu.Lock()
	visited, failed := len(s.visited), len(s.errors)
	s.mu.Unlock()

	s.logger.Debug("layer complete",
		"depth", depth,
		"downloaded", downloaded,
		"visited", visited,
		"errors", failed,
	)
}
