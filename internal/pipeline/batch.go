package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webcrawler/internal/model"
)

// DefaultConcurrency is the default number of seeds crawled at once.
const DefaultConcurrency = 4

// BatchProcessor crawls several seeds concurrently.
// The seeds normally share one crawler engine, so the per-host cap and the
// pool sizes hold across the whole batch.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each seed.
	pipelineFactory func() *Pipeline

	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of seeds crawled at once.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// pipelineFactory is called once per seed.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// Concurrency returns the configured concurrency.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// ProcessBatch crawls seeds and returns one report per seed, in the order
// of seeds. A failing seed does not stop the others; its report records
// what went wrong. The error is non-nil only when ctx ended before every
// seed was started, in which case the reports of unstarted seeds are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(report *model.CrawlReport, index int) {
		reports[index] = report
	})
	return reports, err
}

// ProcessBatchWithCallback crawls seeds and calls callback for each
// finished report with the seed's index. The callback is called from the
// goroutine that ran the crawl, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			report := &model.CrawlReport{
				Seed:       seed,
				StartedAt:  time.Now(),
				Downloaded: make([]string, 0),
				Failures:   make([]model.Failure, 0),
			}
			if err := bp.pipelineFactory().Execute(ctx, report); err != nil {
				// Recorded in the report; the other seeds carry on.
				bp.logger.Warn("crawl failed",
					"seed", seed,
					"error", err,
				)
			} else {
				bp.logger.Info("crawl completed",
					"seed", seed,
					"downloaded", len(report.Downloaded),
					"failed", len(report.Failures),
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)
	return err
}
