package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/webcrawler/internal/model"
)

// Step is one stage of processing a crawl report.
type Step interface {
	// Do executes the step. Non-fatal problems should be recorded in the
	// report and nil returned.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps over a report in order.
//
// Regular steps stop at the first error (unless continueOnError is set) or
// when ctx is done. Final steps always run afterwards, with a context that
// is not cancelled, so that what was collected is still recorded.
type Pipeline struct {
	steps      []Step
	finalSteps []Step

	logger *slog.Logger

	// continueOnError keeps running regular steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to keep executing regular
// steps after one fails. The errors are joined in the return value.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:      make([]Step, 0),
		finalSteps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a regular step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple regular steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after the regular steps whatever
// their outcome.
func (p *Pipeline) AddFinalStep(step Step) {
	p.finalSteps = append(p.finalSteps, step)
}

// Execute runs the pipeline over report.
// A cancelled ctx marks the report Partial; the returned error then wraps
// ctx.Err(). Errors from several steps are joined.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	var errs []error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"seed", report.Seed,
				"reason", err,
			)
			report.Partial = true
			errs = append(errs, err)
			break
		}

		if err := p.run(ctx, step, report); err != nil {
			errs = append(errs, err)
			if !p.continueOnError {
				break
			}
		}
	}

	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.finalSteps {
		if err := p.run(finalCtx, step, report); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (p *Pipeline) run(ctx context.Context, step Step, report *model.CrawlReport) error {
	p.logger.Debug("executing step",
		"step", step.Name(),
		"seed", report.Seed,
	)

	if err := step.Do(ctx, report); err != nil {
		p.logger.Error("step failed",
			"step", step.Name(),
			"seed", report.Seed,
			"error", err,
		)
		return err
	}

	p.logger.Debug("step completed",
		"step", step.Name(),
		"seed", report.Seed,
	)
	return nil
}

// StepCount returns the number of regular and final steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalSteps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
