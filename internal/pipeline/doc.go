// Package pipeline runs crawls as a sequence of steps and crawls several
// seeds in a batch.
//
// The default pipeline has one regular step, the crawl itself, followed by
// final steps that attach page summaries and store the report. Final steps
// run even when the crawl is interrupted, so partial results are kept.
//
// BatchProcessor runs one pipeline per seed with bounded concurrency using
// errgroup. Seeds normally share a single crawler engine.
package pipeline
