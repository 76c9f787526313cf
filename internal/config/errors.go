package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be checked with
// errors.Is().
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed specified: provide one or more URLs to crawl")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidDownloaders is returned when the download pool size is not positive.
	ErrInvalidDownloaders = errors.New("invalid downloaders: must be positive")

	// ErrInvalidExtractors is returned when the extraction pool size is not positive.
	ErrInvalidExtractors = errors.New("invalid extractors: must be positive")

	// ErrInvalidPerHost is returned when the per-host limit is not positive.
	ErrInvalidPerHost = errors.New("invalid per-host limit: must be positive")

	// ErrInvalidMaxHosts is returned when the host registry bound is negative.
	ErrInvalidMaxHosts = errors.New("invalid max hosts: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidGracePeriod is returned when the shutdown grace period is negative.
	ErrInvalidGracePeriod = errors.New("invalid grace period: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --xlsx is specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose one of --json, --markdown and --xlsx")

	// ErrXLSXNeedsOutput is returned when --xlsx is given without --output.
	ErrXLSXNeedsOutput = errors.New("--xlsx requires --output")

	// ErrInvalidRateLimit is returned when the per-host rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
