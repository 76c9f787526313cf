package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineClosed is recorded against URLs whose work was refused or
	// cancelled because the engine was shutting down.
	ErrEngineClosed = errors.New("crawler engine closed")

	// ErrInvalidPoolSize is returned by New when a pool size or the per-host
	// limit is not positive.
	ErrInvalidPoolSize = errors.New("invalid engine size: downloaders, extractors and perHost must be positive")

	// ErrNoDocument is wrapped in a FetchError when a Downloader returns
	// neither a Document nor an error.
	ErrNoDocument = errors.New("downloader returned no document")

	errDownloaderPanic = errors.New("downloader panicked")
	errDocumentPanic   = errors.New("link extraction panicked")
)

// MalformedURLError is recorded when the host of a crawl target cannot be
// derived. Such URLs are never scheduled.
type MalformedURLError struct {
	URL    string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *MalformedURLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed url %q: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed url %q: %s", e.URL, e.Reason)
}

// Unwrap returns the underlying parse error, if any.
func (e *MalformedURLError) Unwrap() error {
	return e.Err
}

// FetchError wraps a failure returned by the Downloader.
type FetchError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the Downloader error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractionError wraps a failure returned by Document.ExtractLinks.
// URL is the address the document was downloaded from.
type ExtractionError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract links from %s: %v", e.URL, e.Err)
}

// Unwrap returns the Document error.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}
