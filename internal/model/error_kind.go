package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/webcrawler/internal/crawler"
)

// ErrorKind classifies why a URL failed during a crawl.
type ErrorKind int

const (
	// ErrorKindUnknown is an error of no recognised type.
	ErrorKindUnknown ErrorKind = iota

	// ErrorKindMalformedURL is a crawl target without a derivable host.
	ErrorKindMalformedURL

	// ErrorKindFetch is a transport-level download failure.
	ErrorKindFetch

	// ErrorKindHTTPStatus is a download answered with an error status.
	ErrorKindHTTPStatus

	// ErrorKindExtraction is a page that was downloaded but whose links
	// could not be extracted.
	ErrorKindExtraction

	// ErrorKindEngineClosed is work refused or cancelled during shutdown.
	ErrorKindEngineClosed

	// ErrorKindCancelled is work abandoned because the crawl was cancelled or
	// timed out.
	ErrorKindCancelled
)

var errorKindNames = map[ErrorKind]string{
	ErrorKindUnknown:      "unknown",
	ErrorKindMalformedURL: "malformed_url",
	ErrorKindFetch:        "fetch",
	ErrorKindHTTPStatus:   "http_status",
	ErrorKindExtraction:   "extraction",
	ErrorKindEngineClosed: "engine_closed",
	ErrorKindCancelled:    "cancelled",
}

// String returns the stable name of the kind, used in reports and storage.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseErrorKind returns the kind named s, or ErrorKindUnknown.
func ParseErrorKind(s string) ErrorKind {
	s = strings.ToLower(strings.TrimSpace(s))
	for kind, name := range errorKindNames {
		if name == s {
			return kind
		}
	}
	return ErrorKindUnknown
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	kind := ParseErrorKind(string(text))
	if kind == ErrorKindUnknown && string(text) != "unknown" {
		return fmt.Errorf("unknown error kind %q", string(text))
	}
	*k = kind
	return nil
}

// httpStatusError is implemented by downloader errors that carry a status.
type httpStatusError interface {
	error
	HTTPStatus() int
}

// ClassifyError returns the kind of a crawl error.
func ClassifyError(err error) ErrorKind {
	var (
		malformed  *crawler.MalformedURLError
		extraction *crawler.ExtractionError
		fetch      *crawler.FetchError
		status     httpStatusError
	)

	switch {
	case err == nil:
		return ErrorKindUnknown
	case errors.As(err, &malformed):
		return ErrorKindMalformedURL
	case errors.Is(err, crawler.ErrEngineClosed):
		return ErrorKindEngineClosed
	case errors.As(err, &extraction):
		return ErrorKindExtraction
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	case errors.As(err, &status):
		return ErrorKindHTTPStatus
	case errors.As(err, &fetch):
		return ErrorKindFetch
	default:
		return ErrorKindUnknown
	}
}
