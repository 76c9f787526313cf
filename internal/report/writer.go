package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/webcrawler/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
type Writer interface {
	// Write outputs a crawl report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteDiff outputs the comparison of two crawls of the same seed.
	WriteDiff(diff *model.CrawlDiff) (int, error)
}

// Flusher is implemented by writers that buffer reports and write them out
// on Flush.
type Flusher interface {
	Flush() error
}

// MultiWriter writes to multiple Writers in order.
// It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDiff outputs the diff to all configured Writers.
func (m *MultiWriter) WriteDiff(diff *model.CrawlDiff) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDiff(diff)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Flush flushes every Writer that implements Flusher.
func (m *MultiWriter) Flush() error {
	for _, w := range m.writers {
		if f, ok := w.(Flusher); ok {
			if err := f.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var (
	upperCaser = cases.Upper(language.English)
	titleCaser = cases.Title(language.English)
)

// KindLabel returns the display name of an error kind, e.g. "Http Status".
func KindLabel(kind model.ErrorKind) string {
	return titleCaser.String(strings.ReplaceAll(kind.String(), "_", " "))
}

// orderedKinds returns the kinds present in counts in declaration order.
func orderedKinds(counts map[model.ErrorKind]int) []model.ErrorKind {
	all := []model.ErrorKind{
		model.ErrorKindMalformedURL,
		model.ErrorKindFetch,
		model.ErrorKindHTTPStatus,
		model.ErrorKindExtraction,
		model.ErrorKindEngineClosed,
		model.ErrorKindCancelled,
		model.ErrorKindUnknown,
	}
	kinds := make([]model.ErrorKind, 0, len(counts))
	for _, k := range all {
		if counts[k] > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func failuresOfKind(failures []model.Failure, kind model.ErrorKind) []model.Failure {
	var out []model.Failure
	for _, f := range failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func allowedHostsText(hosts []string) string {
	if len(hosts) == 0 {
		return "any host"
	}
	return strings.Join(hosts, ", ")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
