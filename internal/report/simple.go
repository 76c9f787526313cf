package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/webcrawler/internal/model"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists every downloaded page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables the list of downloaded pages.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeHosts(&sb, report)
	w.writeFailures(&sb, report)
	w.writePages(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                           CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:           %s\n", report.Seed)
	if report.ID > 0 {
		fmt.Fprintf(sb, "Crawl ID:       %d\n", report.ID)
	}
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Elapsed:        %s\n", report.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(sb, "Depth:          %d\n", report.Depth)
	fmt.Fprintf(sb, "Allowed Hosts:  %s\n", allowedHostsText(report.AllowedHosts))

	if report.Partial {
		sb.WriteString("Status:         INTERRUPTED (partial results)\n")
	} else {
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(upperCaser.String(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	w.writeSection(sb, "summary")

	fmt.Fprintf(sb, "  Downloaded: %d\n", len(report.Downloaded))
	fmt.Fprintf(sb, "  Failed:     %d\n", len(report.Failures))
	if len(report.Pages) > 0 {
		fmt.Fprintf(sb, "  Bytes:      %d\n", report.TotalBytes())
	}
	fmt.Fprintf(sb, "  Hosts:      %d\n", len(report.HostCounts()))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHosts(sb *strings.Builder, report *model.CrawlReport) {
	hosts := report.HostCounts()
	if len(hosts) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "hosts")
	if len(hosts) == 0 {
		sb.WriteString("  No pages downloaded\n\n")
		return
	}
	for _, h := range hosts {
		fmt.Fprintf(sb, "  %-40s %d\n", h.Host, h.Count)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Failures) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "failures")
	if len(report.Failures) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}

	for _, kind := range orderedKinds(report.FailureCounts()) {
		failures := failuresOfKind(report.Failures, kind)
		fmt.Fprintf(sb, "[%s] (%d)\n", KindLabel(kind), len(failures))
		for _, f := range failures {
			fmt.Fprintf(sb, "  * %s\n", f.URL)
			if f.Message != "" {
				fmt.Fprintf(sb, "    %s\n", f.Message)
			}
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	if !w.verbose {
		return
	}
	if len(report.Downloaded) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "downloaded pages")
	if len(report.Downloaded) == 0 {
		sb.WriteString("  No pages downloaded\n\n")
		return
	}
	for _, u := range report.Downloaded {
		page, ok := report.Page(u)
		if !ok {
			fmt.Fprintf(sb, "  [+] %s\n", u)
			continue
		}
		fmt.Fprintf(sb, "  [+] %s (%d, %d bytes)\n", u, page.StatusCode, page.Size)
		if page.Title != "" {
			fmt.Fprintf(sb, "      Title: %s\n", page.Title)
		}
		if page.Redirected() {
			fmt.Fprintf(sb, "      Redirected to: %s\n", page.FinalURL)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by webcrawler\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteDiff outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteDiff(diff *model.CrawlDiff) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Crawl Comparison: %s\n", diff.Seed)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "\nStatus: %s\n", FormatDirection(diff.Direction))
	fmt.Fprintf(&sb, "\nPrevious crawl: %s%s\n", diff.Previous.StartedAt.Format(timeLayout), idSuffix(diff.Previous.ID))
	fmt.Fprintf(&sb, "Current crawl:  %s%s\n", diff.Current.StartedAt.Format(timeLayout), idSuffix(diff.Current.ID))

	sb.WriteString("\nSummary:\n")
	fmt.Fprintf(&sb, "  %-12s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 47) + "\n")
	fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %-10s\n", "Downloaded",
		diff.Previous.Downloaded, diff.Current.Downloaded,
		FormatDelta(diff.Current.Downloaded-diff.Previous.Downloaded))
	fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %-10s\n", "Failed",
		diff.Previous.Failed, diff.Current.Failed,
		FormatDelta(diff.Current.Failed-diff.Previous.Failed))

	writeURLList(&sb, "New Pages", "[+]", diff.Added)
	writeURLList(&sb, "Missing Pages", "[-]", diff.Removed)
	writeURLList(&sb, "Recovered", "[*]", diff.Recovered)
	writeURLList(&sb, "Changed Content", "[~]", diff.Changed)

	if len(diff.NewFailures) > 0 {
		fmt.Fprintf(&sb, "\nNew Failures (%d):\n", len(diff.NewFailures))
		for _, f := range diff.NewFailures {
			fmt.Fprintf(&sb, "  [!] [%s] %s: %s\n", KindLabel(f.Kind), f.URL, f.Message)
		}
	}

	if diff.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d pages\n", diff.UnchangedCount)
	}

	return io.WriteString(w.output, sb.String())
}

func writeURLList(sb *strings.Builder, title, marker string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s (%d):\n", title, len(urls))
	for _, u := range urls {
		fmt.Fprintf(sb, "  %s %s\n", marker, u)
	}
}

func idSuffix(id int64) string {
	if id == 0 {
		return ""
	}
	return " (ID " + strconv.FormatInt(id, 10) + ")"
}

// FormatDirection formats a diff direction for display.
func FormatDirection(direction string) string {
	switch direction {
	case model.DirectionImproved:
		return "IMPROVED (fewer failures)"
	case model.DirectionWorsened:
		return "WORSENED (more failures)"
	default:
		return "UNCHANGED"
	}
}

// FormatDelta formats a numeric delta with sign for display.
func FormatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
