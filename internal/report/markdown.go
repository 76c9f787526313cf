package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/webcrawler/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeHosts(md, report)
	w.writeFailures(md, report)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + report.Seed + "`"},
	}
	if report.ID > 0 {
		rows = append(rows, []string{"Crawl ID", strconv.FormatInt(report.ID, 10)})
	}
	rows = append(rows,
		[]string{"Started", report.StartedAt.Format(timeLayout)},
		[]string{"Elapsed", report.Elapsed.String()},
		[]string{"Depth", strconv.Itoa(report.Depth)},
		[]string{"Allowed Hosts", allowedHostsText(report.AllowedHosts)},
		[]string{"Status", statusText(report)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(report *model.CrawlReport) string {
	if report.Partial {
		return "⚠️ Interrupted (partial results)"
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Downloaded", strconv.Itoa(len(report.Downloaded))},
			{"Failed", strconv.Itoa(len(report.Failures))},
			{"Hosts", strconv.Itoa(len(report.HostCounts()))},
			{"Bytes", strconv.FormatInt(report.TotalBytes(), 10)},
		},
	})
	md.PlainText("")

	if len(report.Failures) > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Failures by Kind"),
		piechart.WithShowData(true),
	)

	counts := report.FailureCounts()
	for _, kind := range orderedKinds(counts) {
		chart.LabelAndIntValue(KindLabel(kind), uint64(counts[kind])) //nolint:gosec // counts are positive
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case report.Partial:
		md.Warningf("The crawl was interrupted. %d page(s) were downloaded before it stopped.", len(report.Downloaded))
	case len(report.Downloaded) == 0 && len(report.Failures) > 0:
		md.Cautionf("No pages could be downloaded. %d URL(s) failed.", len(report.Failures))
	case len(report.Failures) > 0:
		md.Importantf("%d URL(s) failed during the crawl.", len(report.Failures))
	default:
		md.Tip("Every discovered page was downloaded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Hosts")
	md.PlainText("")

	hosts := report.HostCounts()
	if len(hosts) == 0 {
		md.PlainText("No pages downloaded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		rows[i] = []string{"`" + h.Host + "`", strconv.Itoa(h.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Failures")
	md.PlainText("")

	if len(report.Failures) == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	for _, kind := range orderedKinds(report.FailureCounts()) {
		failures := failuresOfKind(report.Failures, kind)
		md.H3(KindLabel(kind))
		md.PlainText("")

		rows := make([][]string, len(failures))
		for i, f := range failures {
			rows[i] = []string{truncateString(f.URL, 80), truncateString(f.Message, 80)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Error"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Pages) == 0 {
		return
	}

	md.H2("Pages")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Pages))
	for _, p := range report.Pages {
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows = append(rows, []string{
			truncateString(p.URL, 80),
			strconv.Itoa(p.StatusCode),
			truncateString(title, 50),
			strconv.FormatInt(p.Size, 10),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Title", "Bytes"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by webcrawler*")
}

// WriteDiff outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *model.CrawlDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1f("Crawl Comparison: %s", diff.Seed)
	md.PlainText("")
	md.PlainTextf("**Status:** %s", FormatDirection(diff.Direction))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Started", diff.Previous.StartedAt.Format(timeLayout), diff.Current.StartedAt.Format(timeLayout), "-"},
			{"Downloaded", strconv.Itoa(diff.Previous.Downloaded), strconv.Itoa(diff.Current.Downloaded),
				FormatDelta(diff.Current.Downloaded - diff.Previous.Downloaded)},
			{"Failed", strconv.Itoa(diff.Previous.Failed), strconv.Itoa(diff.Current.Failed),
				FormatDelta(diff.Current.Failed - diff.Previous.Failed)},
		},
	})
	md.PlainText("")

	writeMarkdownURLs(md, "New Pages", diff.Added)
	writeMarkdownURLs(md, "Missing Pages", diff.Removed)
	writeMarkdownURLs(md, "Recovered", diff.Recovered)
	writeMarkdownURLs(md, "Changed Content", diff.Changed)

	if len(diff.NewFailures) > 0 {
		md.H2f("New Failures (%d)", len(diff.NewFailures))
		md.PlainText("")
		rows := make([][]string, len(diff.NewFailures))
		for i, f := range diff.NewFailures {
			rows[i] = []string{truncateString(f.URL, 80), KindLabel(f.Kind), truncateString(f.Message, 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Kind", "Error"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if !diff.HasChanges() {
		md.Note("No differences between the two crawls.")
		md.PlainText("")
	}

	if diff.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d pages unchanged*", diff.UnchangedCount)
	}

	return len(md.String()), md.Build()
}

func writeMarkdownURLs(md *markdown.Markdown, title string, urls []string) {
	if len(urls) == 0 {
		return
	}
	md.H2f("%s (%d)", title, len(urls))
	md.PlainText("")
	items := make([]string, len(urls))
	for i, u := range urls {
		items[i] = "`" + u + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}
