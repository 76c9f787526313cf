package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/webcrawler/internal/model"
)

// Sheet names of the workbooks written by XLSXWriter.
const (
	SheetCrawls     = "Crawls"
	SheetPages      = "Pages"
	SheetFailures   = "Failures"
	SheetComparison = "Comparison"
	SheetChanges    = "Changes"

	defaultSheet = "Sheet1"
)

// XLSXWriter writes Excel workbooks.
//
// Write only buffers the report, so that several crawls end up in one
// workbook; Flush writes the workbook with a Crawls, a Pages and a Failures
// sheet. WriteDiff writes a workbook of its own immediately.
type XLSXWriter struct {
	baseWriter

	reports []*model.CrawlReport
}

var _ Flusher = (*XLSXWriter)(nil)

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write adds the report to the pending workbook. It writes nothing.
func (w *XLSXWriter) Write(report *model.CrawlReport) (int, error) {
	w.reports = append(w.reports, report)
	return 0, nil
}

// Flush writes the workbook of every report passed to Write since the last
// Flush.
func (w *XLSXWriter) Flush() error {
	f := excelize.NewFile()
	defer f.Close()

	var crawls, pages, failures [][]any
	for _, r := range w.reports {
		crawls = append(crawls, []any{
			r.ID,
			r.Seed,
			r.StartedAt.Format(timeLayout),
			r.Elapsed.Round(time.Millisecond).String(),
			r.Depth,
			allowedHostsText(r.AllowedHosts),
			len(r.Downloaded),
			len(r.Failures),
			r.TotalBytes(),
			r.Partial,
		})
		for _, p := range r.Pages {
			pages = append(pages, []any{
				r.Seed, p.URL, p.FinalURL, p.StatusCode, p.ContentType, p.Title, p.Size, p.Hash, p.Truncated,
			})
		}
		for _, fl := range r.Failures {
			failures = append(failures, []any{r.Seed, fl.URL, KindLabel(fl.Kind), fl.Message})
		}
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]any
	}{
		{SheetCrawls, []string{"ID", "Seed", "Started", "Elapsed", "Depth", "Allowed Hosts", "Downloaded", "Failed", "Bytes", "Partial"}, crawls},
		{SheetPages, []string{"Seed", "URL", "Final URL", "Status", "Content Type", "Title", "Bytes", "Hash", "Truncated"}, pages},
		{SheetFailures, []string{"Seed", "URL", "Kind", "Error"}, failures},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.rows); err != nil {
			return err
		}
	}

	if err := finishWorkbook(f, SheetCrawls); err != nil {
		return err
	}
	if _, err := f.WriteTo(w.output); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	w.reports = nil
	return nil
}

// WriteDiff writes a workbook with a Comparison and a Changes sheet.
func (w *XLSXWriter) WriteDiff(diff *model.CrawlDiff) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	summary := [][]any{
		{"Seed", diff.Seed, "", ""},
		{"Status", FormatDirection(diff.Direction), "", ""},
		{"Crawl ID", diff.Previous.ID, diff.Current.ID, ""},
		{"Started", diff.Previous.StartedAt.Format(timeLayout), diff.Current.StartedAt.Format(timeLayout), ""},
		{"Downloaded", diff.Previous.Downloaded, diff.Current.Downloaded, FormatDelta(diff.Current.Downloaded - diff.Previous.Downloaded)},
		{"Failed", diff.Previous.Failed, diff.Current.Failed, FormatDelta(diff.Current.Failed - diff.Previous.Failed)},
		{"Unchanged Pages", diff.UnchangedCount, "", ""},
	}
	if err := writeSheet(f, SheetComparison, []string{"Metric", "Previous", "Current", "Change"}, summary); err != nil {
		return 0, err
	}

	var changes [][]any
	appendURLs := func(change string, urls []string) {
		for _, u := range urls {
			changes = append(changes, []any{change, u, ""})
		}
	}
	appendURLs("new page", diff.Added)
	appendURLs("missing page", diff.Removed)
	appendURLs("recovered", diff.Recovered)
	appendURLs("changed content", diff.Changed)
	for _, fl := range diff.NewFailures {
		changes = append(changes, []any{"new failure", fl.URL, KindLabel(fl.Kind) + ": " + fl.Message})
	}
	if err := writeSheet(f, SheetChanges, []string{"Change", "URL", "Detail"}, changes); err != nil {
		return 0, err
	}

	if err := finishWorkbook(f, SheetComparison); err != nil {
		return 0, err
	}
	n, err := f.WriteTo(w.output)
	if err != nil {
		return int(n), fmt.Errorf("failed to write workbook: %w", err)
	}
	return int(n), nil
}

// writeSheet adds a sheet with a bold, frozen, filterable header row.
func writeSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", name, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(name, "A", lastCol, 20); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, name, err)
		}
	}

	if err := f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := f.AutoFilter(name, "A1:"+lastCol+strconv.Itoa(len(rows)+1), nil); err != nil {
			return err
		}
	}
	return nil
}

// finishWorkbook drops the default sheet and opens the workbook on active.
func finishWorkbook(f *excelize.File, active string) error {
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return err
	}
	idx, err := f.GetSheetIndex(active)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	return nil
}
