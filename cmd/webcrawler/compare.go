package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/model"
	"github.com/nao1215/webcrawler/internal/report"
)

// sinceDateLayout is the format accepted by --since.
const sinceDateLayout = "2006-01-02"

// errNotEnoughCrawls is returned when a seed has fewer than two stored crawls.
var errNotEnoughCrawls = errors.New("at least 2 crawls are required for comparison")

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Compare the latest crawl of a seed with an earlier one",
		Long: `Compare shows what changed between two stored crawls of the same seed:
- Pages that appeared or disappeared
- Pages whose content changed
- URLs that started failing or recovered

By default the latest crawl is compared with the one before it. Use
'webcrawler history <url>' to see the stored crawls and their IDs.

Examples:
  # Compare the latest two crawls
  webcrawler compare https://example.com/

  # Compare with a specific crawl
  webcrawler compare --with-id 5 https://example.com/

  # Compare with the first crawl since a date
  webcrawler compare --since 2026-01-01 https://example.com/

  # Output the comparison as JSON
  webcrawler compare --json https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	// Comparison target flags
	cmd.Flags().Int64P("with-id", "i", 0,
		"Compare with a specific crawl by ID (see 'webcrawler history')")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first crawl on or after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().Bool("xlsx", false,
		"Write comparison result as an Excel workbook (requires --output)")
	cmd.Flags().StringP("output", "o", "",
		"Write comparison result to specified file path")

	return cmd
}

// compareOptions selects the crawls to compare and the output format.
type compareOptions struct {
	withID   int64
	since    string
	json     bool
	markdown bool
	xlsx     bool
	output   string
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	var (
		opts compareOptions
		err  error
	)
	if opts.withID, err = cmd.Flags().GetInt64("with-id"); err != nil {
		return err
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.xlsx, err = cmd.Flags().GetBool("xlsx"); err != nil {
		return err
	}
	if opts.output, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}

	// Validate before opening the database.
	if countSet(opts.json, opts.markdown, opts.xlsx) > 1 {
		return errors.New("only one of --json, --markdown and --xlsx can be used")
	}
	if opts.xlsx && opts.output == "" {
		return errors.New("--xlsx requires --output")
	}
	if opts.withID > 0 && opts.since != "" {
		return errors.New("--with-id and --since cannot be used together")
	}

	db, err := database.Open(getDBDir(cmd), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	out, closeOutput, err := openOutputFile(opts.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	return runComparison(cmd.Context(), out, db, args[0], opts)
}

func countSet(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

// runComparison compares the latest crawl of seed with the crawl selected
// by opts and writes the difference.
func runComparison(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string, opts compareOptions) error {
	current, previous, err := selectCrawls(ctx, db, seed, opts)
	if err != nil {
		return err
	}

	diff := model.Compare(previous, current)

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	case opts.xlsx:
		w = report.NewXLSXWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}
	if _, err := w.WriteDiff(diff); err != nil {
		return fmt.Errorf("failed to write comparison: %w", err)
	}
	return nil
}

// selectCrawls returns the latest crawl of seed and the crawl to compare
// it with.
func selectCrawls(ctx context.Context, db *database.CrawlDB, seed string, opts compareOptions) (current, previous *model.CrawlReport, err error) {
	reports, err := db.GetCrawlHistory(ctx, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(reports) == 0 {
		return nil, nil, fmt.Errorf("no crawl history found for %s", seed)
	}

	// History is sorted newest first.
	current = reports[0]

	switch {
	case opts.withID > 0:
		previous, err = db.GetCrawlReportByID(ctx, opts.withID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get crawl with ID %d: %w", opts.withID, err)
		}
		if previous == nil {
			return nil, nil, fmt.Errorf("crawl with ID %d not found", opts.withID)
		}
		if previous.Seed != seed {
			return nil, nil, fmt.Errorf("crawl ID %d belongs to %s, not %s", opts.withID, previous.Seed, seed)
		}
		if previous.ID == current.ID {
			return nil, nil, fmt.Errorf("crawl ID %d is the latest crawl; choose an earlier one", opts.withID)
		}

	case opts.since != "":
		since, err := time.ParseInLocation(sinceDateLayout, opts.since, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Walk from the oldest crawl to find the first one on or after since.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].StartedAt.Before(since) {
				previous = reports[i]
				break
			}
		}
		if previous == nil {
			return nil, nil, fmt.Errorf("no crawls found since %s", opts.since)
		}
		if previous == current {
			return nil, nil, fmt.Errorf("only one crawl found since %s: %w", opts.since, errNotEnoughCrawls)
		}

	default:
		if len(reports) < 2 {
			return nil, nil, fmt.Errorf("%w (found %d)", errNotEnoughCrawls, len(reports))
		}
		previous = reports[1]
	}

	return current, previous, nil
}
