package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/report"
)

// historyTimeLayout formats timestamps in history listings.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show stored crawls",
		Long: `History lists crawls recorded in the history database.

Without arguments every stored crawl is listed, newest first. With a seed
URL only the crawls of that seed are listed.

Examples:
  # List every stored crawl
  webcrawler history

  # List the crawls of one seed
  webcrawler history https://example.com/

  # List the seeds that have been crawled
  webcrawler history --list-seeds

  # Show how one page changed across crawls
  webcrawler history --page https://example.com/about

  # Remove a stored crawl
  webcrawler history --delete 12`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-seeds", "L", false,
		"List every seed with stored crawls")
	cmd.Flags().StringP("page", "p", "",
		"Show every stored observation of this page URL")
	cmd.Flags().Int64("delete", 0,
		"Delete the stored crawl with this ID")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSeeds, err := cmd.Flags().GetBool("list-seeds")
	if err != nil {
		return err
	}
	pageURL, err := cmd.Flags().GetString("page")
	if err != nil {
		return err
	}
	deleteID, err := cmd.Flags().GetInt64("delete")
	if err != nil {
		return err
	}

	db, err := database.Open(getDBDir(cmd), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case deleteID > 0:
		return deleteCrawl(ctx, out, db, deleteID)
	case listSeeds:
		return listCrawledSeeds(ctx, out, db)
	case pageURL != "":
		return listPageHistory(ctx, out, db, pageURL)
	}

	var seed string
	if len(args) > 0 {
		seed = args[0]
	}
	return listCrawlHistory(ctx, out, db, seed)
}

// listCrawledSeeds lists every seed that has crawl records in the database.
func listCrawledSeeds(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled seeds found in the database.")
		fmt.Fprintln(out, "\nUse 'webcrawler crawl <url>' to crawl a website.")
		return nil
	}

	fmt.Fprintf(out, "Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'webcrawler history <url>' to see the crawls of a seed.")

	return nil
}

// listCrawlHistory lists stored crawls of seed, or of every seed when seed
// is empty.
func listCrawlHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string) error {
	runs, err := db.GetCrawlHistoryWithMetadata(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(runs) == 0 {
		if seed == "" {
			fmt.Fprintln(out, "No crawls found in the database.")
		} else {
			fmt.Fprintf(out, "No crawl history found for %s\n", seed)
		}
		fmt.Fprintln(out, "\nUse 'webcrawler crawl <url>' to crawl a website.")
		return nil
	}

	if seed == "" {
		fmt.Fprintf(out, "Crawl history (%d crawls):\n\n", len(runs))
	} else {
		fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", seed, len(runs))
	}
	fmt.Fprintf(out, "  %-6s  %-19s  %-10s  %-10s  %-6s  %s\n",
		"ID", "Date", "Elapsed", "Downloaded", "Failed", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))

	for _, run := range runs {
		seedText := run.Seed
		if run.Partial {
			seedText += " (partial)"
		}
		fmt.Fprintf(out, "  %-6d  %-19s  %-10s  %-10d  %-6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(historyTimeLayout),
			run.Elapsed.String(),
			run.Downloaded,
			run.Failed,
			seedText,
		)
	}

	fmt.Fprintln(out, "\nUse 'webcrawler compare <url>' to compare the latest two crawls.")
	fmt.Fprintln(out, "Use 'webcrawler compare --with-id <id> <url>' to compare with a specific crawl.")

	return nil
}

// listPageHistory lists every stored observation of pageURL.
func listPageHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, pageURL string) error {
	records, err := db.GetPageHistory(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to get page history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No stored crawl has seen %s\n", pageURL)
		return nil
	}

	fmt.Fprintf(out, "History of %s (%d observations):\n\n", pageURL, len(records))
	fmt.Fprintf(out, "  %-6s  %-19s  %-6s  %s\n", "Crawl", "Date", "Status", "Detail")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))

	for _, r := range records {
		date := r.StartedAt.Local().Format(historyTimeLayout)
		if r.Failure != nil {
			fmt.Fprintf(out, "  %-6d  %-19s  %-6s  %s: %s\n",
				r.RunID, date, "failed", report.KindLabel(r.Failure.Kind), r.Failure.Message)
			continue
		}
		p := r.Page
		detail := fmt.Sprintf("%d bytes", p.Size)
		if p.Title != "" {
			detail = fmt.Sprintf("%q, %s", p.Title, detail)
		}
		if p.Redirected() {
			detail += " -> " + p.FinalURL
		}
		fmt.Fprintf(out, "  %-6d  %-19s  %-6d  %s\n", r.RunID, date, p.StatusCode, detail)
	}

	return nil
}

// deleteCrawl removes a stored crawl.
func deleteCrawl(ctx context.Context, out io.Writer, db *database.CrawlDB, id int64) error {
	deleted, err := db.DeleteCrawlReport(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete crawl %d: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("crawl with ID %d not found", id)
	}
	fmt.Fprintf(out, "Deleted crawl %d\n", id)
	return nil
}
