package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/crawler"
	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/fetch"
	"github.com/nao1215/webcrawler/internal/model"
	"github.com/nao1215/webcrawler/internal/pipeline"
	"github.com/nao1215/webcrawler/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Crawl websites breadth-first from seed URLs",
		Long: `Crawl downloads every page reachable from each seed URL, one
breadth-first layer at a time, up to the requested depth.

All seeds share the same download pool, extraction pool and per-host
limit, so crawling several seeds on one host never exceeds --per-host
concurrent downloads to that host.

Examples:
  # Download only the seed page
  webcrawler crawl https://example.com/

  # Follow links three layers deep, staying on two hosts
  webcrawler crawl -d 3 --host example.com --host docs.example.com https://example.com/

  # Crawl several seeds and write a Markdown report
  webcrawler crawl -m -o report.md https://example.com/ https://example.org/

  # Export several crawls to one Excel workbook, at most 2 requests/s per host
  webcrawler crawl --xlsx -o crawls.xlsx --rate 2 https://example.com/ https://example.org/

  # Crawl without recording the run in the history database
  webcrawler crawl --no-save https://example.com/

Configuration file (.webcrawler) example:
  defaults:
    depth: 2
    perHost: 4
  hosts:
    example.com:
      cookie: "session=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Number of breadth-first layers to crawl (1 downloads only the seed)")
	cmd.Flags().Int("downloaders", config.DefaultDownloaders,
		"Size of the shared download pool")
	cmd.Flags().Int("extractors", config.DefaultExtractors,
		"Size of the shared link extraction pool")
	cmd.Flags().Int("per-host", config.DefaultPerHost,
		"Concurrent downloads allowed per host")
	cmd.Flags().StringArrayP("host", "H", nil,
		"Restrict the crawl to this host (repeatable)")
	cmd.Flags().Int("max-hosts", config.DefaultMaxHosts,
		"Maximum number of tracked host queues (0 is unbounded)")
	cmd.Flags().Duration("grace-period", config.DefaultGracePeriod,
		"How long shutdown waits for in-flight downloads")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// HTTP flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Largest response body read per page, in bytes")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second to each host (0 is unlimited)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcrawler in current, XDG config or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("xlsx", false,
		"Write an Excel workbook of all crawls (requires --output)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false,
		"Do not record the crawl in the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger)
}

// buildConfig creates a Config from the configuration file and the flags.
// Only flags set on the command line override values from the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path must exist; otherwise a missing file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if flags.Changed("depth") {
		if cfg.Depth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("downloaders") {
		if cfg.Downloaders, err = flags.GetInt("downloaders"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("extractors") {
		if cfg.Extractors, err = flags.GetInt("extractors"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("per-host") {
		if cfg.PerHost, err = flags.GetInt("per-host"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("host") {
		if cfg.AllowedHosts, err = flags.GetStringArray("host"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-hosts") {
		if cfg.MaxHosts, err = flags.GetInt("max-hosts"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("grace-period") {
		if cfg.GracePeriod, err = flags.GetDuration("grace-period"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rate") {
		if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.XLSXReport, err = flags.GetBool("xlsx"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir = getDBDir(cmd)
	cfg.Verbose = getPersistentBool(cmd, "verbose")

	cfg.Seeds = args

	return cfg, nil
}

// newDownloader creates the HTTP client for cfg, wrapped in a Recorder so
// page summaries can be attached to reports.
func newDownloader(cfg *config.Config, logger *slog.Logger) (*fetch.Recorder, error) {
	hosts := make(map[string]fetch.HostSettings)
	for host, hc := range cfg.File.HostConfigs() {
		hosts[host] = fetch.HostSettings{
			Cookie:  hc.Cookie,
			Headers: hc.Headers,
		}
	}

	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithHostSettings(hosts),
		fetch.WithHostRateLimit(cfg.RateLimit),
		fetch.WithLogger(logger),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, fetch.WithProxy(cfg.ProxyAddress))
	}

	client, err := fetch.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return fetch.NewRecorder(client), nil
}

// runCrawl crawls every seed of cfg and writes one report per seed.
func runCrawl(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"depth", cfg.Depth,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	recorder, err := newDownloader(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := crawler.New(recorder, cfg.Downloaders, cfg.Extractors, cfg.PerHost,
		crawler.WithLogger(logger),
		crawler.WithGracePeriod(cfg.GracePeriod),
		crawler.WithMaxHosts(cfg.MaxHosts),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}
	defer engine.Close()

	var store pipeline.ReportStore
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		store = db
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutputFile(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(pipeline.DefaultPipelineConfig{
				Crawler:      engine,
				Depth:        cfg.Depth,
				AllowedHosts: cfg.AllowedHosts,
				Pages:        recorder,
				Store:        store,
			}, pipeline.WithLogger(logger))
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	writer := newReportWriter(cfg, output)
	startTime := time.Now()

	var (
		mu      sync.Mutex
		outErrs []error
		partial bool
	)
	err = bp.ProcessBatchWithCallback(ctx, cfg.Seeds, func(r *model.CrawlReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(stderr, "[%d/%d] Crawl completed: %s (%d downloaded, %d failed)\n",
			index+1, len(cfg.Seeds), r.Seed, len(r.Downloaded), len(r.Failures))

		if r.Partial {
			partial = true
		}
		if _, err := writer.Write(r); err != nil {
			logger.Error("report failed", "seed", r.Seed, "error", err)
			outErrs = append(outErrs, fmt.Errorf("failed to write report for %s: %w", r.Seed, err))
		}
	})

	if f, ok := writer.(report.Flusher); ok {
		if ferr := f.Flush(); ferr != nil {
			outErrs = append(outErrs, fmt.Errorf("failed to write report: %w", ferr))
		}
	}

	fmt.Fprintf(stderr, "Crawl finished in %s\n", time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	if partial && ctx.Err() != nil {
		outErrs = append(outErrs, fmt.Errorf("crawl interrupted: %w", ctx.Err()))
	}
	return errors.Join(outErrs...)
}

// openOutputFile opens the report destination: path, or stdout when path
// is empty.
func openOutputFile(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain URLs with tokens, so only the owner may read them.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // best effort on exit
}

// newReportWriter selects the report writer for cfg.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	case cfg.XLSXReport:
		return report.NewXLSXWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
