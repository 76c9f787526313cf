package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webcrawler/internal/model"
)

// DefaultFileName is the name of the database file inside the data directory.
const DefaultFileName = "webcrawler.db"

// storedTimeFormat has a fixed width so stored timestamps sort as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// CrawlDB provides SQLite-based storage for crawl reports.
//
// Every saved report becomes one row in crawl_runs holding the full report
// as JSON. Page summaries and failures are also stored in their own tables
// so a single URL can be followed across runs without decoding reports.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DefaultFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		partial INTEGER NOT NULL DEFAULT 0,
		downloaded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	CREATE TABLE IF NOT EXISTS crawl_pages (
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		final_url TEXT,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		size INTEGER,
		hash TEXT,
		PRIMARY KEY (run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON crawl_pages(url);

	CREATE TABLE IF NOT EXISTS crawl_failures (
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT,
		PRIMARY KEY (run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_failures_url ON crawl_failures(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlReport stores report and sets its ID.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (seed, started_at, elapsed_ms, partial, downloaded, failed, report_json)
	VALUES (?, ?, ?, ?, ?, ?, '{}')
	`,
		report.Seed,
		report.StartedAt.UTC().Format(storedTimeFormat),
		report.Elapsed.Milliseconds(),
		report.Partial,
		len(report.Downloaded),
		len(report.Failures),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read crawl run id: %w", err)
	}

	// The stored JSON carries its own ID so reports read back are complete.
	report.ID = id
	reportJSON, err := json.Marshal(report)
	if err != nil {
		report.ID = 0
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE crawl_runs SET report_json = ? WHERE id = ?`, string(reportJSON), id); err != nil {
		report.ID = 0
		return fmt.Errorf("failed to save report: %w", err)
	}

	for _, page := range report.Pages {
		_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO crawl_pages (run_id, url, final_url, status_code, content_type, title, size, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, page.URL, page.FinalURL, page.StatusCode, page.ContentType, page.Title, page.Size, page.Hash)
		if err != nil {
			report.ID = 0
			return fmt.Errorf("failed to save page %s: %w", page.URL, err)
		}
	}

	for _, failure := range report.Failures {
		_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO crawl_failures (run_id, url, kind, message)
		VALUES (?, ?, ?, ?)
		`, id, failure.URL, failure.Kind.String(), failure.Message)
		if err != nil {
			report.ID = 0
			return fmt.Errorf("failed to save failure %s: %w", failure.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		report.ID = 0
		return fmt.Errorf("failed to commit crawl report: %w", err)
	}
	return nil
}

// GetLatestCrawlReport retrieves the most recent report for seed.
// It returns nil without error when seed was never crawled.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, seed string) (*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_runs
	WHERE seed = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`
	return cdb.queryReport(ctx, query, seed)
}

// GetCrawlReportByID retrieves a report by its database ID.
// It returns nil without error when no such report exists.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	return cdb.queryReport(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, id)
}

func (cdb *CrawlDB) queryReport(ctx context.Context, query string, args ...any) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetCrawlHistory retrieves all reports for seed, newest first.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, seed string) ([]*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_runs
	WHERE seed = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var reports []*model.CrawlReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.CrawlReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// CrawlRunMetadata summarises a stored crawl without loading the full report.
type CrawlRunMetadata struct {
	ID         int64
	Seed       string
	StartedAt  time.Time
	Elapsed    time.Duration
	Partial    bool
	Downloaded int
	Failed     int
}

// GetCrawlHistoryWithMetadata retrieves run metadata for seed, newest first.
// An empty seed lists the runs of every seed.
func (cdb *CrawlDB) GetCrawlHistoryWithMetadata(ctx context.Context, seed string) ([]CrawlRunMetadata, error) {
	query := `
	SELECT id, seed, started_at, elapsed_ms, partial, downloaded, failed
	FROM crawl_runs
	`
	args := make([]any, 0, 1)
	if seed != "" {
		query += " WHERE seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlRunMetadata
	for rows.Next() {
		var meta CrawlRunMetadata
		var startedAt string
		var elapsedMS int64

		if err := rows.Scan(&meta.ID, &meta.Seed, &startedAt, &elapsedMS, &meta.Partial, &meta.Downloaded, &meta.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListSeeds returns every seed with at least one stored crawl, sorted.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawl_runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// PageRecord is one observation of a URL in a stored crawl.
type PageRecord struct {
	RunID     int64
	StartedAt time.Time

	// Page is set when the URL was downloaded in that run.
	Page *model.Page

	// Failure is set when the URL failed in that run.
	Failure *model.Failure
}

// GetPageHistory returns every stored observation of u, newest first.
func (cdb *CrawlDB) GetPageHistory(ctx context.Context, u string) ([]PageRecord, error) {
	query := `
	SELECT r.id, r.started_at, p.final_url, p.status_code, p.content_type, p.title, p.size, p.hash, NULL, NULL
	FROM crawl_pages p JOIN crawl_runs r ON r.id = p.run_id
	WHERE p.url = ?
	UNION ALL
	SELECT r.id, r.started_at, NULL, NULL, NULL, NULL, NULL, NULL, f.kind, f.message
	FROM crawl_failures f JOIN crawl_runs r ON r.id = f.run_id
	WHERE f.url = ?
	ORDER BY 2 DESC, 1 DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, u, u)
	if err != nil {
		return nil, fmt.Errorf("failed to get page history: %w", err)
	}
	defer rows.Close()

	var records []PageRecord
	for rows.Next() {
		var (
			record                       PageRecord
			startedAt                    string
			finalURL, contentType, title sql.NullString
			hash, kind, message          sql.NullString
			statusCode, size             sql.NullInt64
		)
		if err := rows.Scan(&record.RunID, &startedAt, &finalURL, &statusCode, &contentType, &title, &size, &hash, &kind, &message); err != nil {
			return nil, fmt.Errorf("failed to scan page record: %w", err)
		}
		record.StartedAt = parseTimestamp(startedAt)

		if kind.Valid {
			record.Failure = &model.Failure{URL: u, Kind: model.ParseErrorKind(kind.String), Message: message.String}
		} else {
			record.Page = &model.Page{
				URL:         u,
				FinalURL:    finalURL.String,
				StatusCode:  int(statusCode.Int64),
				ContentType: contentType.String,
				Title:       title.String,
				Size:        size.Int64,
				Hash:        hash.String,
			}
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// DeleteCrawlReport removes a stored report with its pages and failures.
// It reports whether a report was deleted.
func (cdb *CrawlDB) DeleteCrawlReport(ctx context.Context, id int64) (deleted bool, err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"crawl_pages", "crawl_failures"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return false, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete crawl run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete crawl run: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n > 0, nil
}

// timestampFormats contains the timestamp formats that may be stored.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
