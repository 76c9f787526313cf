// Package database provides SQLite-based storage for crawl history.
//
// The CrawlDB stores:
//   - one row per crawl run with the complete report as JSON
//   - the page summaries of each run, indexed by URL
//   - the failures of each run, indexed by URL
//
// Reports are looked up by seed to list a seed's history and to compare
// the latest crawl with an earlier one. The per-URL tables let a single
// page be followed across runs.
//
// The database is a single file opened through modernc.org/sqlite, a
// CGO-free driver, in WAL mode.
package database
