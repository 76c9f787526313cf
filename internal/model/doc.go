// Package model defines the data structures shared by the crawler's outer
// layers: reports, storage and the CLI.
//
// This package contains the following main types:
//   - CrawlReport: the persistent record of one crawl
//   - Failure and ErrorKind: a serialisable form of per-URL crawl errors
//   - Page: a summary of one downloaded page
//   - CrawlDiff: the difference between two crawls of the same seed
//
// The models are serialisable to JSON for report output and database
// storage.
package model
