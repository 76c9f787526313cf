// Package report writes crawl reports and crawl comparisons.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - FullJSONWriter: JSON wrapped with version and summary metadata
//   - MarkdownWriter: Markdown with tables and a Mermaid failure chart
//   - XLSXWriter: Excel workbook with crawl, page and failure sheets
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
