// Package main provides the entry point for the webcrawler CLI.
//
// webcrawler downloads websites breadth-first from one or more seed URLs,
// bounding concurrency per host and across all downloads, and keeps a
// history of every crawl for later comparison.
//
// Usage:
//
//	webcrawler crawl <url>...
//	webcrawler history [url]
//	webcrawler compare <url>
//
// See --help for all available options.
package main

// main is the entry point for webcrawler.
func main() {
	Execute()
}
