// Package crawler provides a concurrent breadth-first web crawling engine.
//
// # Architecture
//
// An Engine owns two bounded worker pools, one for downloads and one for link
// extraction, and a registry of per-host admission queues. Every call to
// Engine.Download creates a private session that walks the link graph layer
// by layer:
//
//	seed ──download──▶ layer 1 ──extract──▶ links ──download──▶ layer 2 ...
//
// A layer is fully resolved (every download succeeded or failed, every link
// discovered from it was scheduled) before the next one begins.
//
// # Components
//
//   - Scope: host allow-list check for crawl targets
//   - hostQueue: per-host FIFO admission with a fixed concurrency cap
//   - registry: lazy host → queue mapping shared by all sessions
//   - session: visited/downloaded/error state of one crawl
//   - Engine: composes the above and owns the pools
//
// # Per-host limits
//
// The per-host cap is enforced across every session that shares an engine, so
// two concurrent crawls of the same site never exceed perHost requests to it
// together. Queues are created lazily and, by default, kept for the engine's
// lifetime; WithMaxHosts bounds the registry by evicting idle queues.
//
// # Errors
//
// Per-URL failures never abort a crawl. They are collected in Result.Errors as
// *MalformedURLError, *FetchError or *ExtractionError values, or ErrEngineClosed
// when work was refused during shutdown.
//
// # Usage
//
//	engine, err := crawler.New(downloader, 10, 10, 10)
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	result, err := engine.Download(ctx, "https://example.com/", 2)
package crawler
