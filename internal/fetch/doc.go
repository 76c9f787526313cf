// Package fetch provides the HTTP implementation of the crawler's Downloader
// and Document.
//
// A Client issues GET requests with a shared cookie jar, an optional SOCKS5
// proxy and per-host headers and cookies taken from the configuration file.
// Each response becomes a Page whose outbound links are extracted from its
// HTML with golang.org/x/net/html.
//
// Responses with a status of 400 or above are failures (*StatusError). Bodies
// larger than the configured limit are truncated, and links are extracted
// from the truncated content.
package fetch
