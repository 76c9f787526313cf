package fetch

import (
	"bytes"
	"encoding/hex"
	"mime"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/webcrawler/internal/model"
)

// Page is a fetched HTTP response. It implements crawler.Document.
type Page struct {
	// URL is the address that was requested.
	URL string

	// FinalURL is the address after redirects. Relative links resolve
	// against it.
	FinalURL string

	StatusCode  int
	ContentType string
	Header      http.Header

	// Body is the response body, at most the client's maximum body size.
	Body []byte

	// Truncated is set when the body exceeded the maximum size.
	Truncated bool

	parseOnce sync.Once
	parsed    *ParseResult
	parseErr  error
}

// IsHTML reports whether the page holds an HTML document. Without a
// Content-Type header the body is sniffed.
func (p *Page) IsHTML() bool {
	contentType := p.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(p.Body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// ExtractLinks returns the absolute http and https links of the page.
// Non-HTML pages have no links.
func (p *Page) ExtractLinks() ([]string, error) {
	if !p.IsHTML() {
		return nil, nil
	}
	result, err := p.parse()
	if err != nil {
		return nil, err
	}
	return result.Links, nil
}

// Title returns the page title, or "" for non-HTML pages.
func (p *Page) Title() string {
	if !p.IsHTML() {
		return ""
	}
	result, err := p.parse()
	if err != nil {
		return ""
	}
	return result.Title
}

// parse runs the HTML parser once per page.
func (p *Page) parse() (*ParseResult, error) {
	p.parseOnce.Do(func() {
		base := p.FinalURL
		if base == "" {
			base = p.URL
		}
		parser, err := NewParser(base)
		if err != nil {
			p.parseErr = err
			return
		}
		p.parsed, p.parseErr = parser.Parse(bytes.NewReader(p.Body))
	})
	return p.parsed, p.parseErr
}

// Fingerprint returns the hex SHA3-256 digest of the body.
func (p *Page) Fingerprint() string {
	sum := sha3.Sum256(p.Body)
	return hex.EncodeToString(sum[:])
}

// Summary returns the persistent description of the page.
func (p *Page) Summary() model.Page {
	return model.Page{
		URL:         p.URL,
		FinalURL:    p.FinalURL,
		StatusCode:  p.StatusCode,
		ContentType: p.ContentType,
		Title:       p.Title(),
		Size:        int64(len(p.Body)),
		Hash:        p.Fingerprint(),
		Truncated:   p.Truncated,
	}
}
