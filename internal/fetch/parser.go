package fetch

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts the title and outbound links of an HTML page.
type Parser struct {
	// baseURL resolves relative references. A <base href> element in the
	// document replaces it for the rest of the parse.
	baseURL *url.URL
}

// ParseResult holds what a single parse pass extracted.
type ParseResult struct {
	// Title is the text of the first <title> element.
	Title string

	// Links are absolute http and https URLs in document order, without
	// fragments and without duplicates.
	Links []string
}

// linkAttributes maps the elements followed by the crawler to the attribute
// holding the target.
var linkAttributes = map[string]string{
	"a":      "href",
	"area":   "href",
	"frame":  "src",
	"iframe": "src",
}

// NewParser creates a parser resolving relative links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads HTML from content and extracts the title and links.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Links: make([]string, 0)}
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result, seen)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles a single element node.
func (p *Parser) processElement(n *html.Node, result *ParseResult, seen map[string]struct{}) {
	switch n.Data {
	case "title":
		if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}
		return
	case "base":
		if href := getAttr(n, "href"); href != "" {
			if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
				p.baseURL = p.baseURL.ResolveReference(u)
			}
		}
		return
	}

	attr, ok := linkAttributes[n.Data]
	if !ok {
		return
	}

	resolved := p.resolveURL(getAttr(n, attr))
	if resolved == "" {
		return
	}
	if _, dup := seen[resolved]; dup {
		return
	}
	seen[resolved] = struct{}{}
	result.Links = append(result.Links, resolved)
}

// resolveURL resolves href against the base URL. It returns "" for empty
// references, fragment-only references and non-HTTP schemes.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
