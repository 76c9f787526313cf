package model

// Page summarises one downloaded page. The body itself is not kept.
type Page struct {
	// URL is the address the crawler requested.
	URL string `json:"url"`

	// FinalURL is the address after redirects.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the value of the Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// Title is the HTML title, empty for other content.
	Title string `json:"title,omitempty"`

	// Size is the number of body bytes read.
	Size int64 `json:"size"`

	// Hash is the hex SHA3-256 digest of the body. Two crawls of a URL with
	// the same hash saw the same content.
	Hash string `json:"hash"`

	// Truncated is set when the body was cut at the size limit.
	Truncated bool `json:"truncated,omitempty"`
}

// Redirected reports whether the page was served from a different URL than
// requested.
func (p Page) Redirected() bool {
	return p.FinalURL != "" && p.FinalURL != p.URL
}
