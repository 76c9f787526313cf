package model

import (
	"net/url"
	"sort"
	"time"

	"github.com/nao1215/webcrawler/internal/crawler"
)

// CrawlReport is the record of one crawl from a single seed.
type CrawlReport struct {
	// ID is the database identifier, zero until the report is stored.
	ID int64 `json:"id,omitempty"`

	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// Depth is the number of layers requested.
	Depth int `json:"depth"`

	// AllowedHosts is the host allow-list, empty for an unrestricted crawl.
	AllowedHosts []string `json:"allowed_hosts,omitempty"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is how long the crawl took.
	Elapsed time.Duration `json:"elapsed"`

	// Partial is set when the crawl was interrupted before finishing.
	Partial bool `json:"partial"`

	// Downloaded lists the URLs fetched successfully, sorted.
	Downloaded []string `json:"downloaded"`

	// Failures lists the URLs that failed, sorted by URL.
	Failures []Failure `json:"failures,omitempty"`

	// Pages holds page summaries for downloaded URLs, when recorded.
	Pages []Page `json:"pages,omitempty"`
}

// Failure is a URL that failed during a crawl.
type Failure struct {
	URL     string    `json:"url"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewCrawlReport builds a report from an engine result.
func NewCrawlReport(seed string, depth int, allowedHosts []string, startedAt time.Time, elapsed time.Duration, result *crawler.Result) *CrawlReport {
	r := &CrawlReport{
		Seed:       seed,
		Depth:      depth,
		StartedAt:  startedAt,
		Elapsed:    elapsed,
		Downloaded: make([]string, 0),
		Failures:   make([]Failure, 0),
	}
	if len(allowedHosts) > 0 {
		r.AllowedHosts = make([]string, len(allowedHosts))
		copy(r.AllowedHosts, allowedHosts)
		sort.Strings(r.AllowedHosts)
	}
	if result == nil {
		return r
	}

	r.Partial = result.Partial
	r.Downloaded = result.SortedDownloaded()
	for u, err := range result.Errors {
		r.Failures = append(r.Failures, Failure{
			URL:     u,
			Kind:    ClassifyError(err),
			Message: err.Error(),
		})
	}
	r.SortFailures()
	return r
}

// SortFailures orders Failures by URL.
func (r *CrawlReport) SortFailures() {
	sort.Slice(r.Failures, func(i, j int) bool {
		return r.Failures[i].URL < r.Failures[j].URL
	})
}

// Failure returns the failure recorded for u.
func (r *CrawlReport) Failure(u string) (Failure, bool) {
	for _, f := range r.Failures {
		if f.URL == u {
			return f, true
		}
	}
	return Failure{}, false
}

// Page returns the page summary recorded for u.
func (r *CrawlReport) Page(u string) (Page, bool) {
	for _, p := range r.Pages {
		if p.URL == u {
			return p, true
		}
	}
	return Page{}, false
}

// FailureCounts returns the number of failures per kind.
func (r *CrawlReport) FailureCounts() map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// HostCount is the number of URLs downloaded from one host.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// HostCounts returns the downloads per host, busiest first.
func (r *CrawlReport) HostCounts() []HostCount {
	counts := make(map[string]int)
	for _, d := range r.Downloaded {
		u, err := url.Parse(d)
		if err != nil || u.Hostname() == "" {
			continue
		}
		counts[u.Hostname()]++
	}

	hosts := make([]HostCount, 0, len(counts))
	for h, c := range counts {
		hosts = append(hosts, HostCount{Host: h, Count: c})
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].Count != hosts[j].Count {
			return hosts[i].Count > hosts[j].Count
		}
		return hosts[i].Host < hosts[j].Host
	})
	return hosts
}

// TotalBytes returns the sum of recorded page sizes.
func (r *CrawlReport) TotalBytes() int64 {
	var total int64
	for _, p := range r.Pages {
		total += p.Size
	}
	return total
}
