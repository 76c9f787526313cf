package crawler

import (
	"net/url"
	"sort"
	"strings"
)

// Scope decides whether a URL is eligible for crawling.
// An empty Scope admits every URL with a derivable host.
type Scope struct {
	hosts map[string]struct{}
}

// NewScope builds a Scope from an allow-list of hosts.
// Entries may be bare hosts ("example.com", "example.com:8080") or absolute
// URLs, which are reduced to their hostname. Entries without a derivable host
// are ignored.
func NewScope(allowed []string) *Scope {
	s := &Scope{hosts: make(map[string]struct{}, len(allowed))}
	for _, entry := range allowed {
		if host := scopeEntryHost(entry); host != "" {
			s.hosts[host] = struct{}{}
		}
	}
	return s
}

// scopeEntryHost extracts the hostname from an allow-list entry.
func scopeEntryHost(entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}
	if !strings.Contains(entry, "://") {
		entry = "//" + entry
	}
	u, err := url.Parse(entry)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// InScope reports whether rawURL may be crawled.
// The hostname must match an allowed host exactly; subdomains do not match.
// URLs whose host cannot be derived are never in scope.
func (s *Scope) InScope(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return s.allows(host)
}

// allows reports whether host passes the allow-list.
func (s *Scope) allows(host string) bool {
	if len(s.hosts) == 0 {
		return true
	}
	_, ok := s.hosts[host]
	return ok
}

// Unrestricted reports whether the Scope has no allow-list.
func (s *Scope) Unrestricted() bool {
	return len(s.hosts) == 0
}

// Hosts returns the allowed hosts in sorted order.
func (s *Scope) Hosts() []string {
	hosts := make([]string, 0, len(s.hosts))
	for h := range s.hosts {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// hostOf derives the host a crawl target is admitted under.
// The port is not part of the host, so example.com:80 and example.com:8080
// share one admission queue.
func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &MalformedURLError{URL: rawURL, Reason: "cannot parse", Err: err}
	}
	if u.Scheme == "" {
		return "", &MalformedURLError{URL: rawURL, Reason: "missing scheme"}
	}
	host := u.Hostname()
	if host == "" {
		return "", &MalformedURLError{URL: rawURL, Reason: "missing host"}
	}
	return host, nil
}
