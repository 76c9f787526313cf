package config

import (
	"strings"
	"time"
)

// HostConfig holds request settings for a single host.
type HostConfig struct {
	// Cookie is an HTTP cookie sent to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Defaults are crawl options from the configuration file. Zero values leave
// the built-in defaults in place.
type Defaults struct {
	Depth        int           `yaml:"depth,omitempty"`
	Downloaders  int           `yaml:"downloaders,omitempty"`
	Extractors   int           `yaml:"extractors,omitempty"`
	PerHost      int           `yaml:"perHost,omitempty"`
	MaxHosts     int           `yaml:"maxHosts,omitempty"`
	AllowedHosts []string      `yaml:"allowedHosts,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	UserAgent    string        `yaml:"userAgent,omitempty"`
	MaxBodySize  int64         `yaml:"maxBodySize,omitempty"`
	Proxy        string        `yaml:"proxy,omitempty"`
	RateLimit    float64       `yaml:"rateLimit,omitempty"`
}

// File represents the structure of the .webcrawler configuration file.
type File struct {
	// Defaults holds crawl options applied before CLI flags.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Hosts maps hostnames (without scheme or port) to request settings.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`
}

// NewFile returns an empty configuration file.
func NewFile() *File {
	return &File{Hosts: make(map[string]HostConfig)}
}

// HostConfig returns the settings for host. Lookup ignores case, a port and
// a URL scheme.
func (f *File) HostConfig(host string) (HostConfig, bool) {
	key := normalizeHost(host)
	for name, hc := range f.Hosts {
		if normalizeHost(name) == key {
			return hc, true
		}
	}
	return HostConfig{}, false
}

// HostConfigs returns the per-host settings keyed by normalised hostname.
// Entries with neither a cookie nor headers are omitted.
func (f *File) HostConfigs() map[string]HostConfig {
	configs := make(map[string]HostConfig, len(f.Hosts))
	for name, hc := range f.Hosts {
		if hc.Cookie == "" && len(hc.Headers) == 0 {
			continue
		}
		key := normalizeHost(name)
		if key == "" {
			continue
		}
		configs[key] = hc
	}
	return configs
}

// normalizeHost reduces "https://Example.com:8080/x" to "example.com".
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if strings.HasPrefix(host, "[") {
		if i := strings.Index(host, "]"); i >= 0 {
			return host[1:i]
		}
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && strings.Count(host, ":") == 1 {
		host = host[:i]
	}
	return host
}
