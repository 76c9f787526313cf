package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultDepth fetches only the seed page.
	DefaultDepth = 1

	// DefaultDownloaders is the number of concurrent downloads.
	DefaultDownloaders = 10

	// DefaultExtractors is the number of concurrent link extractions.
	DefaultExtractors = 10

	// DefaultPerHost is the number of concurrent downloads allowed per host.
	DefaultPerHost = 10

	// DefaultMaxHosts keeps every host queue for the process lifetime.
	DefaultMaxHosts = 0

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultGracePeriod is how long shutdown waits for in-flight work.
	DefaultGracePeriod = 60 * time.Second

	// DefaultBatchSize is the number of seeds crawled concurrently.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "webcrawler"

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "webcrawler/1.0 (+https://github.com/nao1215/webcrawler)"

	// DefaultMaxBodySize limits the response body size read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Config holds all options of a crawl run. It is populated from the
// configuration file and CLI flags, in that order.
type Config struct {
	// Depth is the number of BFS layers to crawl. 1 fetches only the seed.
	Depth int

	// Downloaders is the size of the shared download pool.
	Downloaders int

	// Extractors is the size of the shared link extraction pool.
	Extractors int

	// PerHost caps concurrent downloads per host across all seeds.
	PerHost int

	// AllowedHosts restricts the crawl to these hosts. Empty means no
	// restriction.
	AllowedHosts []string

	// MaxHosts bounds the number of tracked host queues; 0 is unbounded.
	MaxHosts int

	// GracePeriod is how long shutdown waits for in-flight work before
	// cancelling it.
	GracePeriod time.Duration

	// Timeout is the timeout for each HTTP request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// RateLimit paces requests to at most this many per second per host.
	// 0 disables pacing.
	RateLimit float64

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file. If empty, the
	// tool searches for .webcrawler in the current and home directories.
	ConfigFilePath string

	// File holds the loaded configuration file, or an empty File.
	File *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// XLSXReport selects an Excel workbook. It needs ReportFile and excludes
	// the other formats.
	XLSXReport bool

	// ReportFile is the output file path; stdout when empty.
	ReportFile string

	// SaveToDB stores finished crawls in the history database.
	SaveToDB bool

	// DBDir is the directory of the history database.
	DBDir string

	// Seeds are the URLs to crawl.
	Seeds []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Depth:       DefaultDepth,
		Downloaders: DefaultDownloaders,
		Extractors:  DefaultExtractors,
		PerHost:     DefaultPerHost,
		MaxHosts:    DefaultMaxHosts,
		GracePeriod: DefaultGracePeriod,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		BatchSize:   DefaultBatchSize,
		SaveToDB:    true,
		DBDir:       XDGDataDir(),
		File:        NewFile(),
	}
}

// ApplyFile copies the non-zero defaults of f into c and keeps f for
// per-host settings. Flags applied afterwards take precedence.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f

	d := f.Defaults
	if d.Depth > 0 {
		c.Depth = d.Depth
	}
	if d.Downloaders > 0 {
		c.Downloaders = d.Downloaders
	}
	if d.Extractors > 0 {
		c.Extractors = d.Extractors
	}
	if d.PerHost > 0 {
		c.PerHost = d.PerHost
	}
	if d.MaxHosts > 0 {
		c.MaxHosts = d.MaxHosts
	}
	if len(d.AllowedHosts) > 0 {
		c.AllowedHosts = append([]string(nil), d.AllowedHosts...)
	}
	if d.Timeout > 0 {
		c.Timeout = d.Timeout
	}
	if d.UserAgent != "" {
		c.UserAgent = d.UserAgent
	}
	if d.MaxBodySize > 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	if d.Proxy != "" {
		c.ProxyAddress = d.Proxy
	}
	if d.RateLimit > 0 {
		c.RateLimit = d.RateLimit
	}
}

// XDGDataDir returns the XDG data directory for the crawler.
// On Linux: ~/.local/share/webcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the crawler.
// On Linux: ~/.config/webcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.Depth < 0 {
		return ErrInvalidDepth
	}
	if c.Downloaders <= 0 {
		return ErrInvalidDownloaders
	}
	if c.Extractors <= 0 {
		return ErrInvalidExtractors
	}
	if c.PerHost <= 0 {
		return ErrInvalidPerHost
	}
	if c.MaxHosts < 0 {
		return ErrInvalidMaxHosts
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.GracePeriod < 0 {
		return ErrInvalidGracePeriod
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if countTrue(c.JSONReport, c.MarkdownReport, c.XLSXReport) > 1 {
		return ErrConflictingReportFormats
	}
	if c.XLSXReport && c.ReportFile == "" {
		return ErrXLSXNeedsOutput
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
