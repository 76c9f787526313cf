package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/webcrawler/internal/crawler"
)

const (
	// DefaultTimeout bounds a single request including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "webcrawler/1.0 (+https://github.com/nao1215/webcrawler)"

	// DefaultMaxBodySize is the largest body read from a response.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// maxRedirects is the number of redirects followed per request.
	maxRedirects = 10

	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// HostSettings are request settings applied to every request for one host.
type HostSettings struct {
	// Cookie is a raw cookie string such as "session=abc; lang=en".
	Cookie string

	// Headers are set on every request, replacing existing values.
	Headers map[string]string
}

// Client downloads pages over HTTP. It implements crawler.Downloader and is
// safe for concurrent use.
type Client struct {
	http *http.Client

	timeout      time.Duration
	userAgent    string
	maxBodySize  int64
	proxyAddress string
	hosts        map[string]HostSettings
	ratePerHost  float64
	limiter      *hostLimiter
	logger       *slog.Logger
}

var _ crawler.Downloader = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per response.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		c.maxBodySize = size
	}
}

// WithProxy routes every connection through the SOCKS5 proxy at address
// ("host:port").
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithHostSettings sets per-host request settings, keyed by hostname.
func WithHostSettings(hosts map[string]HostSettings) Option {
	return func(c *Client) {
		c.hosts = hosts
	}
}

// WithHostRateLimit paces requests to perSecond per host. Zero disables
// pacing.
func WithHostRateLimit(perSecond float64) Option {
	return func(c *Client) {
		c.ratePerHost = perSecond
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an HTTP client. It does not contact the proxy.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.maxBodySize <= 0 {
		return nil, ErrInvalidBodySize
	}
	if c.ratePerHost < 0 {
		return nil, ErrInvalidRateLimit
	}
	c.limiter = newHostLimiter(c.ratePerHost)

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
		transport.DialContext = (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var rt http.RoundTripper = transport
	if len(c.hosts) > 0 {
		hosts := make(map[string]HostSettings, len(c.hosts))
		for host, settings := range c.hosts {
			hosts[strings.ToLower(host)] = settings
		}
		rt = &hostSettingsTransport{base: transport, hosts: hosts}
	}

	c.http = &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return c, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// Download fetches rawURL and returns it as a crawler.Document.
func (c *Client) Download(ctx context.Context, rawURL string) (crawler.Document, error) {
	page, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Fetch performs a GET request for rawURL. Responses with a status of 400 or
// above are returned as *StatusError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	if err := c.limiter.Wait(ctx, req.URL.Hostname()); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	truncated := int64(len(body)) > c.maxBodySize
	if truncated {
		body = body[:c.maxBodySize]
		c.logger.Debug("response body truncated", "url", rawURL, "limit", c.maxBodySize)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// ProxyAddress returns the configured SOCKS5 proxy, or "" for direct
// connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// hostSettingsTransport injects per-host headers and cookies into every
// request, redirects included.
type hostSettingsTransport struct {
	base  http.RoundTripper
	hosts map[string]HostSettings
}

// RoundTrip implements http.RoundTripper.
func (t *hostSettingsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	settings, ok := t.hosts[strings.ToLower(req.URL.Hostname())]
	if !ok {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())

	if settings.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+settings.Cookie)
		} else {
			clone.Header.Set("Cookie", settings.Cookie)
		}
	}
	for key, value := range settings.Headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
