package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxBodyBytes caps response bodies when Client.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// Request describes a single GET.
type Request struct {
	URL    string
	Header http.Header
	// Timeout bounds this request only. Zero means no per-request deadline
	// beyond the caller's context.
	Timeout time.Duration
	// Proxy is an optional proxy address, either a URL (http, https, socks5)
	// or a bare host:port treated as an HTTP proxy.
	Proxy string
}

// Response is whatever the server answered. Non-2xx statuses are not errors.
type Response struct {
	StatusCode int
	Body       []byte
}

// Fetcher is the network capability consumed by rank providers.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Client wraps http.Client with per-request timeouts, optional proxies and a
// cap on concurrent requests. It never retries.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes truncates bodies beyond this size. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int

	limiter     *semaphore.Weighted
	limiterOnce sync.Once

	mu      sync.Mutex
	clients map[string]*http.Client
}

// Fetch issues a GET and returns status and body. Transport failures,
// cancellation and timeouts come back as errors.
func (c *Client) Fetch(ctx context.Context, r Request) (Response, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return Response{}, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return Response{}, fmt.Errorf("unsupported URL scheme: %q", r.URL)
	}
	hc, err := c.clientFor(r.Proxy)
	if err != nil {
		return Response{}, err
	}

	if err := c.acquire(ctx); err != nil {
		return Response{}, err
	}
	defer c.release()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, vs := range r.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("read body: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: b}, nil
}

// ParseProxy accepts a proxy URL or a bare host:port. An empty string yields nil.
func ParseProxy(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse proxy: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy %q has no host", s)
	}
	return u, nil
}

// clientFor returns the cached client for proxy; "" means direct. Every
// client traces its requests through otelhttp.
func (c *Client) clientFor(proxy string) (*http.Client, error) {
	proxy = strings.TrimSpace(proxy)
	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.clients[proxy]; ok {
		return hc, nil
	}
	pu, err := ParseProxy(proxy)
	if err != nil {
		return nil, err
	}
	hc := http.Client{}
	if c.HTTPClient != nil {
		// Copy to attach our redirect policy without mutating caller's client
		hc = *c.HTTPClient
	}
	hc.CheckRedirect = c.checkRedirectFunc()
	var rt http.RoundTripper = http.DefaultTransport
	if hc.Transport != nil {
		rt = hc.Transport
	}
	if pu != nil {
		tr := c.baseTransport().Clone()
		tr.Proxy = http.ProxyURL(pu)
		rt = tr
	}
	hc.Transport = otelhttp.NewTransport(rt)
	if c.clients == nil {
		c.clients = make(map[string]*http.Client)
	}
	c.clients[proxy] = &hc
	return &hc, nil
}

func (c *Client) baseTransport() *http.Transport {
	if c.HTTPClient != nil {
		if t, ok := c.HTTPClient.Transport.(*http.Transport); ok && t != nil {
			return t
		}
	}
	return http.DefaultTransport.(*http.Transport)
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.limiterOnce.Do(func() {
		c.limiter = semaphore.NewWeighted(int64(c.MaxConcurrent))
	})
	return c.limiter.Acquire(ctx, 1)
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	c.limiter.Release(1)
}
