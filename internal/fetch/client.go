// Package fetch performs single chapter requests and classifies their
// failures into a typed error taxonomy.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	// MaxResponseBytes caps chapter bodies; real pages are well below it.
	MaxResponseBytes = 8 * 1024 * 1024

	maxIdleConns        = 100
	maxIdleConnsPerHost = 16
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 15 * time.Second
)

// DefaultHeaders is the fixed header set sent to every source.
var DefaultHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (compatible; BibleDownloader/1.0; +https://github.com/user/bible-downloader)",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Response is a successful (2xx) fetch.
type Response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// Fetcher retrieves one resource. Failures are returned as *Error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher is the net/http backed Fetcher.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPFetcher builds a fetcher with a tuned transport and the given
// per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout, Transport: transport},
		timeout: timeout,
	}
}

// NewHTTPFetcherWithClient wraps an existing client, mostly for tests.
func NewHTTPFetcherWithClient(client *http.Client, timeout time.Duration) *HTTPFetcher {
	if client == nil {
		return NewHTTPFetcher(timeout)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{client: client, timeout: timeout}
}

// Fetch issues one GET with the default headers and a bounded timeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ConfigurationError("invalid request url %q: %v", url, err)
	}
	for k, v := range DefaultHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := readCapped(resp)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, http.StatusText(resp.StatusCode), body)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body, Latency: time.Since(start)}, nil
}

func readCapped(resp *http.Response) ([]byte, error) {
	if resp.ContentLength > MaxResponseBytes {
		return nil, fmt.Errorf("response body too large (limit %d bytes)", MaxResponseBytes)
	}
	limited := &io.LimitedReader{R: resp.Body, N: MaxResponseBytes + 1}
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > MaxResponseBytes {
		return nil, fmt.Errorf("response body too large (limit %d bytes)", MaxResponseBytes)
	}
	return body, nil
}
