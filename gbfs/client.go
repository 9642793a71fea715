package gbfs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 15 * time.Second

// Client performs one HTTP fetch of a feed endpoint. It holds no feed
// state beyond an ETag revalidation cache; it never retries, and it never
// reorders or interprets payloads beyond normalization.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	etags map[string]cachedBody
}

type cachedBody struct {
	etag string
	body []byte
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each fetch. The caller context can impose a tighter
// bound per call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit caps outgoing requests per second across all feeds served
// by this client, so aggressive intervals cannot hammer a provider. A
// non-positive rps leaves the client unlimited.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a feed client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		etags:      map[string]cachedBody{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs one fetch of a feed URL and returns the normalized
// snapshot plus the exact payload bytes (for raw persistence). The capture
// timestamp is taken at receipt time, not parsed from content.
func (c *Client) Fetch(ctx context.Context, city, feed, url string) (*RawSnapshot, []byte, error) {
	body, err := c.fetchBody(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	capturedAt := float64(time.Now().UnixNano()) / 1e9
	snap, err := ParseSnapshot(city, feed, body, capturedAt)
	if err != nil {
		return nil, nil, err
	}
	return snap, body, nil
}

// fetchBody performs the HTTP GET with ETag revalidation. A 304 serves the
// cached body for that URL.
func (c *Client) fetchBody(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RequestError{URL: url, Kind: RequestNetwork, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RequestError{URL: url, Kind: RequestNetwork, Cause: err}
	}
	c.mu.Lock()
	if cached, ok := c.etags[url]; ok && cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := RequestNetwork
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = RequestTimeout
		}
		return nil, &RequestError{URL: url, Kind: kind, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		c.mu.Lock()
		cached, ok := c.etags[url]
		c.mu.Unlock()
		if ok {
			return cached.body, nil
		}
		return nil, &RequestError{URL: url, Kind: RequestStatus, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{URL: url, Kind: RequestStatus, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{URL: url, Kind: RequestNetwork, Cause: err}
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		c.mu.Lock()
		c.etags[url] = cachedBody{etag: etag, body: body}
		c.mu.Unlock()
	}
	return body, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
