package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketbond/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RESTClient is a JSON-over-HTTP GET client with bounded, jittered
// exponential backoff. Both exchange clients embed it.
type RESTClient struct {
	baseURL     string
	platform    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// Option configures RESTClient.
type Option func(*RESTClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *RESTClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *RESTClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *RESTClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *RESTClient) {
		c.maxDelay = d
	}
}

// WithPlatform labels the client's call metrics with the platform name.
// Without it, no metrics are recorded.
func WithPlatform(name string) Option {
	return func(c *RESTClient) {
		c.platform = name
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *RESTClient) {
		c.client = client
	}
}

// NewRESTClient creates a client rooted at baseURL.
func NewRESTClient(baseURL string, opts ...Option) *RESTClient {
	c := &RESTClient{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON performs a GET with retries and decodes the response into result.
// 429 responses and transport failures are retried; the final failure is
// wrapped in ErrRateLimited or ErrUpstreamUnavailable for the caller.
func (c *RESTClient) GetJSON(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	start := time.Now()
	err := c.getJSON(ctx, endpoint, params, result)
	if c.platform != "" {
		op := operationLabel(endpoint)
		observability.DefaultMetrics.UpstreamCallLatency.
			WithLabelValues(c.platform, op).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.DefaultMetrics.UpstreamCallErrors.WithLabelValues(c.platform, op).Inc()
		}
	}
	return err
}

// operationLabel reduces an endpoint to its first path segment, keeping the
// metric label cardinality bounded regardless of path parameters.
func operationLabel(endpoint string) string {
	trimmed := strings.TrimPrefix(endpoint, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}

func (c *RESTClient) getJSON(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	delay := c.retryDelay
	var lastErr error
	rateLimited := false

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Jittered exponential backoff.
			sleep := delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
			case <-time.After(sleep):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			rateLimited = false
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			rateLimited = false
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			rateLimited = true
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			rateLimited = false
			continue
		}

		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				// Malformed payloads are not retried.
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	if rateLimited {
		return fmt.Errorf("%w: %v", ErrRateLimited, lastErr)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, lastErr)
}
