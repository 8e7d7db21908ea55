package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"animesync/internal/logging"
)

const (
	defaultHTTPTimeout       = 30 * time.Second
	defaultBaseDelay         = 1 * time.Second
	defaultMaxRetries        = 3
	defaultMaxRateLimitWaits = 10
	maxBodySnippet           = 200
	userAgent                = "animesync/1.0"
)

// Response is a decoded 2xx upstream reply.
type Response struct {
	StatusCode int
	Body       []byte
	// Value is the body decoded with json.Number preserved: either
	// map[string]any or []any.
	Value any
}

// Decode unmarshals the raw body into target.
func (r Response) Decode(target any) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client performs GET requests with two independent retry budgets: one for
// general failures with exponential backoff, one for HTTP 429 waits.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries        int
	maxRateLimitWaits int
	baseDelay         time.Duration
	rateLimitDelay    time.Duration
	rateLimitDelaySet bool
	sleeper           func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-attempt HTTP timeout on the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithMaxRetries sets the general retry ceiling (defaults to 3). A ceiling of N
// allows N+1 attempts.
func WithMaxRetries(retries int) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.maxRetries = retries
		}
	}
}

// WithMaxRateLimitWaits sets how many HTTP 429 responses are waited out (defaults to 10).
func WithMaxRateLimitWaits(waits int) Option {
	return func(c *Client) {
		if waits >= 0 {
			c.maxRateLimitWaits = waits
		}
	}
}

// WithBaseDelay sets the first general backoff delay (defaults to 1s).
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay >= 0 {
			c.baseDelay = delay
		}
	}
}

// WithRateLimitDelay sets the wait used for HTTP 429 responses without a
// Retry-After header. It defaults to the base delay.
func WithRateLimitDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay >= 0 {
			c.rateLimitDelay = delay
			c.rateLimitDelaySet = true
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a fetch client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient:        &http.Client{Timeout: defaultHTTPTimeout},
		logger:            logging.NewNop(),
		maxRetries:        defaultMaxRetries,
		maxRateLimitWaits: defaultMaxRateLimitWaits,
		baseDelay:         defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if !client.rateLimitDelaySet {
		client.rateLimitDelay = client.baseDelay
	}
	return client
}

// Fetch GETs rawURL and decodes the JSON body. Rate-limited responses are
// waited out without consuming the general retry budget. The returned error is
// either ctx's error or a *Error.
func (c *Client) Fetch(ctx context.Context, rawURL string, header http.Header) (Response, error) {
	failures := 0
	rateWaits := 0
	attempts := 0

	for {
		attempts++
		resp, err := c.once(ctx, rawURL, header)
		if ctxErr := ctx.Err(); ctxErr != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return Response{}, ctxErr
		}
		if err == nil {
			return decodeResponse(resp, attempts)
		}

		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			if rateWaits >= c.maxRateLimitWaits {
				return Response{}, &Error{Kind: KindRateLimitExhausted, Attempts: attempts, StatusCode: statusErr.StatusCode, Err: err}
			}
			rateWaits++
			delay := c.rateLimitDelay
			if statusErr.HasRetry {
				delay = statusErr.RetryAfter
			}
			c.logger.Debug("rate limited; waiting",
				logging.Int("rate_limit_wait", rateWaits),
				logging.Duration("delay", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return Response{}, err
			}
			continue
		}

		failures++
		if failures > c.maxRetries {
			out := &Error{Kind: KindUnreachable, Attempts: attempts, Err: err}
			if statusErr != nil {
				out.StatusCode = statusErr.StatusCode
			}
			return Response{}, out
		}
		delay := c.backoffDelay(failures)
		c.logger.Debug("request failed; retrying",
			logging.Int("attempt", attempts),
			logging.Duration("delay", delay),
			logging.String(logging.FieldErrorHint, err.Error()),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return Response{}, err
		}
	}
}

func (c *Client) once(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", stripURL(err))
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, stripURL(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryAfter, ok := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &statusError{
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
			RetryAfter: retryAfter,
			HasRetry:   ok,
		}
	}
	return resp, nil
}

// stripURL drops the request URL from transport errors. Provider URLs carry
// their access key, and these errors end up in logs and notifications.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", strings.ToLower(urlErr.Op), urlErr.Err)
	}
	return err
}

func decodeResponse(resp *http.Response, attempts int) (Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &Error{Kind: KindUnreachable, Attempts: attempts, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	value, err := decodeJSON(body)
	if err != nil {
		return Response{}, &Error{Kind: KindMalformedResponse, Attempts: attempts, StatusCode: resp.StatusCode, Err: err}
	}
	return Response{StatusCode: resp.StatusCode, Body: body, Value: value}, nil
}

// decodeJSON accepts exactly one JSON object or array.
func decodeJSON(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode json (body: %s): %w", snippet(trimmed), err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after json value (body: %s)", snippet(trimmed))
	}
	switch value.(type) {
	case map[string]any, []any:
		return value, nil
	default:
		return nil, fmt.Errorf("expected json object or array, got %s", snippet(trimmed))
	}
}

// backoffDelay returns base * 2^(failures-1).
func (c *Client) backoffDelay(failures int) time.Duration {
	if c.baseDelay <= 0 || failures <= 0 {
		return 0
	}
	delay := c.baseDelay
	for i := 1; i < failures; i++ {
		delay *= 2
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			delay = 0
		}
		return delay, true
	}
	return 0, false
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodySnippet {
		return text[:maxBodySnippet] + "..."
	}
	return text
}
