// Package remote executes outbound HTTP calls with a bounded retry policy.
//
// Only transport failures are retried. An HTTP response with a non-2xx status
// is returned immediately as a *StatusError so callers can tell "not found"
// from "unreachable". When every attempt fails the error matches ErrUnavailable.
package remote

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
	"time"

	"github.com/google/uuid"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/netutil"
)

const (
	component       = "remote"
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-ID"
)

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	Attempts   int
	Timeout    time.Duration
	Backoff    time.Duration
	HTTPClient Doer
}

// Client runs requests with per-attempt timeouts.
type Client struct {
	attempts int
	timeout  time.Duration
	backoff  time.Duration
	http     Doer
}

// New returns a Client. Each attempt dials its own connection unless a
// custom HTTPClient is supplied.
func New(opts Options) *Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
		}}
	}
	return &Client{attempts: opts.Attempts, timeout: opts.Timeout, backoff: opts.Backoff, http: opts.HTTPClient}
}

// Request is one logical call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	// Body is JSON encoded when non-nil.
	Body any
}

// Response is a successful (2xx) reply.
type Response struct {
	Code   int
	Header http.Header
	Body   []byte
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

// DecodeJSON decodes a response body, treating a nil response as an empty reply.
func DecodeJSON(resp *Response, v any) error {
	if resp == nil || len(resp.Body) == 0 {
		return fmt.Errorf("remote: empty response")
	}
	return resp.JSON(v)
}

// Get is a shorthand for a GET without body.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, header http.Header) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query, Header: header})
}

// PostJSON is a shorthand for a JSON POST.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, header http.Header) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Body: body, Header: header})
}

// Do runs req until it succeeds, fails with a non-retryable error, or runs out of attempts.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if req.Body != nil {
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("remote: encode body: %w", err)
		}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	requestID := uuid.NewString()
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		resp, err := c.attempt(ctx, method, target, req.Header, payload, requestID)
		if err == nil {
			logger.Debug(ctx, component, "call.ok",
				slog.String("method", method),
				slog.String("url", redactURL(target)),
				slog.String("request_id", requestID),
				slog.Int("http_code", resp.Code),
				slog.Int("attempt", attempt),
				slog.Duration("duration", logger.Took(start)),
			)
			return resp, nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			logger.Warn(ctx, component, "call.rejected",
				slog.String("method", method),
				slog.String("url", redactURL(target)),
				slog.String("request_id", requestID),
				slog.Int("http_code", statusErr.Code),
				slog.Duration("duration", logger.Took(start)),
			)
			return nil, err
		}
		lastErr = err
		if ctx.Err() != nil || !netutil.ShouldRetry(err) {
			break
		}
		logger.Warn(ctx, component, "call.retry",
			slog.String("method", method),
			slog.String("url", redactURL(target)),
			slog.String("request_id", requestID),
			slog.Int("attempt", attempt),
			slog.Bool("retryable", true),
			logger.Err(err),
		)
		if attempt < c.attempts && !sleep(ctx, c.backoff*time.Duration(attempt)) {
			lastErr = ctx.Err()
			break
		}
	}

	logger.Error(ctx, component, "call.unavailable",
		slog.String("method", method),
		slog.String("url", redactURL(target)),
		slog.String("request_id", requestID),
		slog.Int("attempts", c.attempts),
		slog.Duration("duration", logger.Took(start)),
		logger.Err(lastErr),
	)
	return nil, &UnavailableError{Method: method, URL: redactURL(target), Attempts: c.attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, method, target string, header http.Header, payload []byte, requestID string) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(actx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: redactURL(target), Code: resp.StatusCode, Body: truncate(data, 512)}
	}
	return &Response{Code: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func buildURL(raw string, query url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("remote: parse url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redactURL drops the query string, which may carry user names or addresses.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
