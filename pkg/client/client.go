// Package client is an HTTP client for the Anthropic Messages API.
//
// Requests are retried according to a retry.Config. Streaming calls are only
// retried until response headers arrive: once a 2xx body is handed to a
// stream.Stream, failures surface through the stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/logger"
	"github.com/papercomputeco/claudekit/pkg/retry"
	"github.com/papercomputeco/claudekit/pkg/stream"
)

const (
	// DefaultBaseURL is the public Anthropic API.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultVersion is sent as the anthropic-version header.
	DefaultVersion = "2023-06-01"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 10 * time.Minute

	endpointMessages    = "/v1/messages"
	endpointCountTokens = "/v1/messages/count_tokens"
	endpointBatches     = "/v1/messages/batches"
)

// Config holds the connection settings of a Client.
type Config struct {
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Version defaults to DefaultVersion.
	Version string

	// Beta lists anthropic-beta feature flags, joined with commas.
	Beta []string

	// Timeout bounds every call that decodes a JSON response. Streams,
	// batch results and file downloads are bounded only by their context.
	// Defaults to DefaultTimeout.
	Timeout time.Duration

	// UserAgent is sent as the user-agent header when set.
	UserAgent string
}

// Client sends requests to the Messages API. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
	retry   retry.Config
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records request and stream metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRetry replaces the default retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// New returns a Client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger.Nop(),
		retry:  retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Send performs a non-streaming Messages call.
func (c *Client) Send(ctx context.Context, req *llm.MessagesRequest) (*llm.MessagesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validating request: %w", err)
	}

	body := req
	if req.Stream {
		body = req.Clone()
		body.Stream = false
	}

	var resp llm.MessagesResponse
	if err := c.doJSON(ctx, endpointMessages, body, &resp); err != nil {
		return nil, err
	}
	c.metrics.addUsage(resp.Usage)

	return &resp, nil
}

// CountTokens asks the API how many input tokens req would use.
func (c *Client) CountTokens(ctx context.Context, req *llm.CountTokensRequest) (*llm.CountTokensResponse, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("validating request: %w", llm.ErrMissingModel)
	}

	var resp llm.CountTokensResponse
	if err := c.doJSON(ctx, endpointCountTokens, req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Stream performs a streaming Messages call and returns the event stream.
// The caller must consume the stream to its end or Close it.
func (c *Client) Stream(ctx context.Context, req *llm.MessagesRequest, opts ...stream.Option) (*stream.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validating request: %w", err)
	}

	body := req
	if !req.Stream {
		body = req.Clone()
		body.Stream = true
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := retry.Do(ctx, c.retryConfig(endpointMessages), func(ctx context.Context) (*http.Response, error) {
		return c.post(ctx, endpointMessages, payload, true)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("stream opened",
		"model", req.Model,
		"request_id", resp.Header.Get("request-id"),
	)

	opts = append([]stream.Option{
		stream.WithLogger(c.logger),
		stream.WithEventHook(c.metrics.observeEvent),
	}, opts...)

	return stream.New(resp.Body, opts...), nil
}

// doJSON posts in and decodes a 2xx body into out, bounded by the
// configured timeout across all attempts.
func (c *Client) doJSON(ctx context.Context, endpoint string, in, out any) error {
	return c.roundTrip(ctx, http.MethodPost, endpoint, endpoint, in, out)
}

// roundTrip sends in (or no body when in is nil) to path and decodes the
// response into out. label names the endpoint in logs and metrics so that
// ids in the path do not fan out the label space.
func (c *Client) roundTrip(ctx context.Context, method, path, label string, in, out any, edits ...requestEdit) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := retry.Do(ctx, c.retryConfig(label), func(ctx context.Context) (*http.Response, error) {
		return c.send(ctx, method, c.cfg.BaseURL+path, label, payload, false, edits...)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp.Body, out)
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// post sends one POST attempt to endpoint.
func (c *Client) post(ctx context.Context, endpoint string, payload []byte, streaming bool) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, endpoint, payload, streaming)
}

// requestEdit adjusts the headers of one request after the defaults are set.
type requestEdit func(*http.Request)

// withBeta adds a beta flag to the configured ones.
func withBeta(flag string) requestEdit {
	return func(req *http.Request) {
		current := req.Header.Get("anthropic-beta")
		switch {
		case current == "":
			req.Header.Set("anthropic-beta", flag)
		case !slices.Contains(strings.Split(current, ","), flag):
			req.Header.Set("anthropic-beta", current+","+flag)
		}
	}
}

// withContentType replaces the JSON content type.
func withContentType(ct string) requestEdit {
	return func(req *http.Request) {
		req.Header.Set("content-type", ct)
	}
}

// send makes one attempt. Non-2xx responses are drained, closed and
// returned as *APIError.
func (c *Client) send(ctx context.Context, method, url, label string, payload []byte, streaming bool, edits ...requestEdit) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, streaming)
	for _, edit := range edits {
		edit(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observeRequest(label, 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sending request: %w", ctx.Err())
		}
		return nil, &ConnectionError{Err: err}
	}
	c.metrics.observeRequest(label, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := newAPIError(resp.StatusCode, resp.Header, raw)

	c.logger.Debug("api request failed",
		"endpoint", label,
		"status", resp.StatusCode,
		"type", apiErr.Type,
	)

	return nil, apiErr
}

func (c *Client) setHeaders(req *http.Request, streaming bool) {
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)
	req.Header.Set("content-type", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("user-agent", c.cfg.UserAgent)
	}
	if len(c.cfg.Beta) > 0 {
		req.Header.Set("anthropic-beta", strings.Join(c.cfg.Beta, ","))
	}
	if streaming {
		req.Header.Set("accept", "text/event-stream")
	}
}

// retryConfig returns the policy with logging and metrics attached.
func (c *Client) retryConfig(endpoint string) retry.Config {
	cfg := c.retry
	next := cfg.OnRetry
	cfg.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.metrics.observeRetry(endpoint)
		c.logger.Warn("retrying request",
			"endpoint", endpoint,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		if next != nil {
			next(attempt, wait, err)
		}
	}
	return cfg
}
