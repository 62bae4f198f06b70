package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/retry"
)

// Batch processing states.
const (
	BatchInProgress = "in_progress"
	BatchCanceling  = "canceling"
	BatchEnded      = "ended"
)

// Batch result types.
const (
	ResultSucceeded = "succeeded"
	ResultErrored   = "errored"
	ResultCanceled  = "canceled"
	ResultExpired   = "expired"
)

const maxResultLine = 64 * 1024 * 1024

var (
	// ErrEmptyBatch is returned by CreateBatch without requests.
	ErrEmptyBatch = errors.New("batch has no requests")

	// ErrMissingCustomID is returned by CreateBatch for a request without
	// a custom id.
	ErrMissingCustomID = errors.New("batch request has no custom_id")

	// ErrMissingParams is returned by CreateBatch for a request without
	// params.
	ErrMissingParams = errors.New("batch request has no params")

	// ErrDuplicateCustomID is returned by CreateBatch when two requests
	// share a custom id.
	ErrDuplicateCustomID = errors.New("duplicate custom_id in batch")

	// ErrResultsNotReady is returned by BatchResults while a batch has no
	// results_url yet.
	ErrResultsNotReady = errors.New("batch results are not available yet")
)

// BatchRequest is one Messages request inside a batch. CustomID matches the
// request to its result.
type BatchRequest struct {
	CustomID string               `json:"custom_id"`
	Params   *llm.MessagesRequest `json:"params"`
}

// RequestCounts tallies the requests of a batch by state.
type RequestCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
	Canceled   int `json:"canceled"`
	Expired    int `json:"expired"`
}

// MessageBatch is the metadata of a Message Batch.
type MessageBatch struct {
	ID                string        `json:"id"`
	Type              string        `json:"type"`
	ProcessingStatus  string        `json:"processing_status"`
	RequestCounts     RequestCounts `json:"request_counts"`
	CreatedAt         time.Time     `json:"created_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	EndedAt           *time.Time    `json:"ended_at,omitempty"`
	CancelInitiatedAt *time.Time    `json:"cancel_initiated_at,omitempty"`
	ResultsURL        string        `json:"results_url,omitempty"`
}

// Ended reports whether processing finished and results can be fetched.
func (b *MessageBatch) Ended() bool {
	return b.ProcessingStatus == BatchEnded
}

// BatchPage is one page of ListBatches.
type BatchPage struct {
	Data    []MessageBatch `json:"data"`
	HasMore bool           `json:"has_more"`
	FirstID string         `json:"first_id"`
	LastID  string         `json:"last_id"`
}

// ListBatchesOptions pages through batches, newest first. Zero values are
// omitted from the query.
type ListBatchesOptions struct {
	Limit    int
	AfterID  string
	BeforeID string
}

func (o ListBatchesOptions) query() string {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.AfterID != "" {
		q.Set("after_id", o.AfterID)
	}
	if o.BeforeID != "" {
		q.Set("before_id", o.BeforeID)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// BatchError is the error of an errored batch request.
type BatchError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// BatchOutcome is the result of one batch request. Message is set for
// succeeded results and Error for errored ones.
type BatchOutcome struct {
	Type    string                `json:"type"`
	Message *llm.MessagesResponse `json:"message,omitempty"`
	Error   *BatchError           `json:"error,omitempty"`
}

// BatchResult is one line of a batch results file.
type BatchResult struct {
	CustomID string       `json:"custom_id"`
	Result   BatchOutcome `json:"result"`
}

// UnmarshalJSON accepts both the flat error shape and the envelope the API
// wraps request errors in.
func (e *BatchError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Error   *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Type, e.Message = raw.Type, raw.Message
	if raw.Error != nil {
		e.Type, e.Message = raw.Error.Type, raw.Error.Message
	}
	return nil
}

// DefaultBatchPoll polls every 10s at first, slowing to once a minute.
func DefaultBatchPoll() retry.Config {
	return retry.Config{
		InitialBackoff: 10 * time.Second,
		MaxBackoff:     time.Minute,
		Multiplier:     1.5,
	}
}

// CreateBatch submits requests for asynchronous processing. Every request
// is validated and must carry a unique custom id.
func (c *Client) CreateBatch(ctx context.Context, requests []BatchRequest) (*MessageBatch, error) {
	if len(requests) == 0 {
		return nil, ErrEmptyBatch
	}

	seen := make(map[string]struct{}, len(requests))
	body := make([]BatchRequest, len(requests))
	for i, r := range requests {
		if r.CustomID == "" {
			return nil, fmt.Errorf("request %d: %w", i, ErrMissingCustomID)
		}
		if _, dup := seen[r.CustomID]; dup {
			return nil, fmt.Errorf("%s: %w", r.CustomID, ErrDuplicateCustomID)
		}
		seen[r.CustomID] = struct{}{}

		if r.Params == nil {
			return nil, fmt.Errorf("%s: %w", r.CustomID, ErrMissingParams)
		}
		if err := r.Params.Validate(); err != nil {
			return nil, fmt.Errorf("%s: validating request: %w", r.CustomID, err)
		}

		params := r.Params
		if params.Stream {
			params = params.Clone()
			params.Stream = false
		}
		body[i] = BatchRequest{CustomID: r.CustomID, Params: params}
	}

	in := struct {
		Requests []BatchRequest `json:"requests"`
	}{body}

	var batch MessageBatch
	if err := c.roundTrip(ctx, http.MethodPost, endpointBatches, endpointBatches, in, &batch); err != nil {
		return nil, err
	}

	c.logger.Info("batch created", "batch_id", batch.ID, "requests", len(body))

	return &batch, nil
}

// GetBatch retrieves the metadata of a batch.
func (c *Client) GetBatch(ctx context.Context, id string) (*MessageBatch, error) {
	var batch MessageBatch
	if err := c.roundTrip(ctx, http.MethodGet, batchPath(id), endpointBatches, nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatches returns one page of batches.
func (c *Client) ListBatches(ctx context.Context, opts ListBatchesOptions) (*BatchPage, error) {
	var page BatchPage
	if err := c.roundTrip(ctx, http.MethodGet, endpointBatches+opts.query(), endpointBatches, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CancelBatch asks the API to stop processing a batch. The returned batch
// is usually still canceling.
func (c *Client) CancelBatch(ctx context.Context, id string) (*MessageBatch, error) {
	var batch MessageBatch
	if err := c.roundTrip(ctx, http.MethodPost, batchPath(id)+"/cancel", endpointBatches, nil, &batch); err != nil {
		return nil, err
	}

	c.logger.Info("batch cancel requested", "batch_id", id, "status", batch.ProcessingStatus)

	return &batch, nil
}

// WaitForBatch polls a batch until it has ended, waiting between checks as
// poll's backoff dictates. See retry.Poll for how MaxAttempts applies.
func (c *Client) WaitForBatch(ctx context.Context, id string, poll retry.Config) (*MessageBatch, error) {
	return retry.Poll(ctx, poll, func(ctx context.Context) (*MessageBatch, bool, error) {
		batch, err := c.GetBatch(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if !batch.Ended() {
			c.logger.Debug("batch still processing",
				"batch_id", id,
				"status", batch.ProcessingStatus,
				"processing", batch.RequestCounts.Processing,
			)
		}
		return batch, batch.Ended(), nil
	})
}

// BatchResults opens the results file of an ended batch. The caller must
// Close the returned reader.
func (c *Client) BatchResults(ctx context.Context, id string) (*BatchResults, error) {
	batch, err := c.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.ResultsURL == "" {
		return nil, fmt.Errorf("%s (%s): %w", id, batch.ProcessingStatus, ErrResultsNotReady)
	}

	resultsURL := batch.ResultsURL
	if u, err := url.Parse(resultsURL); err == nil && !u.IsAbs() {
		resultsURL = c.cfg.BaseURL + resultsURL
	}

	resp, err := retry.Do(ctx, c.retryConfig(endpointBatches), func(ctx context.Context) (*http.Response, error) {
		return c.send(ctx, http.MethodGet, resultsURL, endpointBatches, nil, false)
	})
	if err != nil {
		return nil, err
	}

	return NewBatchResults(resp.Body), nil
}

func batchPath(id string) string {
	return endpointBatches + "/" + url.PathEscape(id)
}

// BatchResults reads a JSONL batch results file one result at a time.
type BatchResults struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	line    int
	err     error
}

// NewBatchResults reads results from body, which is closed by Close.
func NewBatchResults(body io.ReadCloser) *BatchResults {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxResultLine)
	return &BatchResults{body: body, scanner: scanner}
}

// Next returns the next result, skipping blank lines. It returns io.EOF at
// the end of the file. Errors are terminal.
func (r *BatchResults) Next() (*BatchResult, error) {
	if r.err != nil {
		return nil, r.err
	}

	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var res BatchResult
		if err := json.Unmarshal(line, &res); err != nil {
			r.err = fmt.Errorf("results line %d: %w", r.line, err)
			return nil, r.err
		}
		return &res, nil
	}

	if err := r.scanner.Err(); err != nil {
		r.err = fmt.Errorf("reading results: %w", err)
	} else {
		r.err = io.EOF
	}
	return nil, r.err
}

// All collects the remaining results by custom id.
func (r *BatchResults) All() (map[string]*BatchResult, error) {
	out := make(map[string]*BatchResult)
	for {
		res, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out[res.CustomID] = res
	}
}

// Close releases the response body.
func (r *BatchResults) Close() error {
	return r.body.Close()
}

