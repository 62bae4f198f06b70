package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/claudekit/pkg/client"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/retry"
)

func batchJSON(id, status, resultsURL string) string {
	ended := "null"
	if status == client.BatchEnded {
		ended = `"2026-10-14T10:05:00Z"`
	}
	results := "null"
	if resultsURL != "" {
		results = fmt.Sprintf("%q", resultsURL)
	}
	return fmt.Sprintf(`{
		"id": %q,
		"type": "message_batch",
		"processing_status": %q,
		"request_counts": {"processing": 0, "succeeded": 1, "errored": 1, "canceled": 0, "expired": 0},
		"created_at": "2026-10-14T10:00:00Z",
		"expires_at": "2026-10-15T10:00:00Z",
		"ended_at": %s,
		"results_url": %s
	}`, id, status, ended, results)
}

const resultsJSONL = `{"custom_id":"greet","result":{"type":"succeeded","message":{"id":"msg_01","type":"message","role":"assistant","content":[{"type":"text","text":"Hello!"}],"model":"claude-haiku-4-5-20251001","stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":3}}}}

{"custom_id":"broken","result":{"type":"errored","error":{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: too large"}}}}
{"custom_id":"late","result":{"type":"expired"}}
`

var _ = Describe("Batches", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		calls   atomic.Int32
		c       *client.Client
		reg     *prometheus.Registry
	)

	BeforeEach(func() {
		calls.Store(0)
		handler = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			handler(w, r)
		}))

		reg = prometheus.NewRegistry()

		var err error
		c, err = client.New(client.Config{
			APIKey:  "sk-test",
			BaseURL: server.URL,
		}, client.WithRetry(fastRetry()), client.WithMetrics(client.NewMetrics(reg)))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("CreateBatch", func() {
		It("posts every request under its custom id", func() {
			var got struct {
				Requests []struct {
					CustomID string          `json:"custom_id"`
					Params   json.RawMessage `json:"params"`
				} `json:"requests"`
			}
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/v1/messages/batches"))
				Expect(r.Header.Get("x-api-key")).To(Equal("sk-test"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())

				_, _ = io.WriteString(w, batchJSON("msgbatch_01", client.BatchInProgress, ""))
			}

			streaming := newRequest()
			streaming.Stream = true

			batch, err := c.CreateBatch(context.Background(), []client.BatchRequest{
				{CustomID: "one", Params: newRequest()},
				{CustomID: "two", Params: streaming},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.ID).To(Equal("msgbatch_01"))
			Expect(batch.Ended()).To(BeFalse())
			Expect(batch.CreatedAt).To(Equal(time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)))
			Expect(batch.EndedAt).To(BeNil())

			Expect(got.Requests).To(HaveLen(2))
			Expect(got.Requests[0].CustomID).To(Equal("one"))
			Expect(got.Requests[1].CustomID).To(Equal("two"))

			var params llm.MessagesRequest
			Expect(json.Unmarshal(got.Requests[1].Params, &params)).To(Succeed())
			Expect(params.Stream).To(BeFalse())
			Expect(streaming.Stream).To(BeTrue())
		})

		It("rejects bad batches before sending", func() {
			_, err := c.CreateBatch(context.Background(), nil)
			Expect(err).To(MatchError(client.ErrEmptyBatch))

			_, err = c.CreateBatch(context.Background(), []client.BatchRequest{{Params: newRequest()}})
			Expect(err).To(MatchError(client.ErrMissingCustomID))

			_, err = c.CreateBatch(context.Background(), []client.BatchRequest{{CustomID: "a"}})
			Expect(err).To(MatchError(client.ErrMissingParams))

			_, err = c.CreateBatch(context.Background(), []client.BatchRequest{
				{CustomID: "a", Params: newRequest()},
				{CustomID: "a", Params: newRequest()},
			})
			Expect(err).To(MatchError(client.ErrDuplicateCustomID))

			_, err = c.CreateBatch(context.Background(), []client.BatchRequest{
				{CustomID: "a", Params: &llm.MessagesRequest{MaxTokens: 1}},
			})
			Expect(err).To(MatchError(llm.ErrMissingModel))

			Expect(calls.Load()).To(BeZero())
		})
	})

	Describe("GetBatch", func() {
		It("retries server errors", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodGet))
				Expect(r.URL.Path).To(Equal("/v1/messages/batches/msgbatch_01"))
				if calls.Load() == 1 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				_, _ = io.WriteString(w, batchJSON("msgbatch_01", client.BatchEnded, "https://example.invalid/results"))
			}

			batch, err := c.GetBatch(context.Background(), "msgbatch_01")
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.Ended()).To(BeTrue())
			Expect(batch.EndedAt).NotTo(BeNil())
			Expect(batch.RequestCounts.Errored).To(Equal(1))
			Expect(calls.Load()).To(Equal(int32(2)))
		})

		It("returns API errors", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"not_found_error","message":"no such batch"}}`)
			}

			_, err := c.GetBatch(context.Background(), "msgbatch_missing")
			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Type).To(Equal("not_found_error"))
			Expect(calls.Load()).To(Equal(int32(1)))
		})

		It("labels metrics by endpoint rather than batch id", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, batchJSON("msgbatch_01", client.BatchInProgress, ""))
			}

			_, err := c.GetBatch(context.Background(), "msgbatch_01")
			Expect(err).NotTo(HaveOccurred())

			families, err := reg.Gather()
			Expect(err).NotTo(HaveOccurred())

			var endpoints []string
			for _, f := range families {
				if f.GetName() != "claudekit_requests_total" {
					continue
				}
				for _, m := range f.GetMetric() {
					for _, l := range m.GetLabel() {
						if l.GetName() == "endpoint" {
							endpoints = append(endpoints, l.GetValue())
						}
					}
				}
			}
			Expect(endpoints).To(ConsistOf("/v1/messages/batches"))
		})
	})

	Describe("ListBatches", func() {
		It("passes paging options as query parameters", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/v1/messages/batches"))
				Expect(r.URL.Query().Get("limit")).To(Equal("2"))
				Expect(r.URL.Query().Get("after_id")).To(Equal("msgbatch_00"))
				Expect(r.URL.Query().Has("before_id")).To(BeFalse())

				fmt.Fprintf(w, `{"data":[%s,%s],"has_more":true,"first_id":"msgbatch_01","last_id":"msgbatch_02"}`,
					batchJSON("msgbatch_01", client.BatchEnded, ""),
					batchJSON("msgbatch_02", client.BatchInProgress, ""))
			}

			page, err := c.ListBatches(context.Background(), client.ListBatchesOptions{Limit: 2, AfterID: "msgbatch_00"})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Data).To(HaveLen(2))
			Expect(page.HasMore).To(BeTrue())
			Expect(page.LastID).To(Equal("msgbatch_02"))
		})

		It("sends no query without options", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.RawQuery).To(BeEmpty())
				_, _ = io.WriteString(w, `{"data":[],"has_more":false}`)
			}

			page, err := c.ListBatches(context.Background(), client.ListBatchesOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Data).To(BeEmpty())
		})
	})

	Describe("CancelBatch", func() {
		It("posts to the cancel endpoint", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/v1/messages/batches/msgbatch_01/cancel"))
				_, _ = io.WriteString(w, batchJSON("msgbatch_01", client.BatchCanceling, ""))
			}

			batch, err := c.CancelBatch(context.Background(), "msgbatch_01")
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.ProcessingStatus).To(Equal(client.BatchCanceling))
		})
	})

	Describe("WaitForBatch", func() {
		poll := retry.Config{InitialBackoff: time.Millisecond, Multiplier: 1}

		It("polls until the batch has ended", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				status := client.BatchInProgress
				if calls.Load() >= 3 {
					status = client.BatchEnded
				}
				_, _ = io.WriteString(w, batchJSON("msgbatch_01", status, ""))
			}

			batch, err := c.WaitForBatch(context.Background(), "msgbatch_01", poll)
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.Ended()).To(BeTrue())
			Expect(calls.Load()).To(Equal(int32(3)))
		})

		It("stops on errors that survive retries", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`)
			}

			_, err := c.WaitForBatch(context.Background(), "msgbatch_01", poll)
			Expect(err).To(MatchError(client.ErrAuthentication))
			Expect(calls.Load()).To(Equal(int32(1)))
		})

		It("gives up after the configured checks", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, batchJSON("msgbatch_01", client.BatchInProgress, ""))
			}

			limited := poll
			limited.MaxAttempts = 2
			batch, err := c.WaitForBatch(context.Background(), "msgbatch_01", limited)
			Expect(err).To(MatchError(retry.ErrPollExhausted))
			Expect(batch.ProcessingStatus).To(Equal(client.BatchInProgress))
		})
	})

	Describe("BatchResults", func() {
		It("reads every result by custom id", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Header.Get("x-api-key")).To(Equal("sk-test"))
				switch r.URL.Path {
				case "/v1/messages/batches/msgbatch_01":
					_, _ = io.WriteString(w, batchJSON("msgbatch_01", client.BatchEnded, server.URL+"/results/msgbatch_01"))
				case "/results/msgbatch_01":
					w.Header().Set("Content-Type", "application/x-jsonl")
					_, _ = io.WriteString(w, resultsJSONL)
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}

			results, err := c.BatchResults(context.Background(), "msgbatch_01")
			Expect(err).NotTo(HaveOccurred())
			defer results.Close()

			all, err := results.All()
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))

			greet := all["greet"].Result
			Expect(greet.Type).To(Equal(client.ResultSucceeded))
			Expect(greet.Message.Text()).To(Equal("Hello!"))
			Expect(greet.Message.Usage.InputTokens).To(Equal(12))

			broken := all["broken"].Result
			Expect(broken.Type).To(Equal(client.ResultErrored))
			Expect(broken.Message).To(BeNil())
			Expect(broken.Error.Type).To(Equal("invalid_request_error"))
			Expect(broken.Error.Message).To(Equal("max_tokens: too large"))

			Expect(all["late"].Result.Type).To(Equal(client.ResultExpired))
		})

		It("resolves relative result URLs against the base URL", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v1/messages/batches/msgbatch_01/results" {
					_, _ = io.WriteString(w, resultsJSONL)
					return
				}
				_, _ = io.WriteString(w, batchJSON("msgbatch_01", client.BatchEnded, "/v1/messages/batches/msgbatch_01/results"))
			}

			results, err := c.BatchResults(context.Background(), "msgbatch_01")
			Expect(err).NotTo(HaveOccurred())
			defer results.Close()

			first, err := results.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(first.CustomID).To(Equal("greet"))
		})

		It("refuses batches without results", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, batchJSON("msgbatch_01", client.BatchInProgress, ""))
			}

			_, err := c.BatchResults(context.Background(), "msgbatch_01")
			Expect(err).To(MatchError(client.ErrResultsNotReady))
		})
	})
})

var _ = Describe("BatchResults reader", func() {
	It("ends with io.EOF and stays ended", func() {
		r := client.NewBatchResults(io.NopCloser(strings.NewReader(`{"custom_id":"a","result":{"type":"canceled"}}`)))

		res, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Result.Type).To(Equal(client.ResultCanceled))

		_, err = r.Next()
		Expect(err).To(MatchError(io.EOF))
		_, err = r.Next()
		Expect(err).To(MatchError(io.EOF))
	})

	It("reports the line of malformed results", func() {
		r := client.NewBatchResults(io.NopCloser(strings.NewReader("{\"custom_id\":\"a\",\"result\":{\"type\":\"expired\"}}\r\n\nnot json\n")))

		_, err := r.Next()
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Next()
		Expect(err).To(MatchError(ContainSubstring("results line 3")))

		all, err := r.All()
		Expect(err).To(HaveOccurred())
		Expect(all).To(BeEmpty())
	})

	It("accepts the flat error shape", func() {
		r := client.NewBatchResults(io.NopCloser(strings.NewReader(`{"custom_id":"a","result":{"type":"errored","error":{"type":"overloaded_error","message":"busy"}}}`)))

		res, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Result.Error).To(Equal(&client.BatchError{Type: "overloaded_error", Message: "busy"}))
	})
})
