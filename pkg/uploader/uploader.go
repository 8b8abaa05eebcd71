// Copyright (c) 2025, The Snail Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uploader delivers assembled reports to the ingestion endpoint
// over authenticated HTTPS with bounded retries.
package uploader

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/snailops/snail/pkg/defaults"
	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/report"
)

// Status classifies the final outcome of a delivery.
type Status string

const (
	// StatusSuccess means the endpoint acknowledged the report.
	StatusSuccess Status = "success"
	// StatusRetryableFailure means every attempt failed with a transient
	// condition: network errors, 5xx, or throttling.
	StatusRetryableFailure Status = "retryable_failure"
	// StatusFatalFailure means the endpoint rejected the report and
	// retrying the same payload cannot help.
	StatusFatalFailure Status = "fatal_failure"
)

// Attempt records one delivery try.
type Attempt struct {
	Number     int
	HTTPStatus int
	Err        string
	Duration   time.Duration
}

// Outcome is the full delivery record: final status plus the per-attempt
// history in order.
type Outcome struct {
	Status     Status
	HTTPStatus int
	Attempts   []Attempt
	Err        string
}

// Succeeded reports whether the delivery completed.
func (o *Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// maxResponseBytes bounds how much of an error response is retained.
const maxResponseBytes = 4 << 10

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCompression toggles gzip request bodies.
func WithCompression(enabled bool) Option {
	return func(c *Client) {
		c.compress = enabled
	}
}

// WithRetries sets the number of additional attempts after a retryable
// failure. Zero means a single attempt.
func WithRetries(n uint64) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithTimeout sets the per-attempt timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBackoff overrides the exponential backoff base and cap.
func WithBackoff(base, cap time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.backoffCap = cap
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client uploads reports to one ingestion endpoint.
type Client struct {
	endpoint    string
	apiKey      string
	userAgent   string
	compress    bool
	retries     uint64
	timeout     time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration
	httpClient  *http.Client
}

// NewClient creates an upload client for the given endpoint. The API key
// may be empty for endpoints that authenticate by client certificate only.
func NewClient(endpoint, apiKey string, tlsOpts TLSOptions, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, snailerrors.New(snailerrors.ErrCodeConfigInvalid, "upload endpoint is required")
	}

	tlsCfg, err := BuildTLSConfig(tlsOpts)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		userAgent:   "snail/dev",
		retries:     defaults.UploadRetries,
		backoffBase: defaults.UploadBackoffBase,
		backoffCap:  defaults.UploadBackoffCap,
		httpClient: &http.Client{
			Timeout:   defaults.UploadTimeout,
			Transport: newTransport(tlsCfg),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.httpClient.Timeout = c.timeout
	}
	return c, nil
}

// Upload delivers one report. The returned Outcome is always populated;
// the error is reserved for conditions that prevented attempting delivery
// at all, such as a report that cannot be serialized.
func (c *Client) Upload(ctx context.Context, r *report.Report) (*Outcome, error) {
	body, err := c.encode(r)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Status: StatusRetryableFailure}

	backoff := retry.NewExponential(c.backoffBase)
	backoff = retry.WithCappedDuration(c.backoffCap, backoff)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithMaxRetries(c.retries, backoff)

	start := time.Now()
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt := c.attempt(ctx, len(outcome.Attempts)+1, body)
		outcome.Attempts = append(outcome.Attempts, attempt)
		outcome.HTTPStatus = attempt.HTTPStatus

		switch {
		case attempt.Err == "":
			outcome.Status = StatusSuccess
			outcome.Err = ""
			return nil
		case fatalStatus(attempt.HTTPStatus):
			outcome.Status = StatusFatalFailure
			outcome.Err = attempt.Err
			return fmt.Errorf("%s", attempt.Err)
		default:
			outcome.Status = StatusRetryableFailure
			outcome.Err = attempt.Err
			slog.Warn("upload attempt failed",
				"attempt", attempt.Number,
				"status", attempt.HTTPStatus,
				"error", attempt.Err)
			return retry.RetryableError(fmt.Errorf("%s", attempt.Err))
		}
	})

	observeUpload(outcome, time.Since(start))

	if err == nil {
		slog.Info("report delivered",
			"collection_id", r.Meta.CollectionID,
			"attempts", len(outcome.Attempts))
	}
	return outcome, nil
}

// encode serializes and optionally compresses the report body.
func (c *Client) encode(r *report.Report) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to serialize report", err)
	}
	if !c.compress {
		return raw, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to compress report", err)
	}
	if err := zw.Close(); err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to compress report", err)
	}
	return buf.Bytes(), nil
}

// attempt performs a single POST and classifies its result.
func (c *Client) attempt(ctx context.Context, number int, body []byte) Attempt {
	start := time.Now()
	a := Attempt{Number: number}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		a.Err = fmt.Sprintf("failed to build request: %v", err)
		a.Duration = time.Since(start)
		return a
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		a.Err = fmt.Sprintf("request failed: %v", err)
		a.Duration = time.Since(start)
		return a
	}
	defer resp.Body.Close()

	a.HTTPStatus = resp.StatusCode
	a.Duration = time.Since(start)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return a
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	a.Err = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	return a
}

// fatalStatus reports whether an HTTP status is a permanent rejection.
// Timeouts and throttling are transient even though they are 4xx.
func fatalStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}
