// Copyright 2025 Kadir Pekel
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

package client

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// maxRetryDelay caps both Retry-After and backoff.
const maxRetryDelay = 30 * time.Second

// RetryTransport retries requests the server refused without processing:
// 429 Too Many Requests and 503 Service Unavailable. Other failures are
// returned as they are, since a resent message could start a second turn.
type RetryTransport struct {
	base       http.RoundTripper
	maxRetries int
	baseDelay  time.Duration
	sleep      func(*http.Request, time.Duration) error
}

// NewRetryTransport wraps base. A zero baseDelay means one second.
func NewRetryTransport(base http.RoundTripper, maxRetries int, baseDelay time.Duration) *RetryTransport {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &RetryTransport{
		base:       base,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepCtx,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.Body != nil {
			if req.GetBody == nil {
				return nil, fmt.Errorf("cannot retry %s %s: request body is not replayable", req.Method, req.URL)
			}
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil || !retryable(resp.StatusCode) || attempt >= t.maxRetries {
			return resp, err
		}
		if req.Body != nil && req.GetBody == nil {
			return resp, nil
		}

		delay := t.delay(attempt, resp.Header)
		slog.Warn("Request throttled, retrying",
			"status", resp.StatusCode, "url", req.URL.String(), "delay", delay,
			"attempt", attempt+1, "max_retries", t.maxRetries)
		drain(resp)

		if err := t.sleep(req, delay); err != nil {
			return nil, err
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// delay honors Retry-After in seconds, falling back to exponential backoff.
func (t *RetryTransport) delay(attempt int, header http.Header) time.Duration {
	d := t.baseDelay << attempt
	if s := header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			d = time.Duration(secs) * time.Second
		}
	}
	if d > maxRetryDelay || d < 0 {
		d = maxRetryDelay
	}
	return d
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func sleepCtx(req *http.Request, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
