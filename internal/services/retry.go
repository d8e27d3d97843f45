package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// RetryPolicy controls how many times a request is attempted and how long to wait between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // doubled after each attempt unless the server sends Retry-After
	// ReplayPost allows POST requests to be resent after transport errors and 5xx responses.
	// Leave it unset when a POST creates or appends remote state.
	ReplayPost bool
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxRetries
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	return p
}

// doWithRetry sends req, retrying transport errors, 429 and 5xx responses.
//
// A POST is only resent after a 429 unless the policy sets ReplayPost: a failed gateway or dropped connection
// may hide a request the server already applied.
//
// The final response is returned as-is (including a 429 or 5xx) so callers can map its status.
func doWithRetry(client *http.Client, req *http.Request, policy RetryPolicy, logger *log.Logger) (*http.Response, error) {
	policy = policy.withDefaults()

	if req.Body != nil && req.GetBody == nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		_ = req.Body.Close()
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("reset request body: %w", err)
			}
			req.Body = body
		}

		resp, err := client.Do(req)
		retryAfter, retry := shouldRetry(resp, err, policy.replayable(req.Method))
		if !retry || attempt >= policy.MaxAttempts || ctx.Err() != nil {
			return resp, err
		}

		if err != nil {
			logger.Warn("retrying request", "url", req.URL.Path, "attempt", attempt, "error", err)
		} else {
			logger.Warn("retrying request", "url", req.URL.Path, "attempt", attempt, "status", resp.StatusCode)
			_ = resp.Body.Close()
		}

		delay := policy.Backoff * time.Duration(1<<(attempt-1))
		if retryAfter > 0 {
			delay = retryAfter
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (p RetryPolicy) replayable(method string) bool {
	return method != http.MethodPost || p.ReplayPost
}

// shouldRetry reports whether the attempt may be repeated. A 429 is always retried since the server refused the
// request outright; transport errors and 5xx only when replayable.
func shouldRetry(resp *http.Response, err error, replayable bool) (time.Duration, bool) {
	if err != nil {
		return 0, replayable
	}
	if resp == nil {
		return 0, false
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return parseRetryAfter(resp), true
	case resp.StatusCode >= http.StatusInternalServerError:
		return parseRetryAfter(resp), replayable
	}
	return 0, false
}

// parseRetryAfter reads Retry-After as delta-seconds or an HTTP date.
func parseRetryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
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
