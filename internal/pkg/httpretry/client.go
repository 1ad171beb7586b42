// Package httpretry provides an HTTP client that retries idempotent requests
// with exponential backoff and jitter.
//
// Requests that create side effects on the remote end (creating a broadcast,
// patching a page) are passed through exactly once. A retried create could
// produce a duplicate send, so only GET/HEAD requests and requests whose
// context carries MarkIdempotent are retried.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/kitsync/internal/pkg/logger"
)

// HTTPDoer executes HTTP requests. *http.Client and *RetryClient satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type idempotentKey struct{}

// MarkIdempotent flags requests built with the returned context as safe to
// retry even when their method is not GET or HEAD (e.g. read-only POST queries).
func MarkIdempotent(ctx context.Context) context.Context {
	return context.WithValue(ctx, idempotentKey{}, true)
}

func isIdempotent(req *http.Request) bool {
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return true
	}
	marked, _ := req.Context().Value(idempotentKey{}).(bool)
	return marked
}

// RetryClient wraps an HTTPDoer with retries.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryClient wraps client, or a 30s-timeout http.Client when nil.
// maxRetries counts attempts after the first; zero disables retries and a
// negative value selects 3.
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries < 0 {
		maxRetries = 3
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
	}
}

// Do sends req. Idempotent requests are retried on 429, 5xx gateway errors
// and network errors. A Retry-After header on a 429 or 503 overrides the
// backoff, capped at the maximum delay. Once retries are exhausted the last
// response is returned so the caller can read the API error body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	if rc.maxRetries == 0 || !isIdempotent(req) {
		return rc.client.Do(req)
	}
	ctx := req.Context()

	var lastErr error
	var wait time.Duration
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := rc.rewind(req); err != nil {
				return nil, err
			}
			logger.Debug("httpretry: retrying request",
				"attempt", attempt, "method", req.Method,
				"host", req.URL.Host, "path", req.URL.Path, "delay", wait)
			if err := sleep(ctx, wait); err != nil {
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, err
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			if ctx.Err() != nil || attempt == rc.maxRetries {
				return nil, err
			}
			lastErr = err
			wait = rc.backoff(attempt + 1)
			continue
		}
		if !isRetryableStatus(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		wait = rc.backoff(attempt + 1)
		if d, ok := retryAfter(resp); ok {
			wait = min(d, rc.maxDelay)
		}
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: %s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
}

func (rc *RetryClient) rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("httpretry: resetting request body: %w", err)
	}
	req.Body = body
	return nil
}

// backoff is random(0, min(maxDelay, baseDelay*2^(attempt-1))) with a
// 100ms floor.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	ceiling := rc.baseDelay << (attempt - 1)
	if ceiling <= 0 || ceiling > rc.maxDelay {
		ceiling = rc.maxDelay
	}
	d := time.Duration(rand.Int63n(int64(ceiling) + 1))
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

// retryAfter reads a delay-seconds or HTTP-date Retry-After header.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0), true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
