package quizapi

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// maxRetryAfter caps how long a single Retry-After may stall a request.
const maxRetryAfter = 30 * time.Second

// RetryTransport retries requests answered with 429 Too Many Requests,
// honouring the Retry-After header.
type RetryTransport struct {
	base       http.RoundTripper
	maxRetries int
}

// WithRetryAfter wraps base so throttled requests are retried up to maxRetries times.
func WithRetryAfter(base http.RoundTripper, maxRetries int) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{base: base, maxRetries: maxRetries}
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified; each attempt sends a clone with its own copy of the body.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if err := req.Body.Close(); err != nil {
			return nil, fmt.Errorf("close request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		out := req.Clone(req.Context())
		if bodyBytes != nil {
			out.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			out.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(bodyBytes)), nil
			}
			out.ContentLength = int64(len(bodyBytes))
		}

		resp, err := t.base.RoundTrip(out)
		if err != nil {
			return resp, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= t.maxRetries {
			return resp, nil
		}

		wait := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if wait <= 0 {
			return resp, nil
		}
		if err := resp.Body.Close(); err != nil {
			return nil, fmt.Errorf("close throttled response body: %w", err)
		}

		slog.Warn("Quiz service throttled request, retrying",
			"path", req.URL.Path,
			"attempt", attempt+1,
			"wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	var wait time.Duration
	if seconds, err := strconv.Atoi(v); err == nil {
		wait = time.Duration(seconds) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		wait = at.Sub(now)
	}
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait
}
