package codex

import (
	"fmt"
	"strconv"
	"time"
)

// ErrLLM wraps a provider-level failure that isn't cleanly an HTTP status
// (malformed response body, missing content, refused request).
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP wraps a non-2xx response from the provider's wire transport.
// RetryAfter is populated from the Retry-After header when present and acts
// as a floor on the retry backoff delay.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses an HTTP Retry-After header value, which is either a
// delay in seconds or an HTTP-date. Returns 0 if the value can't be parsed.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
