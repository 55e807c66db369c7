package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
)

var (
	// ErrNotConfigured means no API key is available.
	ErrNotConfigured = errors.New("LLM API key is not configured")

	// ErrNetwork means the provider could not be reached.
	ErrNetwork = errors.New("network error talking to the LLM provider")

	// ErrUnauthorized means the provider rejected the API key.
	ErrUnauthorized = errors.New("unauthorized with the LLM provider, verify the API key")

	// ErrRateLimited means the provider throttled the request.
	ErrRateLimited = errors.New("rate limited by the LLM provider, please wait and try again")

	// ErrModelUnavailable means every candidate model was missing or retired.
	ErrModelUnavailable = errors.New("no configured model is available")

	// ErrResponseFormat means the model does not support the requested response format.
	ErrResponseFormat = errors.New("model does not support response_format")
)

// modelUnavailableMarkers are substrings of provider messages for a missing
// or decommissioned model.
var modelUnavailableMarkers = []string{
	"decommissioned",
	"not found",
	"is not supported",
	"no longer supported",
	"unknown model",
}

// RateLimitError is returned on HTTP 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRateLimited, e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// IsRateLimitError reports whether err is (or wraps) a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// NormalizeError maps a raw client error to one of the package sentinels so
// handlers can show a short, actionable message.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotConfigured, ErrNetwork, ErrUnauthorized, ErrRateLimited, ErrModelUnavailable, ErrResponseFormat} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return ErrUnauthorized
		case apiErr.StatusCode == http.StatusTooManyRequests:
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{Message: msg, RetryAfter: retryAfter, StatusCode: apiErr.StatusCode}
		case isModelUnavailable(err):
			return fmt.Errorf("%w: %s", ErrModelUnavailable, msg)
		case strings.Contains(strings.ToLower(msg), "response_format"):
			return fmt.Errorf("%w: %s", ErrResponseFormat, msg)
		case msg != "":
			return fmt.Errorf("LLM provider error (status %d): %s", apiErr.StatusCode, msg)
		default:
			return fmt.Errorf("LLM provider error (status %d)", apiErr.StatusCode)
		}
	}

	if isNetworkError(err) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "401"):
		return ErrUnauthorized
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return &RateLimitError{Message: err.Error(), StatusCode: http.StatusTooManyRequests}
	case strings.Contains(lower, "response_format"):
		return fmt.Errorf("%w: %v", ErrResponseFormat, err)
	}
	return err
}

// isModelUnavailable reports whether a request failed because the model is
// missing or retired, in which case the next fallback model is tried.
func isModelUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range modelUnavailableMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isTransient reports whether a failed attempt is worth repeating against the
// same model: connection resets and timeouts.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "reset by peer")
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range []string{"connection refused", "no such host", "connection reset", "eof"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
