package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/pkg/utils"
)

// ErrMissingCredentials marks an advisory provider that has no API key
// configured. The cycle treats it as a configuration error, not a transient
// failure.
var ErrMissingCredentials = errors.New("advisory credentials not configured")

const (
	advisoryMaxAttempts = 3
	advisoryRetryDelay  = 2 * time.Second
)

// AdvisoryRepository produces trading advice for a full cycle context.
// The warnings slice carries parser degradations that are not errors.
type AdvisoryRepository interface {
	GetAdvice(ctx context.Context, req *dto.AdvisoryRequest) (*dto.AdvisoryResult, []string, error)
}

// advisoryStatusError classifies a non-OK provider response. Rate-limit and
// overload statuses are retryable, honoring a Retry-After header when the
// server sent one.
func advisoryStatusError(provider string, resp *http.Response, body []byte) error {
	err := fmt.Errorf("received non-OK response from %s API: %d - %s", provider, resp.StatusCode, string(body))
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, 529:
		return &utils.RetryableError{Err: err, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	return err
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
