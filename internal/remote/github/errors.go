package github

import (
	"errors"
	"fmt"
	"net"
)

// Errors returned (wrapped in *FetchError) by Client operations.
//
//	if errors.Is(err, github.ErrRateLimited) {
//	    // back off until the reset window
//	}
var (
	// ErrUnauthorized is returned when the token is missing or rejected.
	ErrUnauthorized = errors.New("github: unauthorized")

	// ErrRateLimited is returned when the API quota is exhausted.
	ErrRateLimited = errors.New("github: rate limit exceeded")

	// ErrServerUnavailable is returned when 5xx responses persist after retries.
	ErrServerUnavailable = errors.New("github: server unavailable")

	// ErrBadLink is returned when a Link header cannot be parsed.
	ErrBadLink = errors.New("github: malformed Link header")
)

// FetchError describes a failed remote request.
type FetchError struct {
	URL string
	// StatusCode is 0 when no response was received
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later attempt may succeed without user action.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
