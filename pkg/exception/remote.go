package exception

import (
	"errors"
	"fmt"
)

// Remote call errors.
var (
	ErrAuthentication = errors.New("remote: authentication required")
	ErrNotFound       = errors.New("remote: not found")
	ErrConflict       = errors.New("remote: already exists")
	ErrNetwork        = errors.New("remote: network failure")
	ErrRateLimited    = errors.New("remote: rate limited")
	ErrBadResponse    = errors.New("remote: unexpected response")
)

// RateLimitError несёт время ожидания из ответа 429.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// APIError — прочие не-2xx ответы или status != "success".
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: http %d", e.Status)
	}
	return fmt.Sprintf("api error: http %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return ErrBadResponse }
