package search

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers. The polling engine treats ErrAuth as
// fatal to the whole system; everything else is fatal only to the watch
// being polled.
var (
	// ErrAuth is returned on HTTP 403. Never retried.
	ErrAuth = errors.New("search: authentication rejected (403)")

	// ErrRateLimited is returned on HTTP 429. Never retried.
	ErrRateLimited = errors.New("search: rate limited (429)")

	// ErrTimeout is returned when a request times out after all attempts.
	ErrTimeout = errors.New("search: request timed out")
)

// ServerError is a 5xx response that survived the retry budget.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("search: server error %d (retries exhausted)", e.Status)
}

// ClientError is a non-403, non-429 4xx response. These indicate a caller
// defect and are never retried.
type ClientError struct {
	Status int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("search: client error %d", e.Status)
}
