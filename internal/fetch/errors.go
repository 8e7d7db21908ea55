package fetch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a fetch failure.
type Kind string

const (
	// KindRateLimitExhausted means the upstream kept answering HTTP 429 after
	// every permitted rate-limit wait.
	KindRateLimitExhausted Kind = "rate_limit_exhausted"
	// KindUnreachable means every general attempt failed with a transport
	// error or a non-2xx status.
	KindUnreachable Kind = "unreachable"
	// KindMalformedResponse means a 2xx body did not decode as a JSON object
	// or array.
	KindMalformedResponse Kind = "malformed_response"
)

// Sentinels matched by errors.Is against *Error.
var (
	ErrRateLimitExhausted = errors.New("rate limit exhausted")
	ErrUnreachable        = errors.New("upstream unreachable")
	ErrMalformedResponse  = errors.New("malformed response")
)

// Error is returned by Client.Fetch for every non-context failure.
type Error struct {
	Kind       Kind
	Attempts   int
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("fetch: ")
	b.WriteString(e.sentinel().Error())
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the error kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindRateLimitExhausted:
		return ErrRateLimitExhausted
	case KindMalformedResponse:
		return ErrMalformedResponse
	default:
		return ErrUnreachable
	}
}

// statusError captures a non-2xx response from a single attempt.
type statusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
	HasRetry   bool
}

func (e *statusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}
