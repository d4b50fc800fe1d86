package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/decayclock/internal/llm"
)

// DefaultRetryAfter is suggested when a provider throttles without a hint.
const DefaultRetryAfter = 60 * time.Second

// Kind tags a research failure.
type Kind string

const (
	KindAPI        Kind = "api_error"
	KindRateLimit  Kind = "rate_limit"
	KindParse      Kind = "parse_error"
	KindValidation Kind = "validation_error"
)

// Error is a tagged research failure. RetryAfter is only set for rate limits.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func parseError(msg string, err error) *Error {
	return &Error{Kind: KindParse, Message: msg, Err: err}
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// classify maps a provider error onto the research taxonomy.
func classify(err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}

	var rl *llm.RateLimitError
	if errors.As(err, &rl) {
		retry := rl.RetryAfter
		if retry <= 0 {
			retry = DefaultRetryAfter
		}
		return &Error{
			Kind:       KindRateLimit,
			Message:    "Rate limit exceeded. Please try again later.",
			RetryAfter: retry,
			Err:        err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindAPI, Message: "provider timed out", Err: err}
	}

	return &Error{Kind: KindAPI, Message: err.Error(), Err: err}
}
