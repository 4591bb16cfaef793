package adapter

import (
	"fmt"
	"time"
)

// Kind is the canonical error taxonomy (spec §7). The string value doubles
// as the external `error.code` in HTTP/SSE error bodies.
type Kind string

const (
	KindInvalidRunOptions         Kind = "invalid_run_options"
	KindInvalidTemplate           Kind = "invalid_template"
	KindInvalidFile               Kind = "invalid_file"
	KindBadRequest                Kind = "bad_request"
	KindMaxTokensExceeded         Kind = "max_tokens_exceeded"
	KindContentModeration         Kind = "content_moderation"
	KindFailedGeneration          Kind = "failed_generation"
	KindStructuredGenerationError Kind = "structured_generation_error"
	KindReadTimeout               Kind = "read_timeout"
	KindProviderInternal          Kind = "provider_internal"
	KindRateLimit                 Kind = "rate_limit"
	KindModelDoesNotSupportMode   Kind = "model_does_not_support_mode"
	KindUnpriceableRun            Kind = "unpriceable_run"
	KindInsufficientCredits       Kind = "insufficient_credits"
	KindClientDisconnect          Kind = "client_disconnect"
	KindInternal                  Kind = "internal"
)

// retryForever holds kinds the runner may retry across fallback attempts
// without limit on attempt count (bounded instead by the fallback chain and
// per-attempt retry budget).
var retryForever = map[Kind]bool{
	KindReadTimeout:      true,
	KindProviderInternal: true,
	KindRateLimit:        true,
}

// retryOnce holds kinds eligible for exactly one retry of the same attempt
// (§7: "failed_generation" and "structured_generation_error").
var retryOnce = map[Kind]bool{
	KindFailedGeneration:          true,
	KindStructuredGenerationError: true,
}

// Error is the canonical provider error, carrying enough structure for the
// runner's fallback decision and for the HTTP/SSE error body (§6).
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Details    map[string]interface{}
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retriable reports whether this error is one of the "forever" kinds the
// runner may retry and fall back on. The "once" kinds are reported by
// RetriableOnce instead, not here.
func (e *Error) Retriable() bool {
	return retryForever[e.Kind]
}

// RetriableOnce reports whether this error is eligible for a single retry of
// the same (provider, model) attempt rather than a fallback.
func (e *Error) RetriableOnce() bool {
	return retryOnce[e.Kind]
}

// NewError constructs an *Error, the uniform way every adapter reports
// failures to the runner.
func NewError(kind Kind, statusCode int, message string) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Message: message}
}

// HTTPStatus maps a Kind to the external status code (spec §6).
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRunOptions, KindInvalidTemplate, KindInvalidFile, KindBadRequest,
		KindMaxTokensExceeded, KindContentModeration, KindFailedGeneration,
		KindStructuredGenerationError, KindModelDoesNotSupportMode, KindUnpriceableRun:
		return 400
	case KindInsufficientCredits:
		return 402
	case KindRateLimit:
		return 429
	case KindReadTimeout, KindProviderInternal:
		return 502
	case KindClientDisconnect:
		return 499
	default:
		return 500
	}
}
