package dune

import (
	"fmt"
	"time"
)

// APIError represents a structured Dune API error response.
type APIError struct {
	StatusCode int            `json:"-"`
	Message    string         `json:"error,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		if e.RequestID != "" {
			return fmt.Sprintf("dune api error: status=%d request_id=%s message=%s", e.StatusCode, e.RequestID, e.Message)
		}
		return fmt.Sprintf("dune api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("dune api error: status=%d request_id=%s", e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("dune api error: status=%d", e.StatusCode)
}

// AuthError indicates a missing or rejected API key (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (check DUNE_API_KEY): %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// NotFoundError indicates an unknown query or execution id.
type NotFoundError struct{ *APIError }

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.APIError.Error()) }

// BadRequestError indicates a 400 validation problem, e.g. bad parameters.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError indicates the plan's credits are exhausted.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError indicates 5xx errors from Dune.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("dune server error: %s", e.APIError.Error()) }

// QueryFailedError reports an execution that ended in a non-completed state.
type QueryFailedError struct {
	ExecutionID string
	State       string
	Message     string
}

func (e *QueryFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("execution %s ended in %s: %s", e.ExecutionID, e.State, e.Message)
	}
	return fmt.Sprintf("execution %s ended in %s", e.ExecutionID, e.State)
}

func (e *AuthError) Unwrap() error          { return e.APIError }
func (e *RateLimitError) Unwrap() error     { return e.APIError }
func (e *NotFoundError) Unwrap() error      { return e.APIError }
func (e *BadRequestError) Unwrap() error    { return e.APIError }
func (e *QuotaExceededError) Unwrap() error { return e.APIError }
func (e *ServerError) Unwrap() error        { return e.APIError }
