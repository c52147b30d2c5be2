package llmrouter

import (
	"errors"
	"fmt"
	"strings"
)

// CoreError is the base error type for the orchestration layer.
type CoreError struct {
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// ErrorClass decides how the fallback loop treats a failure: transient
// failures advance to the next candidate, validation failures abort the
// whole orchestration.
type ErrorClass string

const (
	ClassTransient  ErrorClass = "transient"
	ClassValidation ErrorClass = "validation"
)

// Stable classifier codes carried on ProviderError.Code.
const (
	CodeRateLimit      = "rate_limit"
	CodeOverloaded     = "overloaded"
	CodeAuth           = "auth"
	CodeBilling        = "billing"
	CodeTimeout        = "timeout"
	CodeServer         = "server_error"
	CodeNetwork        = "network"
	CodeNotFound       = "not_found"
	CodeContextLength  = "context_length"
	CodeInvalidRequest = "invalid_request"
	CodeMalformed      = "malformed_response"
)

// ProviderError represents a classified failure from one provider.
type ProviderError struct {
	CoreError
	Provider   string
	StatusCode int
	Code       string
	Class      ErrorClass
	Retryable  bool
	RetryAfter *float64 // seconds, from a Retry-After hint
}

func (e *ProviderError) Error() string {
	provider := e.Provider
	if provider == "" {
		provider = "request"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] %s (status=%d, class=%s)", provider, e.Message, e.StatusCode, e.Class)
	}
	return fmt.Sprintf("[%s] %s (class=%s)", provider, e.Message, e.Class)
}

// ProviderValidationError means the caller's request is malformed for any
// provider. It aborts the orchestration without trying other candidates.
type ProviderValidationError struct{ ProviderError }

// ProviderTransientError means one candidate failed in a way the next
// candidate may survive: timeout, rate limit, or a server-side failure.
type ProviderTransientError struct{ ProviderError }

// ConfigurationError means no configured provider exists for the requested
// capability. Fatal, surfaced immediately, never retried.
type ConfigurationError struct {
	CoreError
	Capability Capability
}

// AbortError means the caller's context ended while the pipeline was still
// working. It is neither transient nor validation: nothing is retried.
type AbortError struct{ CoreError }

// BudgetExceededError is returned instead of calling any provider when the
// monthly budget is exhausted and the hard-stop flag is set.
type BudgetExceededError struct {
	CoreError
	Spent  float64
	Budget float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("monthly budget exhausted: spent $%.4f of $%.4f", e.Spent, e.Budget)
}

// Attempt records why one candidate failed, in the order candidates were
// tried. LatencyMS is wall time spent on that candidate including its
// internal retries.
type Attempt struct {
	Provider  string     `json:"provider"`
	Class     ErrorClass `json:"class"`
	Reason    string     `json:"reason"`
	LatencyMS int64      `json:"latency_ms"`
	Err       error      `json:"-"`
}

// AllProvidersFailedError means every candidate was exhausted. Attempts holds
// one entry per provider tried, in priority order, so callers can see which
// providers were tried and why each failed without any raw vendor error
// leaking through.
type AllProvidersFailedError struct {
	CoreError
	Capability Capability
	Attempts   []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = fmt.Sprintf("%s: %s", a.Provider, a.Reason)
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Capability, strings.Join(reasons, "; "))
}

// ErrUnsupportedOperation is returned by adapters asked for an operation
// outside their capability set. The registry's capability filter keeps such
// adapters out of candidate lists, so seeing this error means a descriptor
// advertises more than its adapter implements.
var ErrUnsupportedOperation = errors.New("operation not supported by this provider")

// NewValidationError builds a request-level validation error not tied to any
// provider. Ingress layers use it to reject malformed input with the same
// taxonomy the orchestration loop reports.
func NewValidationError(message string) *ProviderValidationError {
	return validationError("", message)
}

func validationError(provider, message string) *ProviderValidationError {
	return &ProviderValidationError{ProviderError{
		CoreError: CoreError{Message: message},
		Provider:  provider,
		Code:      CodeInvalidRequest,
		Class:     ClassValidation,
	}}
}

func transientError(provider, message, code string, retryable bool) *ProviderTransientError {
	return &ProviderTransientError{ProviderError{
		CoreError: CoreError{Message: message},
		Provider:  provider,
		Code:      code,
		Class:     ClassTransient,
		Retryable: retryable,
	}}
}

// ErrorFromStatusCode maps an HTTP status code from a vendor into the
// taxonomy. 4xx codes describing the caller's payload are validation; auth,
// quota, and availability problems are transient so the fallback loop can
// try the next candidate (only rate limits, timeouts, and 5xx are worth an
// adapter-internal retry against the same provider).
func ErrorFromStatusCode(provider string, statusCode int, message string, retryAfter *float64) error {
	pe := ProviderError{
		CoreError:  CoreError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		RetryAfter: retryAfter,
	}

	switch statusCode {
	case 400, 422:
		pe.Class = ClassValidation
		pe.Code = CodeInvalidRequest
		return &ProviderValidationError{pe}
	case 413:
		pe.Class = ClassValidation
		pe.Code = CodeContextLength
		return &ProviderValidationError{pe}
	case 401, 403:
		pe.Class = ClassTransient
		pe.Code = CodeAuth
		return &ProviderTransientError{pe}
	case 402:
		pe.Class = ClassTransient
		pe.Code = CodeBilling
		return &ProviderTransientError{pe}
	case 404:
		pe.Class = ClassTransient
		pe.Code = CodeNotFound
		return &ProviderTransientError{pe}
	case 408:
		pe.Class = ClassTransient
		pe.Code = CodeTimeout
		pe.Retryable = true
		return &ProviderTransientError{pe}
	case 429:
		pe.Class = ClassTransient
		pe.Code = CodeRateLimit
		pe.Retryable = true
		return &ProviderTransientError{pe}
	case 500, 502, 503, 504:
		pe.Class = ClassTransient
		pe.Code = CodeServer
		pe.Retryable = true
		return &ProviderTransientError{pe}
	default:
		pe.Class = ClassTransient
		pe.Code = CodeServer
		pe.Retryable = true
		return &ProviderTransientError{pe}
	}
}

// ClassifyMessage classifies a vendor error by message content, for SDKs
// that do not surface structured status codes.
func ClassifyMessage(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	wrap := func(e *ProviderTransientError) error {
		e.Cause = err
		return e
	}

	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		e := transientError(provider, msg, CodeRateLimit, true)
		return wrap(e)
	case strings.Contains(lower, "overloaded") || strings.Contains(lower, "capacity"):
		e := transientError(provider, msg, CodeOverloaded, true)
		return wrap(e)
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "401") || strings.Contains(lower, "invalid api key") || strings.Contains(lower, "invalid key") || strings.Contains(lower, "forbidden") || strings.Contains(lower, "403"):
		e := transientError(provider, msg, CodeAuth, false)
		return wrap(e)
	case strings.Contains(lower, "billing") || strings.Contains(lower, "quota") || strings.Contains(lower, "payment"):
		e := transientError(provider, msg, CodeBilling, false)
		return wrap(e)
	case strings.Contains(lower, "context length") || strings.Contains(lower, "context window") || strings.Contains(lower, "too many tokens"):
		v := validationError(provider, msg)
		v.Code = CodeContextLength
		v.Cause = err
		return v
	case strings.Contains(lower, "invalid request") || strings.Contains(lower, "400") || strings.Contains(lower, "422"):
		v := validationError(provider, msg)
		v.Cause = err
		return v
	case strings.Contains(lower, "not found") || strings.Contains(lower, "404"):
		e := transientError(provider, msg, CodeNotFound, false)
		return wrap(e)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") || strings.Contains(lower, "deadline exceeded"):
		e := transientError(provider, msg, CodeTimeout, true)
		return wrap(e)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") || strings.Contains(lower, "connection reset"):
		e := transientError(provider, msg, CodeNetwork, true)
		return wrap(e)
	default:
		e := transientError(provider, msg, CodeServer, true)
		return wrap(e)
	}
}

// IsValidation reports whether err aborts the orchestration instead of
// advancing to the next candidate.
func IsValidation(err error) bool {
	var ve *ProviderValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err is a candidate-local failure the fallback
// loop recovers from.
func IsTransient(err error) bool {
	var te *ProviderTransientError
	return errors.As(err, &te)
}

// IsRetryable reports whether err is worth an adapter-internal retry against
// the same provider.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *ProviderTransientError
	if errors.As(err, &te) {
		return te.Retryable
	}
	var ve *ProviderValidationError
	if errors.As(err, &ve) {
		return false
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return false
	}
	var ae *AbortError
	if errors.As(err, &ae) {
		return false
	}
	// Unclassified errors default to retryable.
	return true
}

// RetryAfterSeconds extracts a Retry-After hint if err carries one.
func RetryAfterSeconds(err error) *float64 {
	var te *ProviderTransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return nil
}

// failureReason renders a compact, vendor-neutral reason for an Attempt.
func failureReason(err error) string {
	var te *ProviderTransientError
	if errors.As(err, &te) {
		if te.StatusCode != 0 {
			return fmt.Sprintf("%s (status %d)", te.Code, te.StatusCode)
		}
		return te.Code
	}
	var ve *ProviderValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return "error"
}
