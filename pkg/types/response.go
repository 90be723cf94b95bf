// Package types holds the JSON envelopes every HTTP response is wrapped in.
package types

// SuccessEnvelope wraps a successful payload as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error. Retryable marks codes such as
// RESOURCE_LOCKED where repeating the same request may succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorEnvelope wraps an APIError as {"error": ...}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
