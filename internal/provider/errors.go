package provider

import "fmt"

// AuthError indicates an expired or invalid credential that could not be
// refreshed. It is fatal to the operation that raised it.
type AuthError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s auth failed: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s auth failed: %s", e.Provider, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError wraps a transport or HTTP failure from a mailbox back-end.
// StatusCode is zero when the failure happened below the HTTP layer.
type APIError struct {
	Provider   string
	StatusCode int
	Op         string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error during %s (HTTP %d): %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error during %s: %v", e.Provider, e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }
