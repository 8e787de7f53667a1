// Package upstream contains domain types for the BANCIWS upstream:
// the relayed response, the error taxonomy, and the response classifier
// that detects session invalidation from heuristic signals.
package upstream

import "fmt"

// Response is the outcome of a business POST, relayed verbatim to the caller.
type Response struct {
	// StatusCode is the final HTTP status returned by the upstream.
	StatusCode int
	// ContentType is the upstream Content-Type header.
	ContentType string
	// Body is the response body (capped by the client to prevent OOM).
	Body []byte
	// Retried reports whether this response came from the post-reauthentication
	// retry rather than the first attempt.
	Retried bool
}

// ConnectionError is a transport-level failure (DNS, TCP, TLS handshake,
// timeout) at any outbound call. It is never retried.
type ConnectionError struct {
	// Op names the call that failed: "bootstrap" or the endpoint name.
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("upstream connection failed during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError means the access-control layer rejected or did not honor the
// TLS identity: the bootstrap probe was classified as failed.
type AuthError struct {
	// StatusCode is the final status of the probe (0 if the failure was
	// signature-based rather than status-based).
	StatusCode int
	// Reason describes the failing classification signal.
	Reason string
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream authentication failed: %s (status %d)", e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("upstream authentication failed: %s", e.Reason)
}
