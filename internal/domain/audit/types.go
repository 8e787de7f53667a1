// Package audit contains domain types for the gateway call trail.
package audit

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Outcome constants for call records.
const (
	// OutcomeRelayed means an upstream response was relayed to the caller.
	OutcomeRelayed = "relayed"
	// OutcomeConnectionError means the upstream was unreachable.
	OutcomeConnectionError = "connection_error"
	// OutcomeAuthFailed means session establishment failed.
	OutcomeAuthFailed = "auth_failed"
	// OutcomeRejected means the request never left the gateway (bad input,
	// failed inbound authentication).
	OutcomeRejected = "rejected"
)

// CallRecord represents one business call through the gateway.
type CallRecord struct {
	// Timestamp is when the inbound request was received.
	Timestamp time.Time `json:"timestamp"`
	// RequestID correlates the record with inbound logs.
	RequestID string `json:"request_id"`
	// Operation is the gateway operation name (listaMesaje, stareMesaj, ...).
	Operation string `json:"operation"`
	// Endpoint is the upstream endpoint the payload was sent to.
	Endpoint string `json:"endpoint"`
	// Outcome is one of the Outcome constants.
	Outcome string `json:"outcome"`
	// UpstreamStatus is the relayed HTTP status, 0 when nothing was relayed.
	UpstreamStatus int `json:"upstream_status,omitempty"`
	// Retried is true when the session had to be re-established mid-call.
	Retried bool `json:"retried,omitempty"`
	// LatencyMicros is the end-to-end call latency in microseconds.
	LatencyMicros int64 `json:"latency_micros"`
	// PayloadDigest fingerprints the outbound XML payload without storing
	// it. Taxpayer identifiers never land in the trail.
	PayloadDigest string `json:"payload_digest,omitempty"`
	// SourceIP is the caller's address.
	SourceIP string `json:"source_ip,omitempty"`
	// Error is the error message for non-relayed outcomes.
	Error string `json:"error,omitempty"`
}

// FingerprintPayload returns a short stable digest of a payload. xxhash is
// non-cryptographic; the digest is for correlation, not secrecy of content.
func FingerprintPayload(payload []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(payload))
}
