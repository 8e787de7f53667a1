// Package outbound defines the driven-side ports of the gateway.
package outbound

import (
	"context"

	"github.com/danubesoft/ifn-gateway/internal/domain/upstream"
)

// BusinessClient sends business payloads to the session-protected upstream.
// Implementations own the session lifecycle: lazy authentication, invalidity
// detection, and the single transparent retry. Callers only ever see a final
// relayed response, an *upstream.AuthError, or an *upstream.ConnectionError.
type BusinessClient interface {
	// EnsureAuthenticated establishes a session if none is believed valid.
	// It is cheap when a session is already established.
	EnsureAuthenticated(ctx context.Context) error

	// Send POSTs payload to the named endpoint, transparently recovering from
	// session invalidation at most once. The returned response may carry any
	// upstream status; business-level errors are not interpreted.
	Send(ctx context.Context, endpoint string, payload []byte) (*upstream.Response, error)
}
