// Package inbound defines the driving-side ports of the gateway.
package inbound

import "context"

// Transport accepts caller requests and drives the gateway services.
type Transport interface {
	// Start begins accepting requests. It blocks until the context is
	// cancelled or a fatal error occurs.
	Start(ctx context.Context) error

	// Close gracefully shuts down the transport.
	Close() error
}
