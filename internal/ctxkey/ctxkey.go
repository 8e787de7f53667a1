// Package ctxkey defines shared context key types used across multiple
// packages. It has no dependencies on other internal packages to avoid
// import cycles.
package ctxkey

// RequestIDKey is the context key type for the per-request correlation ID
// set by the inbound middleware.
type RequestIDKey struct{}

// LoggerKey is the context key type for the request-enriched logger.
type LoggerKey struct{}

// RealIPKey is the context key type for the client IP resolved by the
// inbound middleware. The call trail records it per business call.
type RealIPKey struct{}
