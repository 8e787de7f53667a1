package audit

import "context"

// Store persists call records.
// Interface owned by domain per hexagonal architecture.
type Store interface {
	// Append stores call records.
	Append(ctx context.Context, records ...CallRecord) error

	// GetRecent returns the last n records, newest first.
	GetRecent(n int) []CallRecord

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}
