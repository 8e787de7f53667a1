// Package memory provides in-memory implementations of outbound ports, used
// when persistence is disabled and in tests.
package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/danubesoft/ifn-gateway/internal/domain/audit"
)

const defaultRecentCap = 1000

// TrailStore implements audit.Store by writing JSON lines to a writer and
// keeping a bounded in-memory buffer for recent record queries. The default
// writer is stdout, so a gateway run without a trail directory still emits
// its call trail to the process output.
type TrailStore struct {
	encoder *json.Encoder
	writer  io.Writer
	mu      sync.Mutex
	recent  []audit.CallRecord
	cap     int
}

func resolveCapacity(capacity ...int) int {
	if len(capacity) > 0 && capacity[0] > 0 {
		return capacity[0]
	}
	return defaultRecentCap
}

// NewTrailStore creates a trail store writing to stdout. An optional
// capacity parameter sets the recent-buffer size (default 1000).
func NewTrailStore(capacity ...int) *TrailStore {
	return NewTrailStoreWithWriter(os.Stdout, capacity...)
}

// NewTrailStoreWithWriter creates a trail store writing to w.
func NewTrailStoreWithWriter(w io.Writer, capacity ...int) *TrailStore {
	c := resolveCapacity(capacity...)
	return &TrailStore{
		encoder: json.NewEncoder(w),
		writer:  w,
		recent:  make([]audit.CallRecord, 0, c),
		cap:     c,
	}
}

// Append writes records as JSON lines and buffers them for GetRecent.
func (s *TrailStore) Append(_ context.Context, records ...audit.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if err := s.encoder.Encode(r); err != nil {
			return err
		}
		if len(s.recent) >= s.cap {
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = r
		} else {
			s.recent = append(s.recent, r)
		}
	}
	return nil
}

// GetRecent returns the n most recent records, newest first.
func (s *TrailStore) GetRecent(n int) []audit.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.recent)
	if n > total {
		n = total
	}
	if n <= 0 {
		return nil
	}
	result := make([]audit.CallRecord, n)
	for i := 0; i < n; i++ {
		result[i] = s.recent[total-1-i]
	}
	return result
}

// Flush is a no-op; records are written synchronously.
func (s *TrailStore) Flush(_ context.Context) error {
	return nil
}

// Close closes the writer when it is a regular file.
func (s *TrailStore) Close() error {
	if f, ok := s.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

var _ audit.Store = (*TrailStore)(nil)
