package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danubesoft/ifn-gateway/internal/domain/audit"
)

// TrailService writes call records asynchronously through a buffered channel
// and a background worker, so the relay hot path never blocks on disk.
type TrailService struct {
	store         audit.Store
	recordChan    chan audit.CallRecord
	wg            sync.WaitGroup
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	channelSize int
	sendTimeout time.Duration // 0 = drop immediately when full
	dropCount   atomic.Int64
}

// TrailOption configures TrailService.
type TrailOption func(*TrailService)

// WithBatchSize sets the number of records batched before a write.
func WithBatchSize(size int) TrailOption {
	return func(s *TrailService) { s.batchSize = size }
}

// WithFlushInterval sets the interval at which partial batches are flushed.
func WithFlushInterval(interval time.Duration) TrailOption {
	return func(s *TrailService) { s.flushInterval = interval }
}

// WithChannelSize sets the record channel buffer size.
func WithChannelSize(size int) TrailOption {
	return func(s *TrailService) {
		s.recordChan = make(chan audit.CallRecord, size)
		s.channelSize = size
	}
}

// WithSendTimeout sets the backpressure timeout. 0 drops immediately when
// the channel is full; >0 blocks up to the duration before dropping.
func WithSendTimeout(timeout time.Duration) TrailOption {
	return func(s *TrailService) { s.sendTimeout = timeout }
}

// NewTrailService creates the service with the given store.
func NewTrailService(store audit.Store, logger *slog.Logger, opts ...TrailOption) *TrailService {
	const defaultChannelSize = 1000
	s := &TrailService{
		store:         store,
		recordChan:    make(chan audit.CallRecord, defaultChannelSize),
		logger:        logger,
		batchSize:     100,
		flushInterval: time.Second,
		channelSize:   defaultChannelSize,
		sendTimeout:   100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background worker.
func (s *TrailService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.worker(ctx)
}

// Record enqueues a call record. A full channel applies backpressure up to
// sendTimeout, then drops the record and counts the drop; the trail must
// never stall a business call.
func (s *TrailService) Record(rec audit.CallRecord) {
	select {
	case s.recordChan <- rec:
		return
	default:
	}

	if s.sendTimeout <= 0 {
		s.recordDrop(rec)
		return
	}

	select {
	case s.recordChan <- rec:
	case <-time.After(s.sendTimeout):
		s.recordDrop(rec)
	}
}

func (s *TrailService) recordDrop(rec audit.CallRecord) {
	drops := s.dropCount.Add(1)
	s.logger.Warn("call record dropped",
		"operation", rec.Operation,
		"request_id", rec.RequestID,
		"total_drops", drops,
	)
}

// DroppedRecords returns the total dropped records, for metrics.
func (s *TrailService) DroppedRecords() int64 {
	return s.dropCount.Load()
}

// GetRecent returns the last n call records, newest first.
func (s *TrailService) GetRecent(n int) []audit.CallRecord {
	return s.store.GetRecent(n)
}

// Stop closes the channel and waits for the worker to flush and exit.
func (s *TrailService) Stop() {
	close(s.recordChan)
	s.wg.Wait()
}

// worker collects records into batches and flushes them on size or interval.
func (s *TrailService) worker(ctx context.Context) {
	defer s.wg.Done()

	batch := make([]audit.CallRecord, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-s.recordChan:
			if !ok {
				if len(batch) > 0 {
					flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					s.flush(flushCtx, batch)
					cancel()
				}
				return
			}
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			for rec := range s.recordChan {
				batch = append(batch, rec)
			}
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				s.flush(flushCtx, batch)
				cancel()
			}
			return
		}
	}
}

// flush writes a batch. Errors are logged, never propagated: the trail must
// not fail relay operations.
func (s *TrailService) flush(ctx context.Context, batch []audit.CallRecord) {
	if err := s.store.Append(ctx, batch...); err != nil {
		s.logger.Error("failed to write call trail batch",
			"error", err,
			"count", len(batch),
		)
	}
}
