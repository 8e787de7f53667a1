package service

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/danubesoft/ifn-gateway/internal/adapter/outbound/memory"
	"github.com/danubesoft/ifn-gateway/internal/domain/audit"
)

func TestTrailService_RecordAndFlush(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewTrailStoreWithWriter(&bytes.Buffer{})
	trail := NewTrailService(store, testLogger(),
		WithBatchSize(10),
		WithFlushInterval(10*time.Millisecond),
	)
	trail.Start(context.Background())

	trail.Record(audit.CallRecord{RequestID: "req-1", Operation: "lista-mesaje"})

	rec := waitForRecord(t, store)
	if rec.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", rec.RequestID)
	}

	trail.Stop()
}

func TestTrailService_StopFlushesPending(t *testing.T) {
	store := memory.NewTrailStoreWithWriter(&bytes.Buffer{})
	// Large batch and long interval: nothing flushes until Stop.
	trail := NewTrailService(store, testLogger(),
		WithBatchSize(1000),
		WithFlushInterval(time.Hour),
	)
	trail.Start(context.Background())

	for i := 0; i < 5; i++ {
		trail.Record(audit.CallRecord{RequestID: "req-" + strconv.Itoa(i)})
	}
	trail.Stop()

	if got := len(store.GetRecent(100)); got != 5 {
		t.Errorf("records after Stop = %d, want 5", got)
	}
}

func TestTrailService_BatchTriggersEarlyFlush(t *testing.T) {
	store := memory.NewTrailStoreWithWriter(&bytes.Buffer{})
	trail := NewTrailService(store, testLogger(),
		WithBatchSize(2),
		WithFlushInterval(time.Hour),
	)
	trail.Start(context.Background())
	defer trail.Stop()

	trail.Record(audit.CallRecord{RequestID: "a"})
	trail.Record(audit.CallRecord{RequestID: "b"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.GetRecent(10)) == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("full batch was not flushed before the interval tick")
}

func TestTrailService_DropsWhenFull(t *testing.T) {
	store := memory.NewTrailStoreWithWriter(&bytes.Buffer{})
	// Worker never started: the channel only fills.
	trail := NewTrailService(store, testLogger(),
		WithChannelSize(1),
		WithSendTimeout(0),
	)

	trail.Record(audit.CallRecord{RequestID: "kept"})
	trail.Record(audit.CallRecord{RequestID: "dropped"})

	if got := trail.DroppedRecords(); got != 1 {
		t.Errorf("DroppedRecords() = %d, want 1", got)
	}
}

func TestTrailService_ConcurrentRecorders(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewTrailStoreWithWriter(&bytes.Buffer{})
	trail := NewTrailService(store, testLogger(),
		WithBatchSize(16),
		WithFlushInterval(10*time.Millisecond),
	)
	trail.Start(context.Background())

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trail.Record(audit.CallRecord{RequestID: "req-" + strconv.Itoa(i)})
		}(i)
	}
	wg.Wait()
	trail.Stop()

	if got := len(store.GetRecent(n + 10)); got != n {
		t.Errorf("records = %d, want %d (none dropped with room in the channel)", got, n)
	}
}
