package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/queue"
)

func testConfig() *config.Snapshot {
	return &config.Snapshot{
		MaxInflight:      1,
		MaxQueueSize:     1,
		EnableQueue:      true,
		RetryAfterMinSec: 1,
		RetryAfterMaxSec: 60,
		RetryAfterAlpha:  0.2,
	}
}

func TestAcquireRelease_RoundTrip(t *testing.T) {
	m := queue.New(testConfig())
	slot, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Inflight() != 1 {
		t.Fatalf("expected inflight 1, got %d", m.Inflight())
	}
	slot.Release()
	if m.Inflight() != 0 {
		t.Fatalf("expected inflight 0 after release, got %d", m.Inflight())
	}
}

func TestRelease_DoesNotRecordDurationAlone(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAfterMinSec = 2
	cfg.RetryAfterMaxSec = 60
	m := queue.New(cfg)

	slot, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slot.Release()

	// No RecordSuccess call was made, so the EMA stays uninitialized and
	// EstimateRetryAfter falls back to retryAfterMinSec.
	got := m.EstimateRetryAfter(-1)
	if got != cfg.RetryAfterMinSec {
		t.Fatalf("expected estimate to stay at retryAfterMinSec (%d) when no success was recorded, got %d", cfg.RetryAfterMinSec, got)
	}
}

func TestSlot_RecordSuccessFeedsEMA(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAfterMinSec = 1
	cfg.RetryAfterMaxSec = 60
	m := queue.New(cfg)

	slot, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	slot.RecordSuccess()
	slot.Release()

	if m.EstimateRetryAfter(-1) < cfg.RetryAfterMinSec {
		t.Fatalf("expected EstimateRetryAfter to reflect the recorded duration")
	}
}

func TestAcquire_BusyErrorWhenQueueingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableQueue = false
	m := queue.New(cfg)

	slot, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error acquiring first slot: %v", err)
	}
	defer slot.Release()

	_, err = m.Acquire(context.Background())
	var busy *queue.BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected BusyError, got %v", err)
	}
}

func TestAcquire_OverflowWhenQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 0
	m := queue.New(cfg)

	slot, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer slot.Release()

	done := make(chan error, 1)
	go func() {
		_, err := m.Acquire(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		var overflow *queue.OverflowError
		if !errors.As(err, &overflow) {
			t.Fatalf("expected OverflowError, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("second acquire should have failed immediately with overflow")
	}
}

func TestEstimateRetryAfter_ClampsToBounds(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAfterMinSec = 2
	cfg.RetryAfterMaxSec = 5
	m := queue.New(cfg)

	m.RecordDuration(100 * time.Second) // would blow past the max unclamped
	got := m.EstimateRetryAfter(1)
	if got < cfg.RetryAfterMinSec || got > cfg.RetryAfterMaxSec {
		t.Fatalf("expected estimate within [%d,%d], got %d", cfg.RetryAfterMinSec, cfg.RetryAfterMaxSec, got)
	}
}

func TestEstimateRetryAfter_UnknownWaitersAssumesOneBatch(t *testing.T) {
	cfg := testConfig()
	m := queue.New(cfg)
	m.RecordDuration(3 * time.Second)

	got := m.EstimateRetryAfter(-1)
	if got < 1 {
		t.Fatalf("expected positive retry-after estimate, got %d", got)
	}
}
