// Package queue shapes admission into the bounded translation-inflight
// semaphore: a waiting counter with an overflow check when queueing is
// enabled, an immediate-reject check when it is not, and an exponential
// moving average of request duration used to estimate Retry-After. Ported
// from queue_manager.py's semaphore + waiting-counter + EMA design onto
// Go's sync primitives and channels, enriched with an independent
// token-bucket limiter that caps the rate of new waiter admission.
package queue

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/valpere/peretran-nmt/internal/config"
)

// OverflowError reports that the waiting queue is full while queueing is
// enabled.
type OverflowError struct {
	Waiters int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("translation queue is full (%d waiters)", e.Waiters)
}

// BusyError reports that the service has no free inflight slot and
// queueing is disabled.
type BusyError struct{}

func (e *BusyError) Error() string { return "translation service is busy" }

// Manager bounds concurrent translation work with a counting semaphore,
// tracks waiters and inflight count, and estimates Retry-After from a
// running average of recent durations.
type Manager struct {
	sem chan struct{}

	mu             sync.Mutex
	waiting        int
	inflight       int
	avgDurationSec float64

	maxInflight    int
	maxQueueSize   int
	enableQueue    bool
	retryMinSec    int
	retryMaxSec    int
	retryAlpha     float64

	limiter *rate.Limiter // nil when admission-rate limiting is disabled
}

// New builds a Manager from a config.Snapshot.
func New(cfg *config.Snapshot) *Manager {
	m := &Manager{
		sem:          make(chan struct{}, cfg.MaxInflight),
		maxInflight:  cfg.MaxInflight,
		maxQueueSize: cfg.MaxQueueSize,
		enableQueue:  cfg.EnableQueue,
		retryMinSec:  cfg.RetryAfterMinSec,
		retryMaxSec:  cfg.RetryAfterMaxSec,
		retryAlpha:   cfg.RetryAfterAlpha,
	}
	if cfg.EnableAdmissionRate {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.AdmissionRatePerSec), cfg.AdmissionBurst)
	}
	return m
}

// Slot represents one acquired inflight translation slot; Release must be
// called exactly once to free it.
type Slot struct {
	m         *Manager
	acquired  bool
	startTime time.Time
}

// Acquire blocks until a translation slot is available, enforcing the
// configured admission policy first: when an admission-rate limiter is
// configured, new waiters must pass its token check before even joining
// the wait; when queueing is disabled, a full semaphore is rejected
// immediately rather than queued.
func (m *Manager) Acquire(ctx context.Context) (*Slot, error) {
	if m.limiter != nil && !m.limiter.Allow() {
		return nil, &OverflowError{Waiters: m.Waiting()}
	}

	if !m.enableQueue {
		select {
		case m.sem <- struct{}{}:
			m.mu.Lock()
			m.inflight++
			m.mu.Unlock()
			return &Slot{m: m, acquired: true, startTime: time.Now()}, nil
		default:
			return nil, &BusyError{}
		}
	}

	m.mu.Lock()
	m.waiting++
	wc := m.waiting
	full := len(m.sem) == cap(m.sem)
	m.mu.Unlock()

	if full && wc > m.maxQueueSize {
		m.mu.Lock()
		m.waiting--
		m.mu.Unlock()
		return nil, &OverflowError{Waiters: wc}
	}

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		m.mu.Lock()
		m.waiting--
		m.mu.Unlock()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	m.waiting--
	m.inflight++
	m.mu.Unlock()

	return &Slot{m: m, acquired: true, startTime: time.Now()}, nil
}

// Release frees the slot. It does not record a duration: the Retry-After
// EMA only reflects calls that produced output, so callers record that
// explicitly via RecordSuccess before or after releasing.
func (s *Slot) Release() {
	if !s.acquired {
		return
	}
	s.acquired = false
	<-s.m.sem

	s.m.mu.Lock()
	if s.m.inflight > 0 {
		s.m.inflight--
	}
	s.m.mu.Unlock()
}

// Elapsed returns the time since the slot was acquired.
func (s *Slot) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// RecordSuccess folds the slot's elapsed duration into the Retry-After EMA.
// Call only when the request produced usable output; failed, cancelled, or
// timed-out requests must not skew the estimate.
func (s *Slot) RecordSuccess() {
	s.m.RecordDuration(s.Elapsed())
}

// RecordDuration folds duration into the exponential moving average used
// by EstimateRetryAfter.
func (m *Manager) RecordDuration(d time.Duration) {
	sec := d.Seconds()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.avgDurationSec <= 0 {
		m.avgDurationSec = sec
		return
	}
	m.avgDurationSec = (1.0-m.retryAlpha)*m.avgDurationSec + m.retryAlpha*sec
}

// EstimateRetryAfter returns a Retry-After value in seconds, clamped to
// [retryMinSec, retryMaxSec]. waiters < 0 means "unknown; assume at least
// one batch ahead".
func (m *Manager) EstimateRetryAfter(waiters int) int {
	m.mu.Lock()
	base := m.avgDurationSec
	cap := m.maxInflight
	m.mu.Unlock()

	if base <= 0 {
		base = float64(m.retryMinSec)
	}
	if base < float64(m.retryMinSec) {
		base = float64(m.retryMinSec)
	}
	if cap < 1 {
		cap = 1
	}

	var est float64
	if waiters < 0 {
		est = base
	} else {
		est = (float64(waiters) / float64(cap)) * base
	}

	if est < float64(m.retryMinSec) {
		est = float64(m.retryMinSec)
	}
	if est > float64(m.retryMaxSec) {
		est = float64(m.retryMaxSec)
	}

	result := int(math.Ceil(est))
	if result < 1 {
		result = 1
	}
	return result
}

// Waiting returns the current number of requests waiting for a slot.
func (m *Manager) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

// Inflight returns the current number of in-progress translations.
func (m *Manager) Inflight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight
}
