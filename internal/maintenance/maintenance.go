// Package maintenance runs the periodic background upkeep the model cache
// needs beyond its own request-triggered eviction: idle models that haven't
// been touched in a while are released even without new cache pressure.
// Idle eviction is the only task it runs; it does not clear any device
// scratch cache.
package maintenance

import (
	"fmt"
	"os"
	"time"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/modelcache"
)

// Start launches a ticker goroutine that evicts idle cache entries every
// cfg.MaintenanceInterval. It returns a stop function that halts the
// goroutine; calling it more than once is safe. If MaintenanceInterval is
// <= 0, maintenance is disabled and stop is a no-op. An
// IdleEvictionTimeoutSec of 0 makes every entry idle at each tick.
func Start(cfg *config.Snapshot, cache *modelcache.Cache) (stop func()) {
	if cfg.MaintenanceInterval <= 0 {
		return func() {}
	}

	idleTimeout := time.Duration(cfg.IdleEvictionTimeoutSec) * time.Second
	done := make(chan struct{})
	ticker := time.NewTicker(cfg.MaintenanceInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				evicted := cache.EvictIdle(idleTimeout)
				if len(evicted) > 0 {
					fmt.Fprintf(os.Stderr, "[maintenance] idle-evicted %d model(s): %v\n", len(evicted), evicted)
				}
			case <-done:
				return
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
	}
}
