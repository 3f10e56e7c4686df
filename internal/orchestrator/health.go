package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/codebuildervaibhav/voice-transcription/internal/backend"
)

// HealthCache is the only state shared across Process invocations: a
// read-mostly snapshot of the sidecar's last health probe, refreshed on
// a background tick and on demand. Writers replace the snapshot as a
// whole, never field by field.
type HealthCache struct {
	client   *backend.LocalClient
	interval time.Duration

	mu        sync.RWMutex
	report    *backend.HealthReport
	checkedAt time.Time

	stop chan struct{}
	once sync.Once
}

// NewHealthCache creates a probe cache over the sidecar client.
func NewHealthCache(client *backend.LocalClient, interval time.Duration) *HealthCache {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthCache{
		client:   client,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs an immediate probe and then refreshes on the tick.
func (hc *HealthCache) Start() {
	hc.Refresh(context.Background())

	go func() {
		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hc.Refresh(context.Background())
			case <-hc.stop:
				return
			}
		}
	}()
}

// Stop ends the background refresh.
func (hc *HealthCache) Stop() {
	hc.once.Do(func() { close(hc.stop) })
}

// Refresh probes the sidecar now and replaces the snapshot.
func (hc *HealthCache) Refresh(ctx context.Context) {
	report := hc.client.Health(ctx)

	hc.mu.Lock()
	hc.report = report
	hc.checkedAt = time.Now()
	hc.mu.Unlock()
}

// Healthy reports whether the last probe saw a healthy sidecar.
func (hc *HealthCache) Healthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.report != nil && hc.report.Status == "healthy"
}

// Snapshot returns the last report (possibly nil) and probe time.
func (hc *HealthCache) Snapshot() (*backend.HealthReport, time.Time) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.report, hc.checkedAt
}
