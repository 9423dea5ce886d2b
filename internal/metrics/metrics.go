// Package metrics is a small in-process counter registry used by the
// sync services to expose operational numbers over HTTP. Values live
// in memory only and reset on restart.
package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Well-known counter names
const (
	PublishCycles    = "publish_cycles"
	PublishFailures  = "publish_failures"
	RecordsPublished = "records_published"
	ReceiptsAccepted = "receipts_accepted"
	ReceiptsRejected = "receipts_rejected"
	RecordsReceived  = "records_received"
)

// Registry collects named counters and gauges
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*int64
	gauges   map[string]*int64
	started  time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*int64),
		gauges:   make(map[string]*int64),
		started:  time.Now(),
	}
}

// Inc adds delta to the named counter, creating it at zero first
func (r *Registry) Inc(name string, delta int64) {
	if r == nil {
		return
	}
	atomic.AddInt64(r.counter(name), delta)
}

// SetGauge records a point-in-time value
func (r *Registry) SetGauge(name string, value int64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	ptr, ok := r.gauges[name]
	if !ok {
		ptr = new(int64)
		r.gauges[name] = ptr
	}
	r.mu.Unlock()
	atomic.StoreInt64(ptr, value)
}

// Counter returns the current value of the named counter
func (r *Registry) Counter(name string) int64 {
	if r == nil {
		return 0
	}
	return atomic.LoadInt64(r.counter(name))
}

// Snapshot returns every counter and gauge plus process vitals. The
// result is safe to serialize as a JSON response body.
func (r *Registry) Snapshot() map[string]interface{} {
	if r == nil {
		return map[string]interface{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	counters := make(map[string]int64, len(r.counters))
	for name, ptr := range r.counters {
		counters[name] = atomic.LoadInt64(ptr)
	}
	gauges := make(map[string]int64, len(r.gauges))
	for name, ptr := range r.gauges {
		gauges[name] = atomic.LoadInt64(ptr)
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(r.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"counters":       counters,
		"gauges":         gauges,
	}
}

func (r *Registry) counter(name string) *int64 {
	r.mu.RLock()
	ptr, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return ptr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ptr, ok = r.counters[name]; ok {
		return ptr
	}
	ptr = new(int64)
	r.counters[name] = ptr
	return ptr
}
