package logging

import "sync"

// Metrics is a small concurrent counter/gauge map shared by components
// that want to record telemetry without depending on the router.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]uint64
	gauges   map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]uint64),
		gauges:   make(map[string]uint64),
	}
}

// TelemetryAdd increments a counter.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.counters[key] += delta
	m.mu.Unlock()
}

// TelemetryStore overwrites a gauge.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.gauges[key] = value
	m.mu.Unlock()
}

// TelemetryValue reads a counter or gauge; counters win on key collision.
func (m *Metrics) TelemetryValue(key string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.counters[key]; ok {
		return v
	}
	return m.gauges[key]
}

// TelemetrySnapshot copies every counter and gauge into one map.
func (m *Metrics) TelemetrySnapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[string]uint64, len(m.counters)+len(m.gauges))
	for k, v := range m.gauges {
		snapshot[k] = v
	}
	for k, v := range m.counters {
		snapshot[k] = v
	}
	return snapshot
}
