package lstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/aKV/lib/store/lstore/internal"
	"github.com/VictoriaMetrics/metrics"
)

// storeMetrics are the VictoriaMetrics series of one store.
type storeMetrics struct {
	commands    map[internal.CommandType]*metrics.Counter
	durations   map[internal.CommandType]*metrics.Histogram
	readErrors  *metrics.Counter
	writeErrors *metrics.Counter
	resolved    *metrics.Counter
	pruned      *metrics.Counter

	set    *metrics.Set
	gauges []string // read the store instance, removed when its coordinator terminates
}

func newStoreMetrics(set *metrics.Set, name string, s *storeImpl) *storeMetrics {
	m := &storeMetrics{
		commands:  make(map[internal.CommandType]*metrics.Counter, len(internal.CommandTypes)),
		durations: make(map[internal.CommandType]*metrics.Histogram, len(internal.CommandTypes)),
		set:       set,
	}

	for _, ct := range internal.CommandTypes {
		t := strings.ToLower(ct.String())
		m.commands[ct] = set.GetOrCreateCounter(fmt.Sprintf(`akv_commands_total{store=%q,type=%q}`, name, t))
		m.durations[ct] = set.GetOrCreateHistogram(fmt.Sprintf(`akv_command_duration_seconds{store=%q,type=%q}`, name, t))
	}

	m.readErrors = set.GetOrCreateCounter(fmt.Sprintf(`akv_store_errors_total{store=%q,op="read"}`, name))
	m.writeErrors = set.GetOrCreateCounter(fmt.Sprintf(`akv_store_errors_total{store=%q,op="write"}`, name))
	m.resolved = set.GetOrCreateCounter(fmt.Sprintf(`akv_waiters_resolved_total{store=%q}`, name))
	m.pruned = set.GetOrCreateCounter(fmt.Sprintf(`akv_waiters_pruned_total{store=%q}`, name))

	m.gauges = []string{
		fmt.Sprintf(`akv_pending_waiters{store=%q}`, name),
		fmt.Sprintf(`akv_queue_length{store=%q}`, name),
	}
	set.GetOrCreateGauge(m.gauges[0], func() float64 {
		return float64(s.pendingWaiters.Load())
	})
	set.GetOrCreateGauge(m.gauges[1], func() float64 {
		return float64(len(s.reqs))
	})

	return m
}

// unregister removes the gauges of this store instance from the set, so a store reopened
// under the same name registers gauges reading the new instance. Counters and histograms
// stay and keep counting across reopens.
func (m *storeMetrics) unregister() {
	for _, name := range m.gauges {
		m.set.UnregisterMetric(name)
	}
}

// observe counts a processed command and records its duration.
func (m *storeMetrics) observe(ct internal.CommandType, start time.Time) {
	if c, ok := m.commands[ct]; ok {
		c.Inc()
	}
	if h, ok := m.durations[ct]; ok {
		h.UpdateDuration(start)
	}
}
