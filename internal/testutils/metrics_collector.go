package testutils

import (
	"sync"
	"time"

	"github.com/ahrav/go-postfactum/internal/ports"
)

// MetricRecord is one call made to a RecordingMetrics collector.
type MetricRecord struct {
	Kind   string
	Name   string
	Value  float64
	Labels map[string]string
}

// RecordingMetrics implements ports.MetricsCollector by keeping every call
// in memory. It is safe for concurrent use.
type RecordingMetrics struct {
	mu      sync.Mutex
	records []MetricRecord
}

var _ ports.MetricsCollector = (*RecordingMetrics)(nil)

// NewRecordingMetrics creates an empty collector.
func NewRecordingMetrics() *RecordingMetrics { return &RecordingMetrics{} }

func (r *RecordingMetrics) add(kind, name string, value float64, labels map[string]string) {
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	r.mu.Lock()
	r.records = append(r.records, MetricRecord{Kind: kind, Name: name, Value: value, Labels: cp})
	r.mu.Unlock()
}

// RecordLatency implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordLatency(operation string, d time.Duration, labels map[string]string) {
	r.add("latency", operation, d.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	r.add("counter", metric, value, labels)
}

// RecordGauge implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	r.add("gauge", metric, value, labels)
}

// RecordHistogram implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	r.add("histogram", metric, value, labels)
}

// Records returns a copy of every recorded call.
func (r *RecordingMetrics) Records() []MetricRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MetricRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Sum adds the values of every record named name whose labels include all
// of match.
func (r *RecordingMetrics) Sum(name string, match map[string]string) float64 {
	var total float64
	for _, rec := range r.Records() {
		if rec.Name != name || !labelsMatch(rec.Labels, match) {
			continue
		}
		total += rec.Value
	}
	return total
}

// Count returns how many records named name include all of match.
func (r *RecordingMetrics) Count(name string, match map[string]string) int {
	n := 0
	for _, rec := range r.Records() {
		if rec.Name == name && labelsMatch(rec.Labels, match) {
			n++
		}
	}
	return n
}

// Last returns the value of the most recent record named name and whether
// one exists.
func (r *RecordingMetrics) Last(name string) (float64, bool) {
	records := r.Records()
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Name == name {
			return records[i].Value, true
		}
	}
	return 0, false
}

func labelsMatch(labels, match map[string]string) bool {
	for k, v := range match {
		if labels[k] != v {
			return false
		}
	}
	return true
}
