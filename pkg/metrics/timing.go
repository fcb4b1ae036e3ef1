// Package metrics keeps in-process timing statistics for the render pipeline
// and the graph index. Collection is on unless BM_METRICS=0.
//
//	defer metrics.Timer(metrics.Transform)()
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("BM_METRICS") != "0")
}

// Enabled returns whether metrics collection is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled turns collection on or off.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// TimingMetric accumulates durations of one named operation. Safe for
// concurrent use.
type TimingMetric struct {
	name  string
	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
	min   atomic.Int64 // 0 until the first sample
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one sample.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.total.Add(ns)
	for {
		old := m.max.Load()
		if ns <= old || m.max.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.min.Load()
		if (old != 0 && ns >= old) || m.min.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Name returns the metric name.
func (m *TimingMetric) Name() string { return m.name }

// Count returns the number of samples.
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a snapshot.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.total.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		AvgMs:   float64(avg) / 1e6,
		MaxMs:   float64(m.max.Load()) / 1e6,
		MinMs:   float64(m.min.Load()) / 1e6,
	}
}

// Reset clears all samples.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.total.Store(0)
	m.max.Store(0)
	m.min.Store(0)
}

// TimingStats is a snapshot of one metric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer starts timing m; call the result to record:
//
//	defer metrics.Timer(metrics.Layout)()
func Timer(m *TimingMetric) func() {
	if !Enabled() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

// Pipeline, index and image metrics.
var (
	HostLoad   = newTimingMetric("host_load")
	Transform  = newTimingMetric("transform")
	Assemble   = newTimingMetric("assemble")
	Build      = newTimingMetric("mindmap_build")
	Render     = newTimingMetric("render")
	Layout     = newTimingMetric("layout")
	WriteSVG   = newTimingMetric("write_svg")
	WritePNG   = newTimingMetric("write_png")
	GraphScan  = newTimingMetric("graph_scan")
	IndexWrite = newTimingMetric("index_write")
)

// All returns every metric in report order.
func All() []*TimingMetric {
	return []*TimingMetric{
		HostLoad, Transform, Assemble, Build, Render,
		Layout, WriteSVG, WritePNG, GraphScan, IndexWrite,
	}
}

// ResetAll resets every metric.
func ResetAll() {
	for _, m := range All() {
		m.Reset()
	}
}

// Snapshot returns stats for the metrics that have samples.
func Snapshot() []TimingStats {
	var out []TimingStats
	for _, m := range All() {
		if m.Count() > 0 {
			out = append(out, m.Stats())
		}
	}
	return out
}
