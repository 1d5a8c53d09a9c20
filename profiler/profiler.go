// Package profiler - Per-stage timing and throughput metrics for a scan.
//
// Usage:
//
//	p := profiler.New()
//	done := p.StartOperation("decode")
//	...
//	done()
//	p.Log(logger, frames)
package profiler

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// MetricTracker tracks statistics for a custom metric.
type MetricTracker struct {
	Sum   float64
	Min   float64
	Max   float64
	Count int64
}

// Mean is Sum/Count, 0 before the first value.
func (m MetricTracker) Mean() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.Sum / float64(m.Count)
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Count int64
}

// Mean is Total/Count, 0 before the first sample.
func (t TimeTracker) Mean() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// Profiler accumulates stage timings and metrics. Safe for concurrent use.
type Profiler struct {
	mu         sync.Mutex
	start      time.Time
	now        func() time.Time
	operations map[string]*TimeTracker
	metrics    map[string]*MetricTracker
	order      []string
}

// New starts a profiler clock.
func New() *Profiler {
	p := &Profiler{
		now:        time.Now,
		operations: make(map[string]*TimeTracker),
		metrics:    make(map[string]*MetricTracker),
	}
	p.start = p.now()
	return p
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The stage being timed, e.g. "decode".
//
// Returns:
//   - func(): Call when the operation completes.
func (p *Profiler) StartOperation(name string) func() {
	start := p.now()
	return func() {
		p.RecordDuration(name, p.now().Sub(start))
	}
}

// RecordDuration adds one sample for an operation.
func (p *Profiler) RecordDuration(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.operations[name]
	if !ok {
		t = &TimeTracker{Min: d, Max: d}
		p.operations[name] = t
		p.order = append(p.order, name)
	}
	t.Total += d
	t.Count++
	t.Min = min(t.Min, d)
	t.Max = max(t.Max, d)
}

// RecordMetric records a custom metric value.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.metrics[name]
	if !ok {
		m = &MetricTracker{Min: value, Max: value}
		p.metrics[name] = m
	}
	m.Sum += value
	m.Count++
	m.Min = min(m.Min, value)
	m.Max = max(m.Max, value)
}

// Stage is one named operation in a Summary.
type Stage struct {
	Name string
	TimeTracker
}

// Summary is a snapshot of a profiler.
type Summary struct {
	Elapsed time.Duration
	Frames  int
	// FPS is Frames / Elapsed.
	FPS     float64
	Stages  []Stage
	Metrics map[string]MetricTracker
	// HeapAlloc is the Go heap in use when the snapshot was taken.
	HeapAlloc uint64
}

// Summary snapshots the profiler for a scan of frames frames. Stages keep
// the order in which they were first recorded.
func (p *Profiler) Summary(frames int) Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Summary{
		Elapsed: p.now().Sub(p.start),
		Frames:  frames,
		Metrics: make(map[string]MetricTracker, len(p.metrics)),
	}
	if s.Elapsed > 0 {
		s.FPS = float64(frames) / s.Elapsed.Seconds()
	}
	for _, name := range p.order {
		s.Stages = append(s.Stages, Stage{Name: name, TimeTracker: *p.operations[name]})
	}
	for name, m := range p.metrics {
		s.Metrics[name] = *m
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAlloc = ms.HeapAlloc
	return s
}

// Log writes the summary as one info record plus one debug record per stage.
func (p *Profiler) Log(logger *slog.Logger, frames int) Summary {
	s := p.Summary(frames)
	logger.Info("scan profile",
		"frames", humanize.Comma(int64(s.Frames)),
		"elapsed", s.Elapsed.Truncate(time.Millisecond),
		"fps", fmt.Sprintf("%.1f", s.FPS),
		"heap", humanize.Bytes(s.HeapAlloc),
	)
	for _, st := range s.Stages {
		logger.Debug("stage timing",
			"stage", st.Name,
			"avg", st.Mean().Truncate(time.Microsecond),
			"min", st.Min.Truncate(time.Microsecond),
			"max", st.Max.Truncate(time.Microsecond),
			"count", st.Count,
		)
	}
	names := make([]string, 0, len(s.Metrics))
	for name := range s.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := s.Metrics[name]
		logger.Debug("metric", "name", name, "avg", m.Mean(), "min", m.Min, "max", m.Max, "samples", m.Count)
	}
	return s
}

// BufferEstimate is the memory held by a pre-roll buffer of frames frames of
// width x height x channels bytes, rendered for humans.
func BufferEstimate(frames, width, height, channels int) string {
	return humanize.Bytes(uint64(frames) * uint64(width) * uint64(height) * uint64(channels))
}
