package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProfiler() (*Profiler, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := New()
	p.now = clock.now
	p.start = clock.now()
	return p, clock
}

func TestStageTimings(t *testing.T) {
	p, clock := newTestProfiler()

	for _, d := range []time.Duration{10 * time.Millisecond, 30 * time.Millisecond} {
		done := p.StartOperation("decode")
		clock.advance(d)
		done()
	}
	done := p.StartOperation("score")
	clock.advance(5 * time.Millisecond)
	done()

	s := p.Summary(2)
	require.Len(t, s.Stages, 2)
	assert.Equal(t, "decode", s.Stages[0].Name)
	assert.Equal(t, 20*time.Millisecond, s.Stages[0].Mean())
	assert.Equal(t, 10*time.Millisecond, s.Stages[0].Min)
	assert.Equal(t, 30*time.Millisecond, s.Stages[0].Max)
	assert.Equal(t, int64(2), s.Stages[0].Count)
	assert.Equal(t, "score", s.Stages[1].Name)

	assert.Equal(t, 45*time.Millisecond, s.Elapsed)
	assert.InDelta(t, 2/0.045, s.FPS, 1e-6)
}

func TestMetrics(t *testing.T) {
	p, _ := newTestProfiler()
	p.RecordMetric("score", 1)
	p.RecordMetric("score", 5)
	p.RecordMetric("score", 3)

	m := p.Summary(0).Metrics["score"]
	assert.Equal(t, 3.0, m.Mean())
	assert.Equal(t, 1.0, m.Min)
	assert.Equal(t, 5.0, m.Max)
}

func TestSummaryWithoutElapsedTime(t *testing.T) {
	p, _ := newTestProfiler()
	s := p.Summary(10)
	assert.Zero(t, s.FPS)
	assert.Empty(t, s.Stages)
}

func TestLog(t *testing.T) {
	p, clock := newTestProfiler()
	done := p.StartOperation("write")
	clock.advance(time.Second)
	done()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p.Log(logger, 1200)

	out := buf.String()
	assert.Contains(t, out, "frames=1,200")
	assert.Contains(t, out, "fps=1200.0")
	assert.Contains(t, out, "stage=write")
}

func TestBufferEstimate(t *testing.T) {
	assert.Equal(t, "6.1 MB", BufferEstimate(10, 640, 320, 3))
	assert.Equal(t, "0 B", BufferEstimate(0, 640, 480, 3))
}
