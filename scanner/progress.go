package scanner

import "sync/atomic"

// Progress is updated by the scan loop and may be read from any goroutine.
type Progress struct {
	FramesProcessed atomic.Int64
	EventsFound     atomic.Int64
	DecodeFailures  atomic.Int64
	// TotalFrames is the number of source frames in the scan window, 0 when unknown.
	TotalFrames atomic.Int64
}

// Snapshot is a consistent enough copy of Progress for display.
type Snapshot struct {
	FramesProcessed int64
	EventsFound     int64
	DecodeFailures  int64
	TotalFrames     int64
}

// Snapshot reads every counter.
func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		FramesProcessed: p.FramesProcessed.Load(),
		EventsFound:     p.EventsFound.Load(),
		DecodeFailures:  p.DecodeFailures.Load(),
		TotalFrames:     p.TotalFrames.Load(),
	}
}

// Percent is the share of the scan window processed so far, or -1 when the
// total is unknown. Processed frames are scaled by step to count skipped frames.
func (s Snapshot) Percent(step int) float64 {
	if s.TotalFrames <= 0 {
		return -1
	}
	done := float64(s.FramesProcessed*int64(max(step, 1))) / float64(s.TotalFrames) * 100
	return min(done, 100)
}
