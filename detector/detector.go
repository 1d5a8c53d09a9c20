// Package detector - Turns a stream of per-frame motion scores into motion events.
//
// The detector is a two state machine:
//
//	Idle ──(MinEventLen consecutive scores >= Threshold)──► InEvent
//	InEvent ──(PostEventLen consecutive scores < Threshold)──► Idle
//
// Event starts are back-dated over the frames the caller has buffered, so each
// event includes up to PreEventLen frames of pre-roll. An event still open when
// input ends is closed by Finish rather than dropped.
package detector

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/motionscan/timecode"
)

// ErrInvalidConfig is the cause of every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid detector configuration")

// State is the detector state.
type State int

const (
	Idle State = iota
	InEvent
)

func (s State) String() string {
	if s == InEvent {
		return "in-event"
	}
	return "idle"
}

// Transition reports what a single Update did.
type Transition int

const (
	None Transition = iota
	EventStarted
	EventEnded
)

func (t Transition) String() string {
	switch t {
	case EventStarted:
		return "event-started"
	case EventEnded:
		return "event-ended"
	}
	return "none"
}

// Event is a span of frames containing sustained motion. End is the position
// at which the event was closed and is always after Start.
type Event struct {
	Start timecode.FrameTimecode
	End   timecode.FrameTimecode
}

// Duration is End - Start.
func (e Event) Duration() timecode.FrameTimecode {
	return timecode.MustNew(e.End.Frame()-e.Start.Frame(), e.Start.Framerate())
}

// ScanResult is the outcome of one complete scan.
type ScanResult struct {
	// NumFrames is the number of frames that were decoded and scored.
	NumFrames int
	// Events are ordered by start and do not overlap.
	Events []Event
	// DecodeFailures counts frames that could not be decoded and were skipped.
	DecodeFailures int
	// Cancelled is set when the scan stopped before reaching the end of input.
	Cancelled bool
}

// Config holds the detection parameters. Lengths are in source frames, before
// frame skipping is taken into account.
type Config struct {
	// Threshold is the score at or above which a frame counts as motion.
	Threshold float64
	// MaxThreshold, when > 0, treats scores at or above it as no motion.
	MaxThreshold float64
	// MinEventLen is the number of consecutive motion frames that start an event.
	MinEventLen int
	// PreEventLen is the pre-roll included before the triggering frames.
	PreEventLen int
	// PostEventLen is the number of consecutive quiet frames that end an event.
	PostEventLen int
	// FrameSkip is the number of source frames dropped after every processed frame.
	FrameSkip int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Threshold < 0:
		return errors.Wrapf(ErrInvalidConfig, "threshold must be >= 0, got %g", c.Threshold)
	case c.MaxThreshold < 0:
		return errors.Wrapf(ErrInvalidConfig, "max threshold must be >= 0, got %g", c.MaxThreshold)
	case c.MaxThreshold > 0 && c.MaxThreshold <= c.Threshold:
		return errors.Wrapf(ErrInvalidConfig, "max threshold %g must be greater than threshold %g", c.MaxThreshold, c.Threshold)
	case c.MinEventLen < 1:
		return errors.Wrapf(ErrInvalidConfig, "min event length must be >= 1 frame, got %d", c.MinEventLen)
	case c.PreEventLen < 0:
		return errors.Wrapf(ErrInvalidConfig, "pre event length must be >= 0, got %d", c.PreEventLen)
	case c.PostEventLen < 0:
		return errors.Wrapf(ErrInvalidConfig, "post event length must be >= 0, got %d", c.PostEventLen)
	case c.FrameSkip < 0:
		return errors.Wrapf(ErrInvalidConfig, "frame skip must be >= 0, got %d", c.FrameSkip)
	}
	return nil
}

// Scaled returns the lengths in processed frames. With frame skipping only
// every (FrameSkip+1)-th frame reaches the detector, so each length is divided
// by FrameSkip+1. MinEventLen never drops below 1.
func (c Config) Scaled() (minEvent, preEvent, postEvent int) {
	step := c.FrameSkip + 1
	return max(1, c.MinEventLen/step), c.PreEventLen / step, c.PostEventLen / step
}

// BufferLen is the number of processed frames the caller should retain while
// idle so that a new event can be written with its full pre-roll.
func (c Config) BufferLen() int {
	minEvent, preEvent, _ := c.Scaled()
	return minEvent + preEvent
}

// Detector is the event state machine. Not safe for concurrent use.
type Detector struct {
	threshold    float64
	maxThreshold float64
	minEventLen  int
	postEventLen int
	step         int

	state   State
	above   int
	silence int
	current Event
	last    timecode.FrameTimecode
	seen    bool
	events  []Event
}

// New validates cfg and returns an idle detector.
//
// Arguments:
//   - cfg: Detection parameters in source frames.
//
// Returns:
//   - *Detector: The detector.
//   - error: ErrInvalidConfig if a parameter is out of range.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	minEvent, _, postEvent := cfg.Scaled()
	return &Detector{
		threshold:    cfg.Threshold,
		maxThreshold: cfg.MaxThreshold,
		minEventLen:  minEvent,
		postEventLen: postEvent,
		step:         cfg.FrameSkip + 1,
	}, nil
}

// State returns the current state.
func (d *Detector) State() State {
	return d.state
}

// Events returns the events finalized so far, oldest first.
func (d *Detector) Events() []Event {
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Current returns the open event, if any.
func (d *Detector) Current() (Event, bool) {
	return d.current, d.state == InEvent
}

// Suppressed reports whether score is ignored as a global change.
func (d *Detector) Suppressed(score float64) bool {
	return d.maxThreshold > 0 && score >= d.maxThreshold
}

// Update feeds one processed frame to the detector.
//
// Arguments:
//   - pos: The frame's source position. Positions must increase between calls.
//   - score: The frame's motion score.
//   - buffered: Frames the caller currently retains, including this one.
//
// Returns:
//   - Transition: EventStarted when this frame triggers an event, EventEnded
//     when it closes one, otherwise None.
func (d *Detector) Update(pos timecode.FrameTimecode, score float64, buffered int) Transition {
	d.last, d.seen = pos, true
	if d.Suppressed(score) {
		score = 0
	}
	motion := score >= d.threshold

	if d.state == Idle {
		if !motion {
			d.above = 0
			return None
		}
		d.above++
		if d.above < d.minEventLen {
			return None
		}
		back := max(buffered-1, 0) * d.step
		d.current = Event{Start: pos.Sub(back)}
		d.state = InEvent
		d.above = 0
		d.silence = 0
		return EventStarted
	}

	if motion {
		d.silence = 0
		return None
	}
	d.silence++
	if d.silence < d.postEventLen {
		return None
	}
	d.close(pos)
	return EventEnded
}

// Finish closes the open event at end of input.
//
// Arguments:
//   - end: Position at which input ended, normally one past the last processed frame.
//
// Returns:
//   - Event: The closed event.
//   - bool: False when no event was open.
func (d *Detector) Finish(end timecode.FrameTimecode) (Event, bool) {
	if d.state != InEvent {
		return Event{}, false
	}
	d.close(end)
	return d.events[len(d.events)-1], true
}

// LastPosition is the position passed to the most recent Update.
func (d *Detector) LastPosition() (timecode.FrameTimecode, bool) {
	return d.last, d.seen
}

func (d *Detector) close(end timecode.FrameTimecode) {
	if end.Frame() <= d.current.Start.Frame() {
		end = d.current.Start.Add(1)
	}
	d.current.End = end
	d.events = append(d.events, d.current)
	d.current = Event{}
	d.state = Idle
	d.silence = 0
	d.above = 0
}
