package config

import (
	"github.com/nvr-ai/motionscan/detector"
	"github.com/nvr-ai/motionscan/timecode"
)

// Resolved holds the options that depend on the source framerate.
type Resolved struct {
	Detector detector.Config
	// Start is where scanning begins; zero when start-time is unset.
	Start timecode.FrameTimecode
	// End is where scanning stops, when HasEnd is set.
	End    timecode.FrameTimecode
	HasEnd bool
	// SmoothFrames is the bounding box smoothing window in processed frames.
	SmoothFrames int
}

// Resolve converts every timecode option to frames at fps.
//
// Arguments:
//   - fps: The source framerate.
//
// Returns:
//   - *Resolved: The framerate dependent options.
//   - error: ValidationErrors for options that are invalid at this framerate.
func (c *Config) Resolve(fps float64) (*Resolved, error) {
	var errs ValidationErrors
	parse := func(field, value string) timecode.FrameTimecode {
		tc, err := timecode.Parse(value, fps)
		if err != nil {
			errs.add(field, value, "%v", err)
		}
		return tc
	}

	minEvent := parse("min-event-length", c.MinEventLength)
	if minEvent.Frame() < 1 {
		errs.add("min-event-length", c.MinEventLength, "must be at least one frame at %g fps", fps)
	}
	pre := parse("time-before-event", c.TimeBeforeEvent)
	post := parse("time-post-event", c.TimePostEvent)

	r := &Resolved{
		Detector: detector.Config{
			Threshold:    c.Threshold,
			MaxThreshold: c.MaxThreshold,
			MinEventLen:  minEvent.Frame(),
			PreEventLen:  pre.Frame(),
			PostEventLen: post.Frame(),
			FrameSkip:    c.FrameSkip,
		},
		Start: timecode.MustNew(0, fps),
	}

	if c.StartTime != "" {
		r.Start = parse("start-time", c.StartTime)
	}
	switch {
	case c.EndTime != "":
		r.End, r.HasEnd = parse("end-time", c.EndTime), true
	case c.Duration != "":
		r.End, r.HasEnd = r.Start.Add(parse("duration", c.Duration).Frame()), true
	}
	if r.HasEnd && r.End.Frame() <= r.Start.Frame() {
		errs.add("end-time", r.End.String(), "must be after start-time (%s)", r.Start)
	}

	smooth := parse("bounding-box.smooth-time", c.BoundingBox.SmoothTime)
	r.SmoothFrames = max(1, smooth.Frame()/(c.FrameSkip+1))

	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}
