// Package timecode - Frame-accurate positions within a video stream.
//
// A FrameTimecode pairs a frame number with the framerate it was measured at.
// It is the unit every other package uses to talk about "where" in a video
// something happened: event boundaries, overlay text, seek targets and the
// duration-valued settings (min event length, pre/post roll) once they have
// been resolved against the source framerate.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FramerateTolerance is the largest framerate difference for which two
// timecodes are still considered to be on the same timebase.
const FramerateTolerance = 1e-3

// ErrInvalid is returned when a timecode value cannot be parsed or is out of range.
var ErrInvalid = errors.New("invalid timecode")

// FrameTimecode is an immutable (frame number, framerate) pair.
type FrameTimecode struct {
	frame int
	fps   float64
}

// New creates a FrameTimecode.
//
// Arguments:
//   - frame: Zero-based frame number, must be >= 0.
//   - fps: Framerate of the stream, must be > 0.
//
// Returns:
//   - FrameTimecode: The timecode.
//   - error: ErrInvalid when either argument is out of range.
func New(frame int, fps float64) (FrameTimecode, error) {
	if frame < 0 {
		return FrameTimecode{}, errors.Wrapf(ErrInvalid, "frame number %d is negative", frame)
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return FrameTimecode{}, errors.Wrapf(ErrInvalid, "framerate %v must be positive", fps)
	}
	return FrameTimecode{frame: frame, fps: fps}, nil
}

// MustNew is New for values known to be valid. It panics otherwise.
func MustNew(frame int, fps float64) FrameTimecode {
	tc, err := New(frame, fps)
	if err != nil {
		panic(err)
	}
	return tc
}

// FromSeconds converts a duration in seconds to the nearest frame.
func FromSeconds(seconds, fps float64) (FrameTimecode, error) {
	if seconds < 0 {
		return FrameTimecode{}, errors.Wrapf(ErrInvalid, "%v seconds is negative", seconds)
	}
	return New(int(math.Round(seconds*fps)), fps)
}

// Parse converts a user supplied timecode string into a FrameTimecode.
//
// Accepted forms:
//   - "123"           an integer frame count
//   - "1.5s" or "1.5" a number of seconds
//   - "HH:MM:SS[.mmm]" a wall-clock position
//
// Arguments:
//   - value: The string to parse.
//   - fps: Framerate used to convert time based forms to frames.
//
// Returns:
//   - FrameTimecode: The parsed timecode.
//   - error: ErrInvalid with the offending value when parsing fails.
func Parse(value string, fps float64) (FrameTimecode, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return FrameTimecode{}, errors.Wrap(ErrInvalid, "empty value")
	}

	if isDigits(s) {
		frame, err := strconv.Atoi(s)
		if err != nil {
			return FrameTimecode{}, errors.Wrapf(ErrInvalid, "%q: %v", value, err)
		}
		return New(frame, fps)
	}

	if strings.Contains(s, ":") {
		seconds, err := parseClock(s)
		if err != nil {
			return FrameTimecode{}, errors.Wrapf(ErrInvalid, "%q: %v", value, err)
		}
		return FromSeconds(seconds, fps)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return FrameTimecode{}, errors.Wrapf(ErrInvalid, "%q is not a frame count, seconds value or HH:MM:SS[.mmm]", value)
	}
	return FromSeconds(seconds, fps)
}

// Validate checks a timecode string for syntax only, without a framerate.
func Validate(value string) error {
	_, err := Parse(value, 1)
	return err
}

// parseClock parses HH:MM:SS[.nnn] into seconds.
func parseClock(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS[.mmm]")
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("bad hours %q", parts[0])
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("bad minutes %q", parts[1])
	}
	secs, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || secs < 0 || secs >= 60 {
		return 0, fmt.Errorf("bad seconds %q", parts[2])
	}
	return float64(hours*3600+minutes*60) + secs, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Frame returns the zero-based frame number.
func (t FrameTimecode) Frame() int { return t.frame }

// Framerate returns the framerate the frame number is measured at.
func (t FrameTimecode) Framerate() float64 { return t.fps }

// Seconds returns the position in seconds.
func (t FrameTimecode) Seconds() float64 {
	if t.fps == 0 {
		return 0
	}
	return float64(t.frame) / t.fps
}

// Add returns a timecode n frames later (or earlier for negative n), clamped at frame 0.
func (t FrameTimecode) Add(n int) FrameTimecode {
	return FrameTimecode{frame: max(t.frame+n, 0), fps: t.fps}
}

// Sub returns a timecode n frames earlier, clamped at frame 0.
func (t FrameTimecode) Sub(n int) FrameTimecode {
	return t.Add(-n)
}

// Compatible reports whether both timecodes share a framerate.
func (t FrameTimecode) Compatible(o FrameTimecode) bool {
	return math.Abs(t.fps-o.fps) <= FramerateTolerance
}

// Compare returns -1, 0 or +1 comparing frame numbers. Both timecodes must be
// Compatible; comparing across framerates panics since the result would be meaningless.
func (t FrameTimecode) Compare(o FrameTimecode) int {
	if !t.Compatible(o) {
		panic(fmt.Sprintf("timecode: comparing %v fps with %v fps", t.fps, o.fps))
	}
	switch {
	case t.frame < o.frame:
		return -1
	case t.frame > o.frame:
		return 1
	}
	return 0
}

// Before reports whether t is strictly earlier than o.
func (t FrameTimecode) Before(o FrameTimecode) bool { return t.Compare(o) < 0 }

// After reports whether t is strictly later than o.
func (t FrameTimecode) After(o FrameTimecode) bool { return t.Compare(o) > 0 }

// Format renders the timecode as HH:MM:SS with the given number of decimals on the seconds.
func (t FrameTimecode) Format(precision int) string {
	precision = max(precision, 0)
	scale := int64(math.Pow10(precision))
	units := int64(math.Round(t.Seconds() * float64(scale)))
	whole, frac := units/scale, units%scale

	hours := whole / 3600
	minutes := (whole % 3600) / 60
	seconds := whole % 60
	if precision == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%0*d", hours, minutes, seconds, precision, frac)
}

// String renders the canonical HH:MM:SS.mmm form.
func (t FrameTimecode) String() string {
	return t.Format(3)
}
