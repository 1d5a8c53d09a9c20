package video

import (
	"image"
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/motionscan/timecode"
)

var (
	// ErrLoadFailure is returned when an input cannot be opened or has no usable stream.
	ErrLoadFailure = errors.New("video load failure")
	// ErrResolutionMismatch is returned when inputs have different frame sizes.
	ErrResolutionMismatch = errors.New("video resolution mismatch")
	// ErrFramerateMismatch is returned when inputs' framerates differ by more than MaxFramerateDrift.
	ErrFramerateMismatch = errors.New("video framerate mismatch")
)

const (
	// MaxFramerateDrift is the relative framerate difference between inputs
	// that is accepted with a warning. Anything larger is an error.
	MaxFramerateDrift = 0.01
	// maxConsecutiveFailures ends a file after this many unreadable frames in a row.
	maxConsecutiveFailures = 10
)

// Options configures a Source.
type Options struct {
	// Paths are read in order as one continuous stream.
	Paths []string
	// FrameSkip drops this many frames after every frame returned by Read.
	FrameSkip int
	// Logger receives decode failure and framerate drift warnings.
	Logger *slog.Logger
	// Open opens each path; OpenFile when nil.
	Open Opener
}

// Source reads frames from a list of inputs as a single stream. Positions
// count frames across all inputs from zero. Not safe for concurrent use.
type Source struct {
	opts     Options
	logger   *slog.Logger
	captures []Capture
	counts   []int

	fps   float64
	size  image.Point
	total int

	cur         int
	filePos     int
	pos         int
	failures    int
	consecutive int
}

// Open opens every input and checks that they can be read as one stream.
//
// Arguments:
//   - opts: The inputs and read options.
//
// Returns:
//   - *Source: The source, positioned at frame 0.
//   - error: ErrLoadFailure, ErrResolutionMismatch or ErrFramerateMismatch.
func Open(opts Options) (*Source, error) {
	if len(opts.Paths) == 0 {
		return nil, errors.Wrap(ErrLoadFailure, "no input videos")
	}
	if opts.Open == nil {
		opts.Open = OpenFile
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FrameSkip < 0 {
		opts.FrameSkip = 0
	}

	s := &Source{opts: opts, logger: opts.Logger}
	for i, path := range opts.Paths {
		c, err := opts.Open(path)
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(ErrLoadFailure, "%s: %v", path, err)
		}
		s.captures = append(s.captures, c)

		fps, size := c.Framerate(), c.FrameSize()
		if fps <= 0 || size.X <= 0 || size.Y <= 0 {
			s.Close()
			return nil, errors.Wrapf(ErrLoadFailure, "%s: invalid stream (%dx%d at %g fps)", path, size.X, size.Y, fps)
		}

		if i == 0 {
			s.fps, s.size = fps, size
		} else {
			if size != s.size {
				s.Close()
				return nil, errors.Wrapf(ErrResolutionMismatch, "%s is %dx%d, %s is %dx%d",
					path, size.X, size.Y, opts.Paths[0], s.size.X, s.size.Y)
			}
			if drift := math.Abs(fps-s.fps) / s.fps; drift > MaxFramerateDrift {
				s.Close()
				return nil, errors.Wrapf(ErrFramerateMismatch, "%s is %g fps, %s is %g fps", path, fps, opts.Paths[0], s.fps)
			} else if math.Abs(fps-s.fps) > timecode.FramerateTolerance {
				s.logger.Warn("framerate differs between inputs, using the first",
					"path", path, "fps", fps, "first_fps", s.fps)
			}
		}

		count := max(c.FrameCount(), 0)
		s.counts = append(s.counts, count)
		s.total += count
	}
	return s, nil
}

// Framerate of the first input.
func (s *Source) Framerate() float64 { return s.fps }

// FrameSize shared by every input.
func (s *Source) FrameSize() image.Point { return s.size }

// TotalFrames is the sum of the inputs' reported frame counts.
func (s *Source) TotalFrames() int { return s.total }

// DecodeFailures is the number of frames skipped because they could not be decoded.
func (s *Source) DecodeFailures() int { return s.failures }

// Position is the index of the next frame Read will consider.
func (s *Source) Position() timecode.FrameTimecode {
	return timecode.MustNew(s.pos, s.fps)
}

// Read decodes the next frame into dst and applies frame skipping.
//
// Arguments:
//   - dst: Receives the frame.
//
// Returns:
//   - timecode.FrameTimecode: The frame's position.
//   - bool: False at the end of the last input.
//   - error: The input could not skip past frames.
func (s *Source) Read(dst *gocv.Mat) (timecode.FrameTimecode, bool, error) {
	for s.cur < len(s.captures) {
		c := s.captures[s.cur]
		if c.Read(dst) && !dst.Empty() {
			pos := s.pos
			s.pos++
			s.filePos++
			s.consecutive = 0
			if err := s.skip(c); err != nil {
				return timecode.MustNew(pos, s.fps), false, err
			}
			return timecode.MustNew(pos, s.fps), true, nil
		}

		if s.filePos < s.counts[s.cur] && s.consecutive < maxConsecutiveFailures {
			s.failures++
			s.consecutive++
			s.logger.Warn("failed to decode frame, skipping",
				"path", s.opts.Paths[s.cur], "frame", s.pos, "failures", s.failures)
			s.pos++
			s.filePos++
			continue
		}

		s.next()
	}
	return s.Position(), false, nil
}

// Seek moves to an absolute position across all inputs.
func (s *Source) Seek(tc timecode.FrameTimecode) error {
	target := tc.Frame()
	if s.total > 0 && target >= s.total {
		return errors.Errorf("seek to frame %d past the end of input (%d frames)", target, s.total)
	}

	base := 0
	for i, count := range s.counts {
		if target < base+count || i == len(s.counts)-1 {
			if err := s.captures[i].Seek(target - base); err != nil {
				return errors.Wrapf(err, "seeking %s", s.opts.Paths[i])
			}
			s.cur, s.filePos, s.pos = i, target-base, target
			s.consecutive = 0
			return nil
		}
		base += count
	}
	return nil
}

// Close releases every input.
func (s *Source) Close() error {
	var first error
	for _, c := range s.captures {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.captures = nil
	s.counts = nil
	return first
}

func (s *Source) skip(c Capture) error {
	n := s.opts.FrameSkip
	if n == 0 {
		return nil
	}
	if remaining := s.counts[s.cur] - s.filePos; remaining >= 0 && s.counts[s.cur] > 0 {
		n = min(n, remaining)
	}
	if err := c.Skip(n); err != nil {
		return errors.Wrapf(err, "skipping %d frames of %s", n, s.opts.Paths[s.cur])
	}
	s.pos += n
	s.filePos += n
	return nil
}

func (s *Source) next() {
	s.cur++
	s.filePos = 0
	s.consecutive = 0
}
