// Package output - Writes the frames of detected events to disk.
//
// Four modes are supported:
//
//   - scan-only: nothing is written
//   - per-event: one file per event, <dir>/<input>.DSME_0001.avi, ...
//   - concatenated: every event appended to a single file
//   - ffmpeg: one file per event, encoded by an ffmpeg process fed raw BGR frames
//
// Any encoder failure is fatal: the partial file is removed and ErrWriteFailed returned.
package output

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrWriteFailed is the cause of every encoder failure.
var ErrWriteFailed = errors.New("output write failed")

// Mode selects how event frames are written.
type Mode string

const (
	ModeScanOnly     Mode = "scan-only"
	ModePerEvent     Mode = "per-event"
	ModeConcatenated Mode = "concatenated"
	ModeFFmpeg       Mode = "ffmpeg"
)

var modes = []Mode{ModeScanOnly, ModePerEvent, ModeConcatenated, ModeFFmpeg}

// ParseMode maps a name to a Mode. "opencv" is accepted for per-event.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scan-only", "none":
		return ModeScanOnly, nil
	case "per-event", "opencv":
		return ModePerEvent, nil
	case "concatenated", "concat":
		return ModeConcatenated, nil
	case "ffmpeg":
		return ModeFFmpeg, nil
	}
	return "", errors.Errorf("unknown output mode %q", s)
}

// ModeNames lists the canonical mode names.
func ModeNames() []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

// Writer receives the frames of every event in order.
type Writer interface {
	// EventStart is called before the first frame of event index (1-based).
	EventStart(index int) error
	Write(frame gocv.Mat) error
	// EventEnd is called after the last frame of event index.
	EventEnd(index int) error
	Close() error
	// Files lists the completed output files.
	Files() []string
}

// Encoder writes frames to one file.
type Encoder interface {
	Write(frame gocv.Mat) error
	Close() error
}

// EncoderFactory opens an encoder for path.
type EncoderFactory func(path string, fps float64, size image.Point) (Encoder, error)

// Options configures New.
type Options struct {
	Mode Mode
	// Dir receives per-event files; the working directory when empty.
	Dir string
	// Output is the concatenated file path.
	Output string
	// InputName is the first input's path, used to name per-event files.
	InputName string
	// Codec is the FourCC for OpenCV encoders.
	Codec string
	FPS   float64
	Size  image.Point

	FFmpegInputArgs  string
	FFmpegOutputArgs string

	Logger *slog.Logger
	// Encoders overrides how files are opened; derived from Mode when nil.
	Encoders EncoderFactory
}

// New returns the Writer for opts.Mode.
func New(opts Options) (Writer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Mode == ModeScanOnly {
		return scanOnly{}, nil
	}
	if opts.FPS <= 0 || opts.Size.X <= 0 || opts.Size.Y <= 0 {
		return nil, errors.Errorf("output needs a framerate and frame size, got %g fps %dx%d", opts.FPS, opts.Size.X, opts.Size.Y)
	}

	factory := opts.Encoders
	ext := ".avi"
	switch opts.Mode {
	case ModePerEvent, ModeConcatenated:
		if factory == nil {
			factory = OpenCVEncoders(opts.Codec, true)
		}
	case ModeFFmpeg:
		ext = ".mp4"
		if factory == nil {
			factory = FFmpegEncoders(opts.FFmpegInputArgs, opts.FFmpegOutputArgs)
		}
	default:
		return nil, errors.Errorf("unknown output mode %q", opts.Mode)
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating output directory %s", opts.Dir)
		}
	}

	w := &fileWriter{opts: opts, factory: factory, logger: opts.Logger}
	if opts.Mode == ModeConcatenated {
		if opts.Output == "" {
			return nil, errors.New("concatenated output needs an output path")
		}
		w.concatenated = true
		w.nameFor = func(int) string { return opts.Output }
	} else {
		w.nameFor = func(index int) string { return EventPath(opts.Dir, opts.InputName, index, ext) }
	}
	return w, nil
}

// EventPath is <dir>/<input base name>.DSME_<index>.<ext>.
func EventPath(dir, input string, index int, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if base == "" || base == "." {
		base = "motion"
	}
	return filepath.Join(dir, fmt.Sprintf("%s.DSME_%04d%s", base, index, ext))
}

type scanOnly struct{}

func (scanOnly) EventStart(int) error { return nil }
func (scanOnly) Write(gocv.Mat) error { return nil }
func (scanOnly) EventEnd(int) error   { return nil }
func (scanOnly) Close() error         { return nil }
func (scanOnly) Files() []string      { return nil }

// fileWriter opens encoders lazily on the first frame of an event. In
// concatenated mode one encoder spans every event.
type fileWriter struct {
	opts         Options
	factory      EncoderFactory
	logger       *slog.Logger
	nameFor      func(index int) string
	concatenated bool

	index  int
	enc    Encoder
	path   string
	files  []string
	failed bool
}

func (w *fileWriter) EventStart(index int) error {
	w.index = index
	return nil
}

func (w *fileWriter) Write(frame gocv.Mat) error {
	if w.failed {
		return errors.Wrap(ErrWriteFailed, "writer already failed")
	}
	if w.enc == nil {
		path := w.nameFor(w.index)
		enc, err := w.factory(path, w.opts.FPS, w.opts.Size)
		if err != nil {
			w.failed = true
			os.Remove(path)
			return errors.Wrapf(ErrWriteFailed, "opening %s: %v", path, err)
		}
		w.enc, w.path = enc, path
		w.logger.Debug("opened output file", "path", path, "event", w.index)
	}
	if err := w.enc.Write(frame); err != nil {
		return w.fail(err)
	}
	return nil
}

func (w *fileWriter) EventEnd(int) error {
	if w.concatenated {
		return nil
	}
	return w.finish()
}

func (w *fileWriter) Close() error {
	return w.finish()
}

func (w *fileWriter) Files() []string {
	out := make([]string, len(w.files))
	copy(out, w.files)
	return out
}

func (w *fileWriter) finish() error {
	if w.enc == nil {
		return nil
	}
	enc, path := w.enc, w.path
	w.enc, w.path = nil, ""
	if err := enc.Close(); err != nil {
		w.failed = true
		os.Remove(path)
		return errors.Wrapf(ErrWriteFailed, "closing %s: %v", path, err)
	}
	w.files = append(w.files, path)
	w.logger.Info("wrote output file", "path", path)
	return nil
}

func (w *fileWriter) fail(cause error) error {
	path := w.path
	w.enc.Close()
	w.enc, w.path = nil, ""
	w.failed = true
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("failed to remove partial output", "path", path, "error", err)
	}
	return errors.Wrapf(ErrWriteFailed, "writing %s: %v", path, cause)
}
