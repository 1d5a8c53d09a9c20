package video

import (
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/motionscan/timecode"
)

// fakeCapture yields frames whose first pixel holds the frame index.
type fakeCapture struct {
	frames  int
	fps     float64
	size    image.Point
	corrupt map[int]bool
	next    int
	closed  bool
	skipErr error
}

func (f *fakeCapture) Read(dst *gocv.Mat) bool {
	if f.next >= f.frames {
		return false
	}
	i := f.next
	f.next++
	if f.corrupt[i] {
		return false
	}
	dst.Close()
	*dst = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(i%256), 0, 0, 0), f.size.Y, f.size.X, gocv.MatTypeCV8UC3)
	return true
}

func (f *fakeCapture) Skip(n int) error {
	if f.skipErr != nil {
		return f.skipErr
	}
	f.next += n
	return nil
}

func (f *fakeCapture) Seek(frame int) error {
	f.next = frame
	return nil
}

func (f *fakeCapture) Framerate() float64     { return f.fps }
func (f *fakeCapture) FrameSize() image.Point { return f.size }
func (f *fakeCapture) FrameCount() int        { return f.frames }

func (f *fakeCapture) Close() error {
	f.closed = true
	return nil
}

func opener(caps map[string]*fakeCapture) Opener {
	return func(path string) (Capture, error) {
		c, ok := caps[path]
		if !ok {
			return nil, errors.New("no such file")
		}
		return c, nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readAll(t *testing.T, s *Source) []int {
	t.Helper()
	frame := gocv.NewMat()
	defer frame.Close()

	var positions []int
	for {
		pos, ok, err := s.Read(&frame)
		require.NoError(t, err)
		if !ok {
			return positions
		}
		positions = append(positions, pos.Frame())
	}
}

func TestSource_ReadsInputsInOrder(t *testing.T) {
	caps := map[string]*fakeCapture{
		"a.mp4": {frames: 3, fps: 30, size: image.Pt(8, 6)},
		"b.mp4": {frames: 2, fps: 30, size: image.Pt(8, 6)},
	}
	s, err := Open(Options{Paths: []string{"a.mp4", "b.mp4"}, Open: opener(caps), Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 5, s.TotalFrames())
	assert.Equal(t, 30.0, s.Framerate())
	assert.Equal(t, image.Pt(8, 6), s.FrameSize())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, readAll(t, s))
	assert.Equal(t, 5, s.Position().Frame())
}

func TestSource_FrameSkip(t *testing.T) {
	caps := map[string]*fakeCapture{"a.mp4": {frames: 10, fps: 25, size: image.Pt(4, 4)}}
	s, err := Open(Options{Paths: []string{"a.mp4"}, FrameSkip: 2, Open: opener(caps), Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []int{0, 3, 6, 9}, readAll(t, s))
}

func TestSource_SkipFailure(t *testing.T) {
	boom := errors.New("grab failed")
	caps := map[string]*fakeCapture{"a.mp4": {frames: 10, fps: 25, size: image.Pt(4, 4), skipErr: boom}}
	s, err := Open(Options{Paths: []string{"a.mp4"}, FrameSkip: 2, Open: opener(caps), Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	_, ok, err := s.Read(&frame)
	assert.False(t, ok)
	assert.Equal(t, boom, errors.Cause(err))
}

func TestSource_DecodeFailuresAreSkipped(t *testing.T) {
	caps := map[string]*fakeCapture{
		"a.mp4": {frames: 6, fps: 30, size: image.Pt(4, 4), corrupt: map[int]bool{2: true, 3: true}},
	}
	s, err := Open(Options{Paths: []string{"a.mp4"}, Open: opener(caps), Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []int{0, 1, 4, 5}, readAll(t, s))
	assert.Equal(t, 2, s.DecodeFailures())
}

func TestSource_Seek(t *testing.T) {
	caps := map[string]*fakeCapture{
		"a.mp4": {frames: 4, fps: 30, size: image.Pt(4, 4)},
		"b.mp4": {frames: 4, fps: 30, size: image.Pt(4, 4)},
	}
	s, err := Open(Options{Paths: []string{"a.mp4", "b.mp4"}, Open: opener(caps), Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Seek(timecode.MustNew(5, 30)))
	assert.Equal(t, []int{5, 6, 7}, readAll(t, s))

	assert.Error(t, s.Seek(timecode.MustNew(8, 30)))
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name  string
		caps  map[string]*fakeCapture
		paths []string
		cause error
	}{
		{
			name:  "no inputs",
			cause: ErrLoadFailure,
		},
		{
			name:  "missing file",
			caps:  map[string]*fakeCapture{},
			paths: []string{"missing.mp4"},
			cause: ErrLoadFailure,
		},
		{
			name:  "zero framerate",
			caps:  map[string]*fakeCapture{"a.mp4": {frames: 1, size: image.Pt(4, 4)}},
			paths: []string{"a.mp4"},
			cause: ErrLoadFailure,
		},
		{
			name: "resolution mismatch",
			caps: map[string]*fakeCapture{
				"a.mp4": {frames: 1, fps: 30, size: image.Pt(4, 4)},
				"b.mp4": {frames: 1, fps: 30, size: image.Pt(8, 4)},
			},
			paths: []string{"a.mp4", "b.mp4"},
			cause: ErrResolutionMismatch,
		},
		{
			name: "framerate mismatch",
			caps: map[string]*fakeCapture{
				"a.mp4": {frames: 1, fps: 30, size: image.Pt(4, 4)},
				"b.mp4": {frames: 1, fps: 25, size: image.Pt(4, 4)},
			},
			paths: []string{"a.mp4", "b.mp4"},
			cause: ErrFramerateMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(Options{Paths: tt.paths, Open: opener(tt.caps), Logger: quietLogger()})
			assert.Equal(t, tt.cause, errors.Cause(err))
			for path, c := range tt.caps {
				assert.True(t, c.closed, "%s left open", path)
			}
		})
	}
}

func TestOpen_SmallFramerateDriftIsAccepted(t *testing.T) {
	caps := map[string]*fakeCapture{
		"a.mp4": {frames: 1, fps: 29.97, size: image.Pt(4, 4)},
		"b.mp4": {frames: 1, fps: 29.98, size: image.Pt(4, 4)},
	}
	s, err := Open(Options{Paths: []string{"a.mp4", "b.mp4"}, Open: opener(caps), Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, 29.97, s.Framerate())

	require.NoError(t, s.Close())
	assert.True(t, caps["a.mp4"].closed)
	assert.True(t, caps["b.mp4"].closed)
}
