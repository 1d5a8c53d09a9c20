// Package video - Sequential frame source over one or more video files.
package video

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Capture is a single opened video.
type Capture interface {
	// Read decodes the next frame into dst, returning false at end of stream or on a decode error.
	Read(dst *gocv.Mat) bool
	// Skip advances past n frames without decoding them.
	Skip(n int) error
	// Seek moves to a zero-based frame index.
	Seek(frame int) error
	Framerate() float64
	FrameSize() image.Point
	// FrameCount is the container's frame count, which may be an estimate.
	FrameCount() int
	Close() error
}

// Opener opens a Capture for a path.
type Opener func(path string) (Capture, error)

// OpenFile opens a video file with OpenCV.
func OpenFile(path string) (Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("opening %s: no decoder could read the file", path)
	}
	return &fileCapture{vc: vc}, nil
}

type fileCapture struct {
	vc *gocv.VideoCapture
}

func (c *fileCapture) Read(dst *gocv.Mat) bool {
	return c.vc.Read(dst)
}

func (c *fileCapture) Skip(n int) error {
	if n <= 0 {
		return nil
	}
	return c.vc.Grab(n)
}

func (c *fileCapture) Seek(frame int) error {
	c.vc.Set(gocv.VideoCapturePosFrames, float64(frame))
	if got := int(c.vc.Get(gocv.VideoCapturePosFrames)); got != frame {
		return errors.Errorf("seek to frame %d landed on %d", frame, got)
	}
	return nil
}

func (c *fileCapture) Framerate() float64 {
	return c.vc.Get(gocv.VideoCaptureFPS)
}

func (c *fileCapture) FrameSize() image.Point {
	return image.Pt(int(c.vc.Get(gocv.VideoCaptureFrameWidth)), int(c.vc.Get(gocv.VideoCaptureFrameHeight)))
}

func (c *fileCapture) FrameCount() int {
	return int(c.vc.Get(gocv.VideoCaptureFrameCount))
}

func (c *fileCapture) Close() error {
	return c.vc.Close()
}
