package output

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// OpenCVEncoders returns a factory for gocv.VideoWriter files. Masks are
// written with isColor false.
func OpenCVEncoders(codec string, isColor bool) EncoderFactory {
	if codec == "" {
		codec = "XVID"
	}
	return func(path string, fps float64, size image.Point) (Encoder, error) {
		vw, err := gocv.VideoWriterFile(path, codec, fps, size.X, size.Y, isColor)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s encoder", codec)
		}
		if !vw.IsOpened() {
			vw.Close()
			return nil, errors.Errorf("%s encoder did not open", codec)
		}
		return &opencvEncoder{vw: vw, size: size}, nil
	}
}

type opencvEncoder struct {
	vw   *gocv.VideoWriter
	size image.Point
}

func (e *opencvEncoder) Write(frame gocv.Mat) error {
	if frame.Cols() != e.size.X || frame.Rows() != e.size.Y {
		return errors.Errorf("frame is %dx%d, encoder expects %dx%d", frame.Cols(), frame.Rows(), e.size.X, e.size.Y)
	}
	return e.vw.Write(frame)
}

func (e *opencvEncoder) Close() error {
	return e.vw.Close()
}
