//go:build cuda

package subtractor

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/cuda"
)

func cudaAvailable() bool {
	return cuda.GetCudaEnabledDeviceCount() > 0
}

// cudaMOG2 runs MOG2 on the GPU. It owns a stream for its whole lifetime;
// every upload, apply and download is queued on it and awaited per frame.
type cudaMOG2 struct {
	model  cuda.BackgroundSubtractorMOG2
	stream cuda.Stream
	src    cuda.GpuMat
	dst    cuda.GpuMat
	filter *openingFilter
}

func newCUDAMOG2(_ Params, filter *openingFilter) (Subtractor, error) {
	return &cudaMOG2{
		model:  cuda.NewBackgroundSubtractorMOG2(),
		stream: cuda.NewStream(),
		src:    cuda.NewGpuMat(),
		dst:    cuda.NewGpuMat(),
		filter: filter,
	}, nil
}

func (c *cudaMOG2) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return errors.New("mog2-cuda: empty frame")
	}
	c.src.UploadWithStream(src, c.stream)
	if err := c.model.ApplyWithStream(c.src, &c.dst, c.stream); err != nil {
		c.stream.WaitForCompletion()
		return errors.Wrap(err, "mog2-cuda")
	}
	c.dst.DownloadWithStream(dst, c.stream)
	c.stream.WaitForCompletion()
	if err := checkMask(*dst, src); err != nil {
		return errors.Wrap(err, "mog2-cuda")
	}
	return c.filter.Apply(dst)
}

func (c *cudaMOG2) Close() error {
	c.filter.Close()
	c.src.Close()
	c.dst.Close()
	c.model.Close()
	c.stream.Close()
	return nil
}
