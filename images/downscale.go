package images

import (
	"image"
	"runtime"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Subsample keeps every factor-th pixel of every factor-th row of src. Pixels
// are picked, not filtered, so a factor of 2 on a 4x4 frame keeps (0,0), (2,0),
// (0,2) and (2,2). The caller owns the returned Mat.
//
// Arguments:
//   - src: Any 8-bit Mat, including a Region view.
//   - factor: Stride; values below 2 return a plain copy.
//
// Returns:
//   - gocv.Mat: The subsampled, continuous copy.
//   - error: An error if the pixel data cannot be accessed.
func Subsample(src gocv.Mat, factor int) (gocv.Mat, error) {
	factor = NormalizeDownscale(factor)

	// Region views are not continuous; Clone packs the rows.
	packed := src.Clone()
	if factor == 1 {
		return packed, nil
	}
	defer packed.Close()

	data, err := packed.DataPtrUint8()
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "reading frame pixels")
	}
	out := StrideBytes(data, packed.Rows(), packed.Cols(), packed.Channels(), factor)
	size := StridedSize(image.Pt(packed.Cols(), packed.Rows()), factor)

	view, err := gocv.NewMatFromBytes(size.Y, size.X, packed.Type(), out)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "building subsampled frame")
	}
	defer view.Close()

	// The view aliases out; Clone moves the pixels into OpenCV owned memory.
	result := view.Clone()
	runtime.KeepAlive(out)
	return result, nil
}

// StrideBytes subsamples row-major interleaved pixel data.
//
// Arguments:
//   - data: rows*cols*channels bytes.
//   - rows, cols, channels: Layout of data.
//   - factor: Stride applied to both axes.
//
// Returns:
//   - []byte: ceil(rows/factor)*ceil(cols/factor)*channels bytes.
func StrideBytes(data []byte, rows, cols, channels, factor int) []byte {
	factor = NormalizeDownscale(factor)
	size := StridedSize(image.Pt(cols, rows), factor)
	out := make([]byte, 0, size.X*size.Y*channels)
	stride := cols * channels
	for y := 0; y < rows; y += factor {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < cols; x += factor {
			out = append(out, row[x*channels:(x+1)*channels]...)
		}
	}
	return out
}
