package images

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultQuality is used for lossy formats when no quality is configured.
const DefaultQuality = 95

// ResizeToWidth scales img down so it is at most maxWidth pixels wide,
// keeping the aspect ratio. Images already narrow enough are returned as is.
//
// Arguments:
//   - img: The image to scale.
//   - maxWidth: The maximum width; 0 disables scaling.
//
// Returns:
//   - image.Image: The scaled image.
func ResizeToWidth(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
}

// MatToImage converts a BGR frame into a Go image.
func MatToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, errors.New("empty frame")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting frame to image")
	}
	return img, nil
}

// EncodeImage writes img to w in the given format.
//
// Arguments:
//   - w: The destination.
//   - img: The image to encode.
//   - format: JPEG, PNG or WebP.
//   - quality: 1-100 for JPEG and WebP; 0 selects DefaultQuality. Ignored for PNG.
//
// Returns:
//   - error: An error if the format is unknown or encoding fails.
func EncodeImage(w io.Writer, img image.Image, format ImageFormat, quality int) error {
	if quality <= 0 {
		quality = DefaultQuality
	}
	if quality > 100 {
		quality = 100
	}

	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	default:
		return errors.Errorf("unsupported image format %q", format)
	}
	return errors.Wrapf(err, "encoding %s", format)
}
