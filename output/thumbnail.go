package output

import (
	"os"

	"github.com/nvr-ai/motionscan/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ThumbnailOptions configures a Thumbnailer.
type ThumbnailOptions struct {
	Dir       string
	InputName string
	Format    images.ImageFormat
	// MaxWidth limits the thumbnail width; 0 keeps the frame size.
	MaxWidth int
	Quality  int
}

// Thumbnailer keeps the highest scoring frame of the current event and
// writes it as <input>.DSME_<index>.<ext> when the event ends.
type Thumbnailer struct {
	opts  ThumbnailOptions
	best  gocv.Mat
	score float64
	has   bool
	files []string
}

// NewThumbnailer returns a Thumbnailer.
func NewThumbnailer(opts ThumbnailOptions) (*Thumbnailer, error) {
	if opts.Format == "" {
		opts.Format = images.FormatJPEG
	}
	if _, err := images.ParseImageFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	if opts.Quality <= 0 {
		opts.Quality = images.DefaultQuality
	}
	return &Thumbnailer{opts: opts}, nil
}

// Offer keeps a copy of frame if its score beats the current best.
func (t *Thumbnailer) Offer(frame gocv.Mat, score float64) {
	if t.has && score <= t.score {
		return
	}
	if t.has {
		t.best.Close()
	}
	t.best = frame.Clone()
	t.score = score
	t.has = true
}

// Score is the best score offered since the last Flush.
func (t *Thumbnailer) Score() float64 {
	return t.score
}

// Flush writes the kept frame for event index and resets. It returns the
// written path, or "" if nothing was offered.
func (t *Thumbnailer) Flush(index int) (string, error) {
	if !t.has {
		return "", nil
	}
	defer t.Reset()

	img, err := images.MatToImage(t.best)
	if err != nil {
		return "", errors.Wrap(err, "converting thumbnail")
	}
	img = images.ResizeToWidth(img, t.opts.MaxWidth)

	if t.opts.Dir != "" {
		if err := os.MkdirAll(t.opts.Dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "creating thumbnail directory %s", t.opts.Dir)
		}
	}
	path := EventPath(t.opts.Dir, t.opts.InputName, index, "."+t.opts.Format.Extension())
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(ErrWriteFailed, "creating %s: %v", path, err)
	}
	if err := images.EncodeImage(f, img, t.opts.Format, t.opts.Quality); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrapf(ErrWriteFailed, "encoding %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrapf(ErrWriteFailed, "closing %s: %v", path, err)
	}
	t.files = append(t.files, path)
	return path, nil
}

// Reset drops the kept frame.
func (t *Thumbnailer) Reset() {
	if t.has {
		t.best.Close()
	}
	t.has = false
	t.score = 0
}

// Files lists the thumbnails written so far.
func (t *Thumbnailer) Files() []string {
	out := make([]string, len(t.files))
	copy(out, t.files)
	return out
}

// Close releases the kept frame.
func (t *Thumbnailer) Close() {
	t.Reset()
}
