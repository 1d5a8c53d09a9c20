package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestLayoutText(t *testing.T) {
	style := DefaultTextStyle()
	style.Margin = 4
	style.LineSpacing = 2
	frame := image.Pt(200, 100)
	sizes := []image.Point{{X: 50, Y: 10}, {X: 30, Y: 12}}

	tests := []struct {
		corner  Corner
		box     image.Rectangle
		origins []image.Point
	}{
		{
			corner:  TopLeft,
			box:     image.Rect(0, 0, 58, 32),
			origins: []image.Point{{4, 14}, {4, 28}},
		},
		{
			corner:  TopRight,
			box:     image.Rect(142, 0, 200, 32),
			origins: []image.Point{{146, 14}, {146, 28}},
		},
		{
			corner:  BottomLeft,
			box:     image.Rect(0, 68, 58, 100),
			origins: []image.Point{{4, 82}, {4, 96}},
		},
		{
			corner:  BottomRight,
			box:     image.Rect(142, 68, 200, 100),
			origins: []image.Point{{146, 82}, {146, 96}},
		},
	}

	for _, tt := range tests {
		box, origins := layoutText(frame, sizes, tt.corner, style)
		assert.Equal(t, tt.box, box, "corner %d", tt.corner)
		assert.Equal(t, tt.origins, origins, "corner %d", tt.corner)
	}
}

func TestTextOverlay_Draw(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 120, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	require.NoError(t, NewTextOverlay(TopLeft, DefaultTextStyle()).Draw(&frame, []string{"00:00:01.000"}))
	require.NoError(t, NewTextOverlay(TopLeft, DefaultTextStyle()).Draw(&frame, nil))

	// The top-left corner is covered by the black background box.
	assert.Equal(t, uint8(0), frame.GetVecbAt(1, 1)[0])
	// The far corner is untouched.
	assert.Equal(t, uint8(128), frame.GetVecbAt(119, 319)[0])
}
