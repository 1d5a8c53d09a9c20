package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

func TestStrideBytes(t *testing.T) {
	tests := []struct {
		name                 string
		rows, cols, channels int
		factor               int
		want                 []byte
	}{
		{name: "identity", rows: 2, cols: 2, channels: 1, factor: 1, want: []byte{0, 1, 2, 3}},
		{name: "even", rows: 4, cols: 4, channels: 1, factor: 2, want: []byte{0, 2, 8, 10}},
		{name: "odd keeps the last row and column", rows: 3, cols: 3, channels: 1, factor: 2, want: []byte{0, 2, 6, 8}},
		{name: "interleaved channels", rows: 2, cols: 2, channels: 3, factor: 2, want: []byte{0, 1, 2}},
		{name: "factor larger than the frame", rows: 2, cols: 3, channels: 1, factor: 8, want: []byte{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StrideBytes(sequence(tt.rows*tt.cols*tt.channels), tt.rows, tt.cols, tt.channels, tt.factor)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubsample(t *testing.T) {
	src, err := gocv.NewMatFromBytes(4, 4, gocv.MatTypeCV8UC1, sequence(16))
	require.NoError(t, err)
	defer src.Close()

	out, err := Subsample(src, 2)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 2, out.Rows())
	assert.Equal(t, 2, out.Cols())
	data, err := out.DataPtrUint8()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2, 8, 10}, data)
}

func TestSubsample_RegionView(t *testing.T) {
	src, err := gocv.NewMatFromBytes(6, 6, gocv.MatTypeCV8UC1, sequence(36))
	require.NoError(t, err)
	defer src.Close()

	view := src.Region(image.Rect(1, 1, 5, 5))
	defer view.Close()

	out, err := Subsample(view, 2)
	require.NoError(t, err)
	defer out.Close()

	data, err := out.DataPtrUint8()
	require.NoError(t, err)
	// (1,1) (3,1) (1,3) (3,3) of the 6x6 source.
	assert.Equal(t, []byte{7, 9, 19, 21}, data)
}
