package common

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBox_ToRect(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want image.Rectangle
	}{
		{name: "integral", box: BoundingBox{X1: 1, Y1: 2, X2: 3, Y2: 4}, want: image.Rect(1, 2, 3, 4)},
		{name: "rounds half away", box: BoundingBox{X1: 100.4, Y1: 100.5, X2: 200.5, Y2: 300.2}, want: image.Rect(100, 101, 201, 300)},
		{name: "negative", box: BoundingBox{X1: -1.5, Y1: -0.4, X2: 2, Y2: 2}, want: image.Rect(-2, 0, 2, 2)},
		{name: "canonical", box: BoundingBox{X1: 5, Y1: 5, X2: 1, Y2: 1}, want: image.Rect(1, 1, 5, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.ToRect())
		})
	}
}

func TestBoundingBox_Pad(t *testing.T) {
	b := BoundingBox{X1: 10, Y1: 10, X2: 12, Y2: 30}.Pad(10)
	assert.Equal(t, BoundingBox{X1: 6, Y1: 10, X2: 16, Y2: 30}, b)

	big := BoundingBox{X1: 0, Y1: 0, X2: 50, Y2: 50}
	assert.Equal(t, big, big.Pad(10))
}

func TestBoundingBox_ScaleTranslate(t *testing.T) {
	b := FromRect(image.Rect(1, 2, 3, 4)).Scale(2).Translate(10, 20)
	assert.Equal(t, image.Rect(12, 24, 16, 28), b.ToRect())
}

func TestBoundingBox_Clamp(t *testing.T) {
	b := BoundingBox{X1: -5, Y1: 2, X2: 120, Y2: 50}.Clamp(image.Rect(0, 0, 100, 40))
	assert.Equal(t, BoundingBox{X1: 0, Y1: 2, X2: 100, Y2: 40}, b)
}

func TestAverage(t *testing.T) {
	_, ok := Average(nil)
	assert.False(t, ok)

	avg, ok := Average([]BoundingBox{
		{X1: 0, Y1: 0, X2: 10, Y2: 10},
		{X1: 2, Y1: 4, X2: 12, Y2: 14},
		{X1: 1, Y1: 2, X2: 11, Y2: 12},
	})
	assert.True(t, ok)
	assert.Equal(t, BoundingBox{X1: 1, Y1: 2, X2: 11, Y2: 12}, avg)
}

func TestBoundingBox_Empty(t *testing.T) {
	assert.True(t, BoundingBox{}.Empty())
	assert.True(t, BoundingBox{X1: 5, Y1: 0, X2: 5, Y2: 10}.Empty())
	assert.False(t, BoundingBox{X1: 0, Y1: 0, X2: 1, Y2: 1}.Empty())
}
