package images

import (
	"crypto/md5"
	"fmt"

	"gocv.io/x/gocv"
)

// matChecksum hashes the pixel bytes of a continuous Mat.
func matChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}
	data, _ := mat.DataPtrUint8()
	return fmt.Sprintf("%x", md5.Sum(data))
}

// maskChecksum hashes the exclusion grid of a RegionMask.
func maskChecksum(m *RegionMask) string {
	if m == nil || m.Excluded == nil {
		return "none"
	}
	grid := make([]byte, len(m.Excluded))
	for i, ex := range m.Excluded {
		if ex {
			grid[i] = 1
		}
	}
	return fmt.Sprintf("%x", md5.Sum(grid))
}
