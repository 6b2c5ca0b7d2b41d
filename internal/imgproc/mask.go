package imgproc

import (
	"image"

	"github.com/anthonynsimon/bild/segment"
)

// MaskThreshold is the luma level at and above which a mask pixel is set.
const MaskThreshold = 128

// Binarize collapses mask to 0 and 255.
func Binarize(mask *image.Gray) *image.Gray {
	return segment.Threshold(mask, MaskThreshold)
}

// MaskBounds returns the smallest rectangle containing every set pixel of
// mask, or an empty rectangle when nothing is set.
func MaskBounds(mask *image.Gray) image.Rectangle {
	b := mask.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[(y-b.Min.Y)*mask.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if row[x] == 0 {
				continue
			}
			minX, maxX = min(minX, b.Min.X+x), max(maxX, b.Min.X+x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Masked reports whether the pixel at (x, y) is set.
func Masked(mask *image.Gray, x, y int) bool {
	return mask.GrayAt(x, y).Y != 0
}
