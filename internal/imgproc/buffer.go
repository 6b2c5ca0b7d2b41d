package imgproc

import (
	"image"

	"github.com/disintegration/imaging"
)

// ChannelOrder is the colour channel layout a backend reads and writes.
type ChannelOrder int

const (
	RGB ChannelOrder = iota
	BGR
)

func (o ChannelOrder) String() string {
	if o == BGR {
		return "bgr"
	}
	return "rgb"
}

// SwapRB returns a copy of img with the red and blue channels exchanged.
// It converts between RGB and BGR buffers in either direction.
func SwapRB(img *image.NRGBA) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		out.Pix[i], out.Pix[i+2] = out.Pix[i+2], out.Pix[i]
	}
	return out
}

// ToOrder converts an RGB buffer into the requested order.
func ToOrder(img *image.NRGBA, order ChannelOrder) *image.NRGBA {
	if order == BGR {
		return SwapRB(img)
	}
	return img
}

// FromOrder converts a buffer in the given order back to RGB.
func FromOrder(img *image.NRGBA, order ChannelOrder) *image.NRGBA {
	return ToOrder(img, order)
}

// opaque forces every alpha sample of img to 255 in place.
func opaque(img *image.NRGBA) {
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			row[i] = 0xff
		}
	}
}

// SameSize reports whether a and b have identical spatial dimensions.
func SameSize(a, b image.Rectangle) bool {
	return a.Dx() == b.Dx() && a.Dy() == b.Dy()
}
