package imgproc

import (
	"image"

	"github.com/disintegration/imaging"
)

// ComposeAlpha recombines a processed colour buffer with an alpha channel.
// When alpha's size differs from out's, alpha is resized to match out; out is
// never resized. A nil alpha returns out unchanged.
func ComposeAlpha(out *image.NRGBA, alpha *image.Gray, interp Interpolation) *image.NRGBA {
	if alpha == nil {
		return out
	}
	b := out.Bounds()
	if !SameSize(b, alpha.Bounds()) {
		alpha = ResizeTo(alpha, b.Dx(), b.Dy(), interp)
	}
	res := imaging.Clone(out)
	for y := 0; y < b.Dy(); y++ {
		arow := alpha.Pix[y*alpha.Stride : y*alpha.Stride+b.Dx()]
		prow := res.Pix[y*res.Stride:]
		for x, a := range arow {
			prow[x*4+3] = a
		}
	}
	return res
}
