package imgproc

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Interpolation selects the resampling filter used when resizing.
type Interpolation int

const (
	Nearest Interpolation = iota
	Linear
	Cubic
	Lanczos
)

func (i Interpolation) filter() imaging.ResampleFilter {
	switch i {
	case Nearest:
		return imaging.NearestNeighbor
	case Linear:
		return imaging.Linear
	case Lanczos:
		return imaging.Lanczos
	default:
		return imaging.CatmullRom
	}
}

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	case Lanczos:
		return "lanczos"
	default:
		return "cubic"
	}
}

// ParseInterpolation maps a configuration string to an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest":
		return Nearest, nil
	case "linear", "bilinear", "":
		return Linear, nil
	case "cubic", "bicubic":
		return Cubic, nil
	case "lanczos":
		return Lanczos, nil
	}
	return Linear, fmt.Errorf("unknown interpolation %q", s)
}

// Buffer is any pixel grid the normalizer can resize.
type Buffer interface {
	*image.NRGBA | *image.Gray
	Bounds() image.Rectangle
}

// ResizeToLimit bounds the longer side of img to limit, keeping the aspect
// ratio. Images already within the limit are returned as-is (same pointer).
func ResizeToLimit[T Buffer](img T, limit int, interp Interpolation) T {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if limit <= 0 || longest <= limit {
		return img
	}
	ratio := float64(limit) / float64(longest)
	nw := max(1, int(float64(w)*ratio+0.5))
	nh := max(1, int(float64(h)*ratio+0.5))
	return ResizeTo(img, nw, nh, interp)
}

// ResizeTo resizes img to exactly w x h.
func ResizeTo[T Buffer](img T, w, h int, interp Interpolation) T {
	switch src := any(img).(type) {
	case *image.NRGBA:
		return any(imaging.Resize(src, w, h, interp.filter())).(T)
	case *image.Gray:
		return any(firstChannel(imaging.Resize(src, w, h, interp.filter()))).(T)
	}
	return img
}

func firstChannel(img *image.NRGBA) *image.Gray {
	out := image.NewGray(img.Rect)
	for i, j := 0, 0; i < len(img.Pix); i, j = i+4, j+1 {
		out.Pix[j] = img.Pix[i]
	}
	return out
}
