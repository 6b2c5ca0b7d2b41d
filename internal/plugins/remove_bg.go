package plugins

import (
	"context"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"

	"inpaintd/internal/imgproc"
)

// RemoveBGName is the registered name of the background removal plugin.
const RemoveBGName = "RemoveBG"

const defaultBGTolerance = 0.1

// RemoveBG keys out the background connected to the image border. The
// background colour is the mean border colour in L*a*b*; pixels reachable from
// the border within tolerance of it become transparent. The alpha edge is
// feathered with a gaussian blur.
//
// Form fields: tolerance (default 0.1), feather (blur radius, default 1).
type RemoveBG struct{}

func NewRemoveBG() RemoveBG { return RemoveBG{} }

func (RemoveBG) Info() Info {
	return Info{Name: RemoveBGName, FixedFormat: imgproc.FormatPNG, ProducesAlpha: true}
}

func (RemoveBG) Reclaim() {}

func (RemoveBG) Apply(_ context.Context, img *image.NRGBA, in Input) (*Output, error) {
	tol, err := formFloat(in.Form, "tolerance", defaultBGTolerance, 0, 2)
	if err != nil {
		return nil, err
	}
	feather, err := formFloat(in.Form, "feather", 1, 0, 20)
	if err != nil {
		return nil, err
	}
	li := toLab(img)
	border := borderPoints(li.w, li.h)
	var mean lab
	for _, p := range border {
		c := li.at(p.X, p.Y)
		mean.l += c.l
		mean.a += c.a
		mean.b += c.b
	}
	n := float64(len(border))
	mean = lab{mean.l / n, mean.a / n, mean.b / n}

	var seeds []image.Point
	for _, p := range border {
		if li.at(p.X, p.Y).dist(mean) <= tol {
			seeds = append(seeds, p)
		}
	}
	bg := make([]bool, li.w*li.h)
	// Grow against the mean colour rather than each seed's own colour.
	li.growFrom(bg, seeds, mean, tol)

	alpha := image.NewGray(image.Rect(0, 0, li.w, li.h))
	for i, isBG := range bg {
		if !isBG {
			alpha.Pix[i] = 255
		}
	}
	if feather > 0 {
		soft := blur.Gaussian(alpha, feather)
		for i := range alpha.Pix {
			alpha.Pix[i] = soft.Pix[i*4]
		}
	}
	return &Output{Image: imaging.Clone(img), Alpha: alpha}, nil
}

func borderPoints(w, h int) []image.Point {
	var pts []image.Point
	for x := 0; x < w; x++ {
		pts = append(pts, image.Pt(x, 0))
		if h > 1 {
			pts = append(pts, image.Pt(x, h-1))
		}
	}
	for y := 1; y < h-1; y++ {
		pts = append(pts, image.Pt(0, y))
		if w > 1 {
			pts = append(pts, image.Pt(w-1, y))
		}
	}
	return pts
}
