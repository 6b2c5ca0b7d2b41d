package plugins

import (
	"context"
	"encoding/json"
	"image"
	"time"

	"github.com/patrickmn/go-cache"

	"inpaintd/internal/imgproc"
)

// InteractiveSegName is the registered name of the click segmentation plugin.
const InteractiveSegName = "InteractiveSeg"

// Highlight colour painted over the selected region.
var segHighlight = [3]uint8{255, 203, 0}

const (
	defaultSegTolerance = 0.12
	segCacheTTL         = 10 * time.Minute
)

// InteractiveSeg selects the region around the caller's clicks. Positive
// clicks seed a colour region grow; negative clicks pull pixels that resemble
// them out of the selection. The L*a*b* conversion of each image is cached by
// the image content hash so follow-up clicks on the same upload are cheap.
//
// Form fields: clicks (JSON [[x, y, 1|0], ...]), tolerance (L*a*b* distance
// on go-colorful's unit scale, default 0.12).
type InteractiveSeg struct {
	cache *cache.Cache
}

func NewInteractiveSeg() *InteractiveSeg {
	return &InteractiveSeg{cache: cache.New(segCacheTTL, 2*segCacheTTL)}
}

func (p *InteractiveSeg) Info() Info {
	return Info{
		Name:           InteractiveSegName,
		FixedFormat:    imgproc.FormatPNG,
		ProducesAlpha:  true,
		NeedsImageHash: true,
	}
}

func (p *InteractiveSeg) Reclaim() {}

func (p *InteractiveSeg) Apply(_ context.Context, img *image.NRGBA, in Input) (*Output, error) {
	var clicks [][3]float64
	raw, ok := in.Form["clicks"]
	if !ok {
		return nil, &InputError{Field: "clicks", Reason: "required"}
	}
	if err := json.Unmarshal([]byte(raw), &clicks); err != nil {
		return nil, &InputError{Field: "clicks", Reason: "not a list of [x, y, positive]"}
	}
	tol, err := formFloat(in.Form, "tolerance", defaultSegTolerance, 0, 2)
	if err != nil {
		return nil, err
	}

	li := p.labFor(img, in.ImageHash)
	var pos []image.Point
	var neg []lab
	for _, c := range clicks {
		pt := image.Pt(int(c[0]), int(c[1]))
		if !pt.In(image.Rect(0, 0, li.w, li.h)) {
			continue
		}
		if c[2] > 0 {
			pos = append(pos, pt)
		} else {
			neg = append(neg, li.at(pt.X, pt.Y))
		}
	}

	sel := make([]bool, li.w*li.h)
	li.grow(sel, pos, neg, tol)

	out := image.NewNRGBA(image.Rect(0, 0, li.w, li.h))
	alpha := image.NewGray(out.Rect)
	for i, on := range sel {
		if !on {
			continue
		}
		o := i * 4
		out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = segHighlight[0], segHighlight[1], segHighlight[2], 255
		alpha.Pix[i] = 255
	}
	return &Output{Image: out, Alpha: alpha}, nil
}

func (p *InteractiveSeg) labFor(img *image.NRGBA, hash string) *labImage {
	if hash != "" {
		if v, ok := p.cache.Get(hash); ok {
			if li := v.(*labImage); li.w == img.Bounds().Dx() && li.h == img.Bounds().Dy() {
				return li
			}
		}
	}
	li := toLab(img)
	if hash != "" {
		p.cache.Set(hash, li, cache.DefaultExpiration)
	}
	return li
}
