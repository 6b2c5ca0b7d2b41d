package plugins

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// UpscaleName is the registered name of the super-resolution plugin.
const UpscaleName = "Upscale"

// Upscale enlarges the image by the "upscale" form factor (1 to 4, default 2)
// with a Lanczos filter. The response keeps the upload's format and alpha.
type Upscale struct{}

func NewUpscale() Upscale { return Upscale{} }

func (Upscale) Info() Info { return Info{Name: UpscaleName} }

func (Upscale) Reclaim() {}

func (Upscale) Apply(_ context.Context, img *image.NRGBA, in Input) (*Output, error) {
	factor, err := formFloat(in.Form, "upscale", 2, 1, 4)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w := int(float64(b.Dx())*factor + 0.5)
	h := int(float64(b.Dy())*factor + 0.5)
	return &Output{Image: imaging.Resize(img, w, h, imaging.Lanczos)}, nil
}
