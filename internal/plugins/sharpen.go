package plugins

import (
	"context"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// SharpenName is the registered name of the restoration plugin.
const SharpenName = "Sharpen"

// Sharpen applies an unsharp mask. Form fields: radius (default 1), amount
// (default 0.6).
type Sharpen struct{}

func NewSharpen() Sharpen { return Sharpen{} }

func (Sharpen) Info() Info { return Info{Name: SharpenName} }

func (Sharpen) Reclaim() {}

func (Sharpen) Apply(_ context.Context, img *image.NRGBA, in Input) (*Output, error) {
	radius, err := formFloat(in.Form, "radius", 1, 0.1, 10)
	if err != nil {
		return nil, err
	}
	amount, err := formFloat(in.Form, "amount", 0.6, 0, 5)
	if err != nil {
		return nil, err
	}
	return &Output{Image: imaging.Clone(effect.UnsharpMask(img, radius, amount))}, nil
}
