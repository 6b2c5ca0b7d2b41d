package manager

import (
	"context"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/schema"
)

// fillBackend paints the masked region with the mean colour of its boundary
// and softens it with a gaussian blur of sdMaskBlur.
type fillBackend struct{}

func (fillBackend) Name() string                       { return BuiltinFill }
func (fillBackend) ChannelOrder() imgproc.ChannelOrder { return imgproc.RGB }
func (fillBackend) Reclaim()                           {}
func (fillBackend) Close() error                       { return nil }

func (fillBackend) Infer(_ context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	size := img.Bounds().Size()
	w, h := size.X, size.Y
	set := func(x, y int) bool { return mask.Pix[y*mask.Stride+x] != 0 }

	var sum [3]int
	n := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if set(x, y) {
				continue
			}
			if (x > 0 && set(x-1, y)) || (x < w-1 && set(x+1, y)) || (y > 0 && set(x, y-1)) || (y < h-1 && set(x, y+1)) {
				o := y*img.Stride + x*4
				sum[0] += int(img.Pix[o])
				sum[1] += int(img.Pix[o+1])
				sum[2] += int(img.Pix[o+2])
				n++
			}
		}
	}
	out := imaging.Clone(img)
	if n == 0 {
		sink.Step(0)
		return out, nil
	}
	mean := [3]uint8{uint8(sum[0] / n), uint8(sum[1] / n), uint8(sum[2] / n)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if set(x, y) {
				o := y*out.Stride + x*4
				out.Pix[o], out.Pix[o+1], out.Pix[o+2] = mean[0], mean[1], mean[2]
			}
		}
	}
	sink.Step(0)

	radius := float64(max(cfg.SDMaskBlur, 1))
	soft := imaging.Clone(blur.Gaussian(out, radius))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if set(x, y) {
				o := y*out.Stride + x*4
				copy(out.Pix[o:o+3], soft.Pix[o:o+3])
			}
		}
	}
	sink.Step(1)
	return out, nil
}
