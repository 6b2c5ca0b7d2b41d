package manager

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/schema"
)

// maxCV2Radius bounds the neighbourhood scanned per pixel.
const maxCV2Radius = 32

// cv2Backend fills the masked region from its boundary inwards. Each ring of
// the mask is one progress step. INPAINT_TELEA weights known neighbours by
// inverse squared distance; INPAINT_NS averages them uniformly and then
// smooths the filled region with a few diffusion passes.
type cv2Backend struct {
	maxPixels int
}

func (b *cv2Backend) Name() string                       { return BuiltinCV2 }
func (b *cv2Backend) ChannelOrder() imgproc.ChannelOrder { return imgproc.BGR }
func (b *cv2Backend) Reclaim()                           {}
func (b *cv2Backend) Close() error                       { return nil }

func (b *cv2Backend) Infer(_ context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	size := img.Bounds().Size()
	if b.maxPixels > 0 && size.X*size.Y > b.maxPixels {
		return nil, ErrResourceExhausted(BuiltinCV2, fmt.Sprintf("%dx%d exceeds %d pixels", size.X, size.Y, b.maxPixels))
	}
	radius := min(max(cfg.CV2Radius, 1), maxCV2Radius)
	telea := cfg.CV2Flag == schema.CV2FlagTelea

	out := imaging.Clone(img)
	w, h := size.X, size.Y
	known := make([]bool, w*h)
	var hole []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.Pix[y*mask.Stride+x] == 0 {
				known[y*w+x] = true
			} else {
				hole = append(hole, y*w+x)
			}
		}
	}

	step := 0
	pending := hole
	for len(pending) > 0 {
		var front, rest []int
		for _, p := range pending {
			if touchesKnown(known, w, h, p) {
				front = append(front, p)
			} else {
				rest = append(rest, p)
			}
		}
		if len(front) == 0 {
			// Nothing known anywhere; leave the remainder as it is.
			break
		}
		fills := make([][3]uint8, len(front))
		for i, p := range front {
			fills[i] = weightedMean(out, known, w, h, p, radius, telea)
		}
		for i, p := range front {
			o := (p/w)*out.Stride + (p%w)*4
			out.Pix[o], out.Pix[o+1], out.Pix[o+2] = fills[i][0], fills[i][1], fills[i][2]
			known[p] = true
		}
		sink.Step(step)
		step++
		pending = rest
	}

	if !telea {
		for i := 0; i < radius; i++ {
			diffuse(out, hole, w, h)
			sink.Step(step)
			step++
		}
	}
	return out, nil
}

func touchesKnown(known []bool, w, h, p int) bool {
	x, y := p%w, p/w
	return (x > 0 && known[p-1]) || (x < w-1 && known[p+1]) ||
		(y > 0 && known[p-w]) || (y < h-1 && known[p+w])
}

func weightedMean(img *image.NRGBA, known []bool, w, h, p, radius int, telea bool) [3]uint8 {
	px, py := p%w, p/w
	var sum [3]float64
	var total float64
	for y := max(py-radius, 0); y <= min(py+radius, h-1); y++ {
		for x := max(px-radius, 0); x <= min(px+radius, w-1); x++ {
			if !known[y*w+x] {
				continue
			}
			dx, dy := float64(x-px), float64(y-py)
			d2 := dx*dx + dy*dy
			if d2 > float64(radius*radius) {
				continue
			}
			wt := 1.0
			if telea {
				wt = 1 / d2
			}
			o := y*img.Stride + x*4
			sum[0] += wt * float64(img.Pix[o])
			sum[1] += wt * float64(img.Pix[o+1])
			sum[2] += wt * float64(img.Pix[o+2])
			total += wt
		}
	}
	var c [3]uint8
	if total == 0 {
		return c
	}
	for i := range c {
		c[i] = uint8(math.Round(sum[i] / total))
	}
	return c
}

// diffuse replaces every hole pixel with the mean of its 4-neighbours.
func diffuse(img *image.NRGBA, hole []int, w, h int) {
	next := make([][3]uint8, len(hole))
	for i, p := range hole {
		x, y := p%w, p/w
		var sum [3]int
		n := 0
		for _, q := range [][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
			if q[0] < 0 || q[0] >= w || q[1] < 0 || q[1] >= h {
				continue
			}
			o := q[1]*img.Stride + q[0]*4
			sum[0] += int(img.Pix[o])
			sum[1] += int(img.Pix[o+1])
			sum[2] += int(img.Pix[o+2])
			n++
		}
		for c := range sum {
			next[i][c] = uint8((sum[c] + n/2) / n)
		}
	}
	for i, p := range hole {
		o := (p/w)*img.Stride + (p%w)*4
		img.Pix[o], img.Pix[o+1], img.Pix[o+2] = next[i][0], next[i][1], next[i][2]
	}
}
