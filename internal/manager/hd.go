package manager

import (
	"context"
	"errors"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/schema"
)

// runStrategy feeds img to b according to cfg.HDStrategy. Whatever the
// strategy, the result has img's size.
func runStrategy(ctx context.Context, b Backend, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	size := img.Bounds().Size()
	longest := max(size.X, size.Y)
	switch {
	case cfg.HDStrategy == schema.HDStrategyCrop && longest > cfg.HDStrategyCropTriggerSize:
		return runCrop(ctx, b, img, mask, cfg, sink)
	case cfg.HDStrategy == schema.HDStrategyResize && longest > cfg.HDStrategyResizeLimit:
		return runResize(ctx, b, img, mask, cfg, sink)
	}
	out, err := call(ctx, b, img, mask, cfg, sink)
	if err != nil {
		return nil, err
	}
	return fit(out, size), nil
}

// runCrop infers only the mask's bounding box plus a margin and pastes the
// result back over the full image.
func runCrop(ctx context.Context, b Backend, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	box := imgproc.MaskBounds(mask)
	if box.Empty() {
		return imaging.Clone(img), nil
	}
	box = cropBox(box, img.Bounds(), cfg.HDStrategyCropMargin)
	cropImg := imaging.Crop(img, box)
	cropMask := cropGray(mask, box)
	out, err := call(ctx, b, cropImg, cropMask, cfg, sink)
	if err != nil {
		return nil, err
	}
	return imaging.Paste(img, fit(out, box.Size()), box.Min), nil
}

// runResize infers a downsized copy, upsizes the result and keeps the
// original pixels outside the mask.
func runResize(ctx context.Context, b Backend, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	size := img.Bounds().Size()
	small := imgproc.ResizeToLimit(img, cfg.HDStrategyResizeLimit, imgproc.Cubic)
	smallMask := imgproc.Binarize(imgproc.ResizeToLimit(mask, cfg.HDStrategyResizeLimit, imgproc.Cubic))
	out, err := call(ctx, b, small, smallMask, cfg, sink)
	if err != nil {
		return nil, err
	}
	up := imgproc.ResizeTo(out, size.X, size.Y, imgproc.Cubic)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if imgproc.Masked(mask, x, y) {
				continue
			}
			i := y*up.Stride + x*4
			j := y*img.Stride + x*4
			copy(up.Pix[i:i+4], img.Pix[j:j+4])
		}
	}
	return up, nil
}

// call invokes b and rejects an empty result.
func call(ctx context.Context, b Backend, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	out, err := b.Infer(ctx, img, mask, cfg, sink)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("backend returned no image")
	}
	return out, nil
}

// fit resizes a backend result that came back at a different size.
func fit(out *image.NRGBA, size image.Point) *image.NRGBA {
	if out.Bounds().Size() != size {
		return imgproc.ResizeTo(out, size.X, size.Y, imgproc.Cubic)
	}
	return out
}

// cropBox grows box by margin on every side, shifting it back inside bounds
// where it would cross an edge so the crop keeps as much context as possible.
func cropBox(box, bounds image.Rectangle, margin int) image.Rectangle {
	w := box.Dx() + 2*margin
	h := box.Dy() + 2*margin
	cx := (box.Min.X + box.Max.X) / 2
	cy := (box.Min.Y + box.Max.Y) / 2
	l, r := cx-w/2, cx+w/2
	t, btm := cy-h/2, cy+h/2
	if l < bounds.Min.X {
		r += bounds.Min.X - l
		l = bounds.Min.X
	}
	if r > bounds.Max.X {
		l -= r - bounds.Max.X
		r = bounds.Max.X
	}
	if t < bounds.Min.Y {
		btm += bounds.Min.Y - t
		t = bounds.Min.Y
	}
	if btm > bounds.Max.Y {
		t -= btm - bounds.Max.Y
		btm = bounds.Max.Y
	}
	return image.Rect(l, t, r, btm).Intersect(bounds).Union(box)
}

func cropGray(mask *image.Gray, r image.Rectangle) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), mask, r.Min, draw.Src)
	return out
}
