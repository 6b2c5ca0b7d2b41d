package plugins

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// labImage is an image converted to CIE L*a*b*, row-major.
type labImage struct {
	w, h int
	px   []lab
}

type lab struct{ l, a, b float64 }

func (p lab) dist(q lab) float64 {
	return math.Sqrt((p.l-q.l)*(p.l-q.l) + (p.a-q.a)*(p.a-q.a) + (p.b-q.b)*(p.b-q.b))
}

func toLab(img *image.NRGBA) *labImage {
	b := img.Bounds()
	out := &labImage{w: b.Dx(), h: b.Dy(), px: make([]lab, b.Dx()*b.Dy())}
	for y := 0; y < out.h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < out.w; x++ {
			c := colorful.Color{R: float64(row[x*4]) / 255, G: float64(row[x*4+1]) / 255, B: float64(row[x*4+2]) / 255}
			l, a, bb := c.Lab()
			out.px[y*out.w+x] = lab{l, a, bb}
		}
	}
	return out
}

func (li *labImage) at(x, y int) lab { return li.px[y*li.w+x] }

// grow marks every pixel 4-connected to the seeds whose colour stays within
// tol of the seed it was reached from and is not closer to any of avoid.
func (li *labImage) grow(sel []bool, seeds []image.Point, avoid []lab, tol float64) {
	for _, s := range seeds {
		if s.X < 0 || s.Y < 0 || s.X >= li.w || s.Y >= li.h {
			continue
		}
		li.flood(sel, s, li.at(s.X, s.Y), avoid, tol)
	}
}

// growFrom is grow with one reference colour shared by all seeds.
func (li *labImage) growFrom(sel []bool, seeds []image.Point, ref lab, tol float64) {
	for _, s := range seeds {
		li.flood(sel, s, ref, nil, tol)
	}
}

func (li *labImage) flood(sel []bool, s image.Point, ref lab, avoid []lab, tol float64) {
	start := s.Y*li.w + s.X
	if sel[start] {
		return
	}
	sel[start] = true
	stack := []int{start}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p%li.w, p/li.w
		for _, q := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
			if q[0] < 0 || q[1] < 0 || q[0] >= li.w || q[1] >= li.h {
				continue
			}
			i := q[1]*li.w + q[0]
			if sel[i] {
				continue
			}
			c := li.px[i]
			d := c.dist(ref)
			if d > tol || closerToAny(c, d, avoid) {
				continue
			}
			sel[i] = true
			stack = append(stack, i)
		}
	}
}

func closerToAny(c lab, d float64, avoid []lab) bool {
	for _, a := range avoid {
		if c.dist(a) < d {
			return true
		}
	}
	return false
}
