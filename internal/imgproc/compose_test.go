package imgproc

import (
	"image"
	"testing"
)

func TestComposeAlpha_NilAlphaIsNoop(t *testing.T) {
	img := gradient(3, 3, false)
	if ComposeAlpha(img, nil, Linear) != img {
		t.Fatalf("expected same buffer")
	}
}

func TestComposeAlpha_SameSize(t *testing.T) {
	img := gradient(6, 4, false)
	alpha := image.NewGray(image.Rect(0, 0, 6, 4))
	alpha.Pix[5] = 200
	out := ComposeAlpha(img, alpha, Linear)
	if out.NRGBAAt(5, 0).A != 200 || out.NRGBAAt(0, 0).A != 0 {
		t.Fatalf("alpha not applied: %v %v", out.NRGBAAt(5, 0), out.NRGBAAt(0, 0))
	}
	if out.NRGBAAt(5, 0).R != img.NRGBAAt(5, 0).R {
		t.Fatalf("colour changed")
	}
}

func TestComposeAlpha_ResizesAlphaToOutput(t *testing.T) {
	out := ComposeAlpha(gradient(20, 10, false), image.NewGray(image.Rect(0, 0, 10, 5)), Linear)
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 10 {
		t.Fatalf("output must keep backend size, got %v", out.Bounds())
	}
}

func TestSwapRB(t *testing.T) {
	img := gradient(2, 1, false)
	sw := SwapRB(img)
	if sw.Pix[0] != img.Pix[2] || sw.Pix[2] != img.Pix[0] {
		t.Fatalf("channels not swapped")
	}
	if back := FromOrder(ToOrder(img, BGR), BGR); back.Pix[0] != img.Pix[0] {
		t.Fatalf("round trip failed")
	}
}

func TestBinarizeAndBounds(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 10, 10))
	m.Pix[3*10+4] = 200
	m.Pix[6*10+7] = 255
	m.Pix[1*10+1] = 40
	b := Binarize(m)
	if b.GrayAt(4, 3).Y != 255 || b.GrayAt(1, 1).Y != 0 {
		t.Fatalf("binarize: %v %v", b.GrayAt(4, 3), b.GrayAt(1, 1))
	}
	if r := MaskBounds(b); r != image.Rect(4, 3, 8, 7) {
		t.Fatalf("bounds=%v", r)
	}
	if r := MaskBounds(image.NewGray(image.Rect(0, 0, 3, 3))); !r.Empty() {
		t.Fatalf("expected empty bounds, got %v", r)
	}
}
