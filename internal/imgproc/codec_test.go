package imgproc

import (
	"image"
	"image/color"
	"testing"
)

func TestSniffFormat(t *testing.T) {
	img := gradient(4, 4, false)
	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"png", encodePNG(t, img), FormatPNG},
		{"jpeg", encodeJPEG(t, img), FormatJPEG},
		{"garbage", []byte("definitely not an image"), DefaultFormat},
		{"empty", nil, DefaultFormat},
	}
	for _, c := range cases {
		if got := SniffFormat(c.data); got != c.want {
			t.Fatalf("%s: got %q want %q", c.name, got, c.want)
		}
	}
}

func TestDecode_SplitsAlphaFromPNG(t *testing.T) {
	src := gradient(10, 6, true)
	d, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Format != FormatPNG {
		t.Fatalf("format=%s", d.Format)
	}
	if d.Alpha == nil {
		t.Fatalf("expected alpha channel")
	}
	if d.Alpha.GrayAt(9, 0).Y != 255 || d.Alpha.GrayAt(0, 0).Y != 0 {
		t.Fatalf("alpha not preserved: %v %v", d.Alpha.GrayAt(0, 0), d.Alpha.GrayAt(9, 0))
	}
	for i := 3; i < len(d.RGB.Pix); i += 4 {
		if d.RGB.Pix[i] != 255 {
			t.Fatalf("rgb buffer must be opaque")
		}
	}
	// Colour of a fully transparent pixel survives un-premultiplied.
	if got := d.RGB.NRGBAAt(0, 3); got.B != 90 || got.G != 15 {
		t.Fatalf("colour lost under zero alpha: %+v", got)
	}
}

func TestDecode_OpaqueSourcesHaveNoAlpha(t *testing.T) {
	src := gradient(8, 8, false)
	for name, data := range map[string][]byte{"png": encodePNG(t, src), "jpeg": encodeJPEG(t, src)} {
		d, err := Decode(data)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if d.Alpha != nil {
			t.Fatalf("%s: unexpected alpha", name)
		}
		if d.RGB.Bounds().Dx() != 8 || d.RGB.Bounds().Dy() != 8 {
			t.Fatalf("%s: bounds %v", name, d.RGB.Bounds())
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(nil); err != ErrEmptyImage {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
	if _, err := Decode([]byte("nope")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDecodeGray(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(1, 1, color.NRGBA{255, 255, 255, 255})
	src.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 255})
	g, err := DecodeGray(encodePNG(t, src))
	if err != nil {
		t.Fatalf("decode gray: %v", err)
	}
	if g.GrayAt(1, 1).Y != 255 || g.GrayAt(0, 0).Y != 0 {
		t.Fatalf("unexpected luma: %v %v", g.GrayAt(1, 1), g.GrayAt(0, 0))
	}
}

func TestEncode_RoundTripKeepsSizeAndAlpha(t *testing.T) {
	src := gradient(12, 5, true)
	out, f, err := Encode(src, FormatPNG, 95, Metadata{})
	if err != nil || f != FormatPNG {
		t.Fatalf("encode: f=%s err=%v", f, err)
	}
	d, err := Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Alpha == nil || d.Alpha.GrayAt(11, 2).Y != 255 {
		t.Fatalf("alpha lost in round trip")
	}
}

func TestEncode_WebPFallsBackToPNG(t *testing.T) {
	out, f, err := Encode(gradient(4, 4, false), FormatWEBP, 90, Metadata{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if f != FormatPNG || SniffFormat(out) != FormatPNG {
		t.Fatalf("expected png fallback, got %s", f)
	}
}

func TestEncode_JPEGDropsAlpha(t *testing.T) {
	out, f, err := Encode(gradient(6, 6, true), FormatJPEG, 80, Metadata{})
	if err != nil || f != FormatJPEG {
		t.Fatalf("encode: f=%s err=%v", f, err)
	}
	d, err := Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Alpha != nil {
		t.Fatalf("jpeg cannot carry alpha")
	}
}

func TestDecode_AppliesPNGOrientation(t *testing.T) {
	src := gradient(40, 10, false)
	src.SetNRGBA(0, 0, color.NRGBA{R: 250, G: 1, B: 2, A: 255})
	out, _, err := Encode(src, FormatPNG, 0, Metadata{EXIF: tiffWithOrientation(6)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	d, err := Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := d.RGB.Bounds(); b.Dx() != 10 || b.Dy() != 40 {
		t.Fatalf("size = %v, want rotated 10x40", b)
	}
	// Orientation 6 turns the top-left pixel into the top-right one.
	if got := d.RGB.NRGBAAt(9, 0); got.R != 250 || got.G != 1 {
		t.Fatalf("top-right = %v", got)
	}
	if d.Alpha != nil {
		t.Fatalf("opaque png must not gain alpha after rotation")
	}
	if v := exifOrientation(d.Meta.EXIF); v != 1 {
		t.Fatalf("carried orientation = %d, want 1", v)
	}

	mask, err := DecodeGray(out)
	if err != nil {
		t.Fatalf("decode gray: %v", err)
	}
	if b := mask.Bounds(); b.Dx() != 10 || b.Dy() != 40 {
		t.Fatalf("mask size = %v", b)
	}
}

func TestDecode_PNGWithoutOrientationUnchanged(t *testing.T) {
	out, _, err := Encode(gradient(6, 3, true), FormatPNG, 0, Metadata{EXIF: tiffWithOrientation(1)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d, err := Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := d.RGB.Bounds(); b.Dx() != 6 || b.Dy() != 3 || d.Alpha == nil {
		t.Fatalf("size=%v alpha=%v", b, d.Alpha != nil)
	}
}
