package schema

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestBuildDefaultsWhenLenient(t *testing.T) {
	cfg, err := NewBuilder(false).Build(map[string]string{"prompt": "a cat"}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := DefaultConfig()
	want.Prompt = "a cat"
	if cfg.Prompt != "a cat" || cfg.SDSeed != want.SDSeed || cfg.HDStrategy != want.HDStrategy {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SDFreeUConfig != want.SDFreeUConfig {
		t.Fatalf("freeu defaults lost: %+v", cfg.SDFreeUConfig)
	}
}

func TestBuildParsesTypedFields(t *testing.T) {
	form := map[string]string{
		"ldmSteps":    "25",
		"sdStrength":  "0.5",
		"useCroper":   "true",
		"hdStrategy":  "Resize",
		"cv2Flag":     "INPAINT_TELEA",
		"cv2Radius":   "7.0",
		"freeuConfig": `{"s1":1,"s2":0.5,"b1":1.1,"b2":1.2}`,
	}
	cfg, err := NewBuilder(false).Build(form, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.LDMSteps != 25 || cfg.SDStrength != 0.5 || !cfg.UseCroper {
		t.Fatalf("scalar fields not parsed: %+v", cfg)
	}
	if cfg.HDStrategy != HDStrategyResize || cfg.CV2Flag != CV2FlagTelea || cfg.CV2Radius != 7 {
		t.Fatalf("enum fields not parsed: %+v", cfg)
	}
	if cfg.SDFreeUConfig != (FreeUConfig{S1: 1, S2: 0.5, B1: 1.1, B2: 1.2}) {
		t.Fatalf("freeu: %+v", cfg.SDFreeUConfig)
	}
}

func TestBuildSeed(t *testing.T) {
	b := NewBuilder(false)
	cfg, err := b.Build(map[string]string{"sdSeed": "42"}, nil)
	if err != nil || cfg.SDSeed != 42 {
		t.Fatalf("explicit seed: cfg=%v err=%v", cfg, err)
	}
	for i := 0; i < 50; i++ {
		cfg, err = b.Build(map[string]string{"sdSeed": "-1"}, nil)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if cfg.SDSeed < 1 || cfg.SDSeed > SeedMax {
			t.Fatalf("random seed out of range: %d", cfg.SDSeed)
		}
	}
	b.Seed = func() int { return 7 }
	cfg, _ = b.Build(map[string]string{"sdSeed": "-1"}, nil)
	if cfg.SDSeed != 7 {
		t.Fatalf("seed source ignored: %d", cfg.SDSeed)
	}
}

func TestBuildRejectsMalformed(t *testing.T) {
	cases := map[string]map[string]string{
		"ldmSteps":    {"ldmSteps": "abc"},
		"useCroper":   {"useCroper": "maybe"},
		"hdStrategy":  {"hdStrategy": "Tile"},
		"sdStrength":  {"sdStrength": "1.5"},
		"sdSeed":      {"sdSeed": "-2"},
		"freeuConfig": {"freeuConfig": `{"s1":-1,"s2":0,"b1":0,"b2":0}`},
	}
	for field, form := range cases {
		_, err := NewBuilder(false).Build(form, nil)
		if !IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", field, err)
		}
		if ve := err.(*ValidationError); ve.Field != field {
			t.Fatalf("%s: error names field %q", field, ve.Field)
		}
	}
}

func TestBuildStrictRequiresFields(t *testing.T) {
	_, err := NewBuilder(true).Build(map[string]string{"prompt": ""}, nil)
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildPaintByExampleImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	src.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewBuilder(false).Build(nil, map[string][]byte{PaintByExampleField: buf.Bytes()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.PaintByExampleImage == nil || cfg.PaintByExampleImage.Bounds().Dx() != 3 {
		t.Fatalf("example image not decoded")
	}

	_, err = NewBuilder(false).Build(nil, map[string][]byte{PaintByExampleField: []byte("junk")})
	if !IsValidation(err) {
		t.Fatalf("expected validation error for junk upload, got %v", err)
	}
}

func TestBuildDecodesFormValues(t *testing.T) {
	b := NewBuilder(false)
	cfg, err := b.Build(map[string]string{
		"sdSteps":     " 30 ",
		"sdSampler":   "uni_pc",
		"enableFreeu": "1",
		"model":       "ignored by the config",
	}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.SDSteps != 30 || cfg.SDSampler != "uni_pc" || !cfg.SDFreeU {
		t.Fatalf("decoded = %+v", cfg)
	}

	cases := map[string]map[string]string{
		"cv2Radius":   {"cv2Radius": "7.5"},
		"freeuConfig": {"freeuConfig": `{"s1":1,"s9":2}`},
		"ldmSteps":    {"ldmSteps": "x", "sdSteps": "y"},
	}
	for field, in := range cases {
		_, err := b.Build(in, nil)
		ve, ok := err.(*ValidationError)
		if !ok || ve.Field != field {
			t.Fatalf("%s: err = %v", field, err)
		}
	}
}
