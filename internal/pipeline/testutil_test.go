package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/manager"
	"inpaintd/internal/plugins"
	"inpaintd/internal/schema"
	"inpaintd/pkg/types"
)

// fakeBackend returns its input unchanged unless fn or err is set.
type fakeBackend struct {
	name  string
	order imgproc.ChannelOrder
	err   error
	fn    func(img *image.NRGBA) *image.NRGBA

	// during runs inside Infer while the snapshot is held.
	during func()

	calls     atomic.Int32
	reclaims  atomic.Int32
	sawCancel atomic.Bool
}

func (f *fakeBackend) Name() string                       { return f.name }
func (f *fakeBackend) ChannelOrder() imgproc.ChannelOrder { return f.order }
func (f *fakeBackend) Reclaim()                           { f.reclaims.Add(1) }
func (f *fakeBackend) Close() error                       { return nil }

func (f *fakeBackend) Infer(ctx context.Context, img *image.NRGBA, _ *image.Gray, _ *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	f.calls.Add(1)
	if ctx.Err() != nil {
		f.sawCancel.Store(true)
	}
	sink.Step(0)
	sink.Step(1)
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.fn != nil {
		return f.fn(img), nil
	}
	return imaging.Clone(img), nil
}

type fixture struct {
	svc     *Service
	mgr     *manager.Manager
	pub     *events.MemoryPublisher
	backend *fakeBackend
}

type fixtureOpts struct {
	disableSwitch bool
	outputDir     string
	inputPath     string
	builder       *schema.Builder
	plugins       []plugins.Plugin
	logger        *zerolog.Logger
}

// newFixture activates b (or an identity backend) behind a real Manager. The
// catalog also holds "other" and a "badmodel" that always fails to load.
func newFixture(t *testing.T, b *fakeBackend, o fixtureOpts) *fixture {
	t.Helper()
	if b == nil {
		b = &fakeBackend{name: "identity"}
	}
	other := &fakeBackend{name: "other"}
	byName := map[string]*fakeBackend{b.name: b, other.name: other}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Builtins: []types.ModelDescriptor{
			{Name: b.name, Kind: "fake"},
			{Name: other.name, Kind: "fake"},
			{Name: "badmodel", Kind: "fake"},
		},
		DisableSwitch: o.disableSwitch,
		Factories: map[string]manager.Factory{
			"fake": func(_ context.Context, d types.ModelDescriptor) (manager.Backend, error) {
				if f, ok := byName[d.Name]; ok {
					return f, nil
				}
				return nil, errBadWeights
			},
		},
	})
	t.Cleanup(func() { _ = mgr.Close() })
	if _, err := mgr.Activate(testCtx(t), b.name); err != nil {
		t.Fatalf("activate: %v", err)
	}
	reg, err := plugins.NewRegistry(o.plugins...)
	if err != nil {
		t.Fatalf("plugins: %v", err)
	}
	pub := events.NewMemoryPublisher()
	svc := New(Options{
		Models:             mgr,
		Plugins:            reg,
		Builder:            o.builder,
		Events:             pub,
		OutputDir:          o.outputDir,
		InputPath:          o.inputPath,
		AlphaInterpolation: imgproc.Linear,
		Logger:             o.logger,
	})
	return &fixture{svc: svc, mgr: mgr, pub: pub, backend: b}
}

var errBadWeights = errors.New("weights are corrupt")

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	return img
}

// withAlpha sets a synthetic alpha gradient that never reaches zero.
func withAlpha(img *image.NRGBA) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x*4+3] = uint8(40 + (x*9+y*3)%200)
		}
	}
	return out
}

func testMask(w, h int, r image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, b []byte) *imgproc.Decoded {
	t.Helper()
	d, err := imgproc.Decode(b)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return d
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
