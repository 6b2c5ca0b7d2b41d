package manager

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/schema"
	"inpaintd/pkg/types"
)

// fakeBackend is a lightweight in-memory backend used for tests. By default
// it returns its input unchanged.
type fakeBackend struct {
	name  string
	order imgproc.ChannelOrder
	err   error
	fn    func(img *image.NRGBA, mask *image.Gray) *image.NRGBA
	delay time.Duration

	calls      atomic.Int32
	reclaims   atomic.Int32
	afterClose atomic.Int32
	closed     atomic.Bool

	mu       sync.Mutex
	lastSize image.Point
	lastPix  []byte
}

func (f *fakeBackend) Name() string                       { return f.name }
func (f *fakeBackend) ChannelOrder() imgproc.ChannelOrder { return f.order }
func (f *fakeBackend) Reclaim()                           { f.reclaims.Add(1) }

func (f *fakeBackend) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeBackend) Infer(ctx context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	if f.closed.Load() {
		f.afterClose.Add(1)
	}
	f.calls.Add(1)
	f.mu.Lock()
	f.lastSize = img.Bounds().Size()
	f.lastPix = append([]byte(nil), img.Pix...)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	sink.Step(0)
	if f.err != nil {
		return nil, f.err
	}
	if f.fn != nil {
		return f.fn(img, mask), nil
	}
	return imaging.Clone(img), nil
}

func (f *fakeBackend) seen() (image.Point, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSize, f.lastPix
}

var errBadModel = errors.New("weights are corrupt")

// newFakeManager builds a Manager whose catalog holds the given fakes plus a
// "badmodel" entry that always fails to construct.
func newFakeManager(t *testing.T, disableSwitch bool, fakes ...*fakeBackend) (*Manager, *MemoryPublisher) {
	t.Helper()
	byName := map[string]*fakeBackend{}
	var catalog []types.ModelDescriptor
	for _, f := range fakes {
		byName[f.name] = f
		catalog = append(catalog, types.ModelDescriptor{Name: f.name, Kind: "fake"})
	}
	catalog = append(catalog, types.ModelDescriptor{Name: "badmodel", Kind: "fake"})
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{
		Builtins:      catalog,
		DisableSwitch: disableSwitch,
		Publisher:     pub,
		Factories: map[string]Factory{
			"fake": func(_ context.Context, d types.ModelDescriptor) (Backend, error) {
				if f, ok := byName[d.Name]; ok {
					return f, nil
				}
				return nil, errBadModel
			},
		},
	})
	t.Cleanup(func() { _ = m.Close() })
	return m, pub
}

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 3), G: uint8(y * 5), B: 40, A: 255})
		}
	}
	return img
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

func solid(c color.NRGBA) func(img *image.NRGBA, _ *image.Gray) *image.NRGBA {
	return func(img *image.NRGBA, _ *image.Gray) *image.NRGBA {
		return imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), c)
	}
}

func defaultCfg() *schema.Config {
	cfg := schema.DefaultConfig()
	return &cfg
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
