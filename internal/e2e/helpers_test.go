package e2e

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inpaintd/internal/events"
	"inpaintd/internal/httpapi"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/manager"
	"inpaintd/internal/pipeline"
	"inpaintd/internal/plugins"
	"inpaintd/internal/schema"
)

type stack struct {
	srv       *httptest.Server
	mgr       *manager.Manager
	hub       *events.Hub
	outputDir string
}

type stackOpts struct {
	maxPixels     int
	disableSwitch bool
}

// newStack wires the real manager, plugins, pipeline and router behind an
// httptest server, the way cmd/inpaintd does.
func newStack(t *testing.T, o stackOpts) *stack {
	t.Helper()
	log := zerolog.Nop()
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		MaxPixels:     o.maxPixels,
		DisableSwitch: o.disableSwitch,
		Logger:        &log,
	})
	t.Cleanup(func() { _ = mgr.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := mgr.Activate(ctx, manager.BuiltinCV2); err != nil {
		t.Fatalf("activate: %v", err)
	}
	reg, err := plugins.FromSettings(plugins.Settings{RemoveBG: true, Upscale: true}, log)
	if err != nil {
		t.Fatalf("plugins: %v", err)
	}
	hub := events.NewHub(log, 64)
	out := t.TempDir()
	svc := pipeline.New(pipeline.Options{
		Models:             mgr,
		Plugins:            reg,
		Builder:            schema.NewBuilder(false),
		Events:             hub,
		OutputDir:          out,
		AlphaInterpolation: imgproc.Linear,
		Logger:             &log,
	})
	srv := httptest.NewServer(httpapi.NewMux(svc, http.HandlerFunc(hub.ServeWS)))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, mgr: mgr, hub: hub, outputDir: out}
}

// gradient is an opaque test image with a half-transparent alpha when
// withAlpha is set.
func gradient(w, h int, withAlpha bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if withAlpha && x < w/2 {
				a = 128
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: a})
		}
	}
	return img
}

// subject is a red square on a white background.
func subject(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4 {
				c = color.NRGBA{R: 200, G: 20, B: 20, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// centerMask marks a square in the middle of a w x h image.
func centerMask(w, h int) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func postMultipart(t *testing.T, url string, fields map[string]string, files map[string][]byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for k, b := range files {
		fw, err := mw.CreateFormFile(k, k+".png")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(b)
	}
	_ = mw.Close()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
