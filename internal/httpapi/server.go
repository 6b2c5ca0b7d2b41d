package httpapi

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inpaintd/internal/imgproc"
	"inpaintd/internal/pipeline"
	"inpaintd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Inpaint(ctx context.Context, req pipeline.InpaintRequest) (*pipeline.Result, error)
	RunPlugin(ctx context.Context, req pipeline.PluginRequest) (*pipeline.Result, error)
	SaveImage(req pipeline.SaveRequest) (string, error)
	ServerConfig() types.ServerConfig
	ListModels() []types.ModelDescriptor
	ListPlugins() []types.PluginDescriptor
	CurrentModel() (types.ModelDescriptor, bool)
	SwitchModel(ctx context.Context, name string) (string, error)
	InputImage() ([]byte, imgproc.Format, error)
	Ready() bool
}

// multipartMemory is the part of an upload kept in memory; the rest spills
// to temporary files.
const multipartMemory = 32 << 20

// NewMux builds the router. stream serves GET /events when non-nil.
func NewMux(svc Service, stream http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: exposedHeaders,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Post("/inpaint", h.inpaint)
	r.Post("/run_plugin", h.runPlugin)
	r.Post("/save_image", h.saveImage)
	r.Get("/inputimage", h.inputImage)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/server_config", h.serverConfig)
		r.Get("/models", h.listModels)
		r.Get("/plugins", h.listPlugins)
		r.Get("/model", h.currentModel)
	})
	r.Post("/model", h.switchModel)

	if stream != nil {
		r.Get("/events", stream.ServeHTTP)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

type handlers struct {
	svc Service
}

// inpaint godoc
// @Summary      Inpaint the masked region of an image
// @Tags         inpaint
// @Accept       multipart/form-data
// @Produce      image/png,image/jpeg
// @Param        image  formData  file  true  "Source image"
// @Param        mask   formData  file  true  "Mask, white marks the region to fill"
// @Param        paintByExampleImage  formData  file  false  "Conditioning image"
// @Success      200  {file}    binary  "Result in the upload's format; X-Seed carries the resolved seed"
// @Failure      400  {string}  string
// @Failure      500  {string}  string
// @Router       /inpaint [post]
func (h *handlers) inpaint(w http.ResponseWriter, r *http.Request) {
	const op = "inpaint"
	lvl := requestLogLevel(r)
	start := time.Now()
	up, err := readUpload(w, r)
	if err != nil {
		writeTextError(w, http.StatusBadRequest, err.Error())
		logEnd(r, lvl, op, http.StatusBadRequest, start, err)
		return
	}
	defer up.cleanup()
	img, ok := up.file("image")
	if !ok {
		writeTextError(w, http.StatusBadRequest, "image is required")
		return
	}
	mask, ok := up.file("mask")
	if !ok {
		writeTextError(w, http.StatusBadRequest, "mask is required")
		return
	}
	logStart(r, lvl, op, map[string]any{"image_bytes": len(img), "mask_bytes": len(mask)})

	res, err := h.svc.Inpaint(r.Context(), pipeline.InpaintRequest{
		Image:     img,
		Mask:      mask,
		Form:      up.form,
		Files:     up.files,
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		status := statusOf(err)
		writeTextError(w, status, err.Error())
		logEnd(r, lvl, op, status, start, err)
		return
	}
	w.Header().Set("X-Seed", strconv.Itoa(res.Seed))
	writeImage(w, res)
	logEnd(r, lvl, op, http.StatusOK, start, nil)
}

// runPlugin godoc
// @Summary      Run a named plugin on an image
// @Tags         plugins
// @Accept       multipart/form-data
// @Produce      image/png,image/jpeg
// @Param        name   formData  string  true  "Plugin name"
// @Param        image  formData  file    true  "Source image"
// @Success      200  {file}    binary
// @Failure      400  {string}  string
// @Failure      500  {string}  string
// @Router       /run_plugin [post]
func (h *handlers) runPlugin(w http.ResponseWriter, r *http.Request) {
	const op = "run_plugin"
	lvl := requestLogLevel(r)
	start := time.Now()
	up, err := readUpload(w, r)
	if err != nil {
		writeTextError(w, http.StatusBadRequest, err.Error())
		logEnd(r, lvl, op, http.StatusBadRequest, start, err)
		return
	}
	defer up.cleanup()
	name := strings.TrimSpace(up.form["name"])
	if name == "" {
		writeTextError(w, http.StatusBadRequest, "name is required")
		return
	}
	img, ok := up.file("image")
	if !ok {
		writeTextError(w, http.StatusBadRequest, "image is required")
		return
	}
	delete(up.form, "name")
	logStart(r, lvl, op, map[string]any{"plugin": name, "image_bytes": len(img)})

	res, err := h.svc.RunPlugin(r.Context(), pipeline.PluginRequest{
		Name:      name,
		Image:     img,
		Form:      up.form,
		Files:     up.files,
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		status := statusOf(err)
		writeTextError(w, status, err.Error())
		logEnd(r, lvl, op, status, start, err)
		return
	}
	writeImage(w, res)
	logEnd(r, lvl, op, http.StatusOK, start, nil)
}

// saveImage godoc
// @Summary      Save an image under the output directory as PNG
// @Tags         inpaint
// @Accept       multipart/form-data
// @Produce      plain
// @Param        image     formData  file    true  "Image to save"
// @Param        filename  formData  string  false "File name; the extension is replaced by .png"
// @Success      200  {string}  string  "ok"
// @Failure      400  {string}  string
// @Failure      500  {string}  string
// @Router       /save_image [post]
func (h *handlers) saveImage(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r)
	if err != nil {
		writeTextError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer up.cleanup()
	img, ok := up.file("image")
	if !ok {
		writeTextError(w, http.StatusBadRequest, "image is required")
		return
	}
	if _, err := h.svc.SaveImage(pipeline.SaveRequest{Image: img, Filename: up.form["filename"]}); err != nil {
		writeTextError(w, statusOf(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// inputImage godoc
// @Summary      Image passed on the command line
// @Tags         inpaint
// @Produce      png,jpeg
// @Success      200  {file}    binary
// @Failure      404  {string}  string
// @Router       /inputimage [get]
func (h *handlers) inputImage(w http.ResponseWriter, r *http.Request) {
	b, format, err := h.svc.InputImage()
	if err != nil {
		writeTextError(w, statusOf(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	_, _ = w.Write(b)
}

// serverConfig godoc
// @Summary      Plugins and feature flags
// @Tags         config
// @Produce      json
// @Success      200  {object}  types.ServerConfig
// @Router       /server_config [get]
func (h *handlers) serverConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.ServerConfig())
}

// listModels godoc
// @Summary      Backends that can be made active
// @Tags         models
// @Produce      json
// @Success      200  {array}  types.ModelDescriptor
// @Router       /models [get]
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.ListModels())
}

// listPlugins godoc
// @Summary      Registered plugins and their output behaviour
// @Tags         plugins
// @Produce      json
// @Success      200  {array}  types.PluginDescriptor
// @Router       /plugins [get]
func (h *handlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.ListPlugins())
}

// currentModel godoc
// @Summary      Active backend
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelDescriptor
// @Failure      503  {object}  types.ErrorResponse
// @Router       /model [get]
func (h *handlers) currentModel(w http.ResponseWriter, r *http.Request) {
	m, ok := h.svc.CurrentModel()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "no active model")
		return
	}
	writeJSON(w, m)
}

// switchModel godoc
// @Summary      Switch the active backend
// @Tags         models
// @Accept       x-www-form-urlencoded
// @Produce      plain
// @Param        name  formData  string  true  "Backend name"
// @Success      200  {string}  string
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /model [post]
func (h *handlers) switchModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	msg, err := h.svc.SwitchModel(ctx, name)
	if err != nil {
		writeJSONError(w, statusOf(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(msg))
}

func writeImage(w http.ResponseWriter, res *pipeline.Result) {
	w.Header().Set("Content-Type", res.Format.ContentType())
	w.Header().Set("X-Width", strconv.Itoa(res.Width))
	w.Header().Set("X-Height", strconv.Itoa(res.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

// upload is a parsed multipart request: the first value of every field and
// the bytes of every file part.
type upload struct {
	form  map[string]string
	files map[string][]byte
	mf    *multipart.Form
}

var errBadForm = errors.New("expected a multipart form")

func readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, errors.New("request body too large")
		}
		return nil, errBadForm
	}
	up := &upload{form: map[string]string{}, files: map[string][]byte{}, mf: r.MultipartForm}
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			up.form[k] = vs[0]
		}
	}
	path := routePatternOrPath(r)
	for k, fhs := range r.MultipartForm.File {
		if len(fhs) == 0 {
			continue
		}
		f, err := fhs[0].Open()
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploadBytes.WithLabelValues(path).Observe(float64(len(b)))
		up.files[k] = b
	}
	return up, nil
}

// file removes and returns the named upload so it is not passed on as a
// side file.
func (u *upload) file(name string) ([]byte, bool) {
	b, ok := u.files[name]
	if !ok || len(b) == 0 {
		return nil, false
	}
	delete(u.files, name)
	return b, true
}

func (u *upload) cleanup() {
	if u.mf != nil {
		_ = u.mf.RemoveAll()
	}
}
