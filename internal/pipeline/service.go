// Package pipeline orchestrates one request at a time through decode,
// validation, normalization, inference, alpha composition and encoding. It
// owns no transport: the HTTP layer hands it raw uploads and form fields.
package pipeline

import (
	"context"
	"image"
	"os"
	"time"

	"github.com/rs/zerolog"

	"inpaintd/internal/common/fsutil"
	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/manager"
	"inpaintd/internal/plugins"
	"inpaintd/internal/schema"
	"inpaintd/pkg/types"
)

// Models is the primary backend registry the service drives.
type Models interface {
	Infer(ctx context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*manager.Output, error)
	Reclaim()
	Switch(ctx context.Context, name string) (*manager.Snapshot, error)
	Current() *manager.Snapshot
	CurrentName() string
	ScanAvailable() []types.ModelDescriptor
	Capabilities() manager.Capabilities
	SwitchDisabled() bool
	Ready() bool
}

// Options configures a Service.
type Options struct {
	Models  Models
	Plugins *plugins.Registry
	Builder *schema.Builder
	Events  events.Publisher

	// OutputDir enables /save_image; empty disables saving.
	OutputDir string
	// InputPath is the image served by InputImage; a directory enables the
	// file manager flag instead.
	InputPath string
	// Quality is the JPEG encode quality.
	Quality int
	// AlphaInterpolation resizes alpha channels whose size no longer matches
	// the processed image.
	AlphaInterpolation imgproc.Interpolation
	IsDesktop          bool

	Logger *zerolog.Logger
}

const defaultQuality = 95

// Service runs inpaint, plugin and save requests.
type Service struct {
	models    Models
	plugins   *plugins.Registry
	builder   *schema.Builder
	pub       events.Publisher
	outputDir string
	inputPath string
	quality   int
	alphaInt  imgproc.Interpolation
	desktop   bool
	log       zerolog.Logger
}

// New constructs a Service. Models is required.
func New(opts Options) *Service {
	s := &Service{
		models:    opts.Models,
		plugins:   opts.Plugins,
		builder:   opts.Builder,
		pub:       opts.Events,
		outputDir: opts.OutputDir,
		inputPath: opts.InputPath,
		quality:   opts.Quality,
		alphaInt:  opts.AlphaInterpolation,
		desktop:   opts.IsDesktop,
		log:       zerolog.Nop(),
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "pipeline").Logger()
	}
	if s.plugins == nil {
		s.plugins, _ = plugins.NewRegistry()
	}
	if s.builder == nil {
		s.builder = schema.NewBuilder(false)
	}
	if s.pub == nil {
		s.pub = events.NopPublisher{}
	}
	if s.quality <= 0 {
		s.quality = defaultQuality
	}
	return s
}

// Result is an encoded response image.
type Result struct {
	Body   []byte
	Format imgproc.Format
	Width  int
	Height int
	// Seed is the resolved seed of an inpaint request.
	Seed int
}

// Ready reports whether a primary backend is active.
func (s *Service) Ready() bool { return s.models.Ready() }

// ServerConfig reports the plugin names and feature flags.
func (s *Service) ServerConfig() types.ServerConfig {
	caps := s.models.Capabilities()
	return types.ServerConfig{
		Plugins:            s.plugins.Names(),
		EnableFileManager:  s.inputPath != "" && fsutil.IsDir(s.inputPath),
		EnableAutoSaving:   s.outputDir != "",
		EnableControlnet:   caps.EnableControlnet,
		ControlnetMethod:   caps.ControlnetMethod,
		DisableModelSwitch: s.models.SwitchDisabled(),
		IsDesktop:          s.desktop,
	}
}

// ListModels lists every backend that can be made active.
func (s *Service) ListModels() []types.ModelDescriptor { return s.models.ScanAvailable() }

// ListPlugins describes the registered plugins.
func (s *Service) ListPlugins() []types.PluginDescriptor { return s.plugins.Descriptors() }

// CurrentModel returns the descriptor of the active backend.
func (s *Service) CurrentModel() (types.ModelDescriptor, bool) {
	snap := s.models.Current()
	if snap == nil {
		return types.ModelDescriptor{}, false
	}
	return snap.Model, true
}

// SameModel is the message returned when switching to the active backend.
const SameModel = "Same model"

// SwitchModel makes name the active backend and returns a status message.
// Any failure other than a disabled switch, an unknown name included, is a
// KindSwitchFailed error.
func (s *Service) SwitchModel(ctx context.Context, name string) (string, error) {
	if s.models.SwitchDisabled() {
		return "", &Error{Kind: KindSwitchDisabled, Msg: "Switch model is disabled", Err: manager.ErrSwitchDisabled()}
	}
	if name == s.models.CurrentName() {
		return SameModel, nil
	}
	start := time.Now()
	_, err := s.models.Switch(ctx, name)
	switch {
	case err == nil:
		s.log.Info().Str("model", name).Dur("dur", time.Since(start)).Msg("switched model")
		return "ok, switch to " + name, nil
	case manager.IsSwitchDisabled(err):
		return "", &Error{Kind: KindSwitchDisabled, Msg: "Switch model is disabled", Err: err}
	case manager.IsUnknownBackend(err):
		return "", &Error{Kind: KindUnknownBackend, Msg: "Switch model failed: " + err.Error(), Err: err}
	default:
		return "", &Error{Kind: KindSwitchFailed, Msg: "Switch model failed: " + err.Error(), Err: err}
	}
}

// InputImage returns the image configured at startup.
func (s *Service) InputImage() ([]byte, imgproc.Format, error) {
	if s.inputPath == "" || fsutil.IsDir(s.inputPath) {
		return nil, "", &Error{Kind: KindNotFound, Msg: "No Input Image"}
	}
	b, err := os.ReadFile(s.inputPath)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.inputPath).Msg("read input image")
		return nil, "", &Error{Kind: KindNotFound, Msg: "No Input Image", Err: err}
	}
	return b, imgproc.SniffFormat(b), nil
}

// observe logs and records the duration of the normalize to encode span.
func (s *Service) observe(op string, start time.Time, f *flow, err error) {
	if start.IsZero() {
		return
	}
	dur := time.Since(start)
	outcome := "ok"
	ev := s.log.Info()
	if err != nil {
		outcome = string(KindOf(err))
		ev = s.log.Warn().Str("stage", f.failedAt.String())
	}
	requestDuration.WithLabelValues(op, outcome).Observe(dur.Seconds())
	ev.Str("op", op).Str("outcome", outcome).Dur("dur", dur).Msg("process")
}

func (s *Service) countFailure(op string, err error) {
	if k := KindOf(err); k != "" {
		requestFailures.WithLabelValues(op, string(k)).Inc()
	}
}
