package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/manager"
	"inpaintd/internal/schema"
)

// InpaintRequest is one /inpaint call.
type InpaintRequest struct {
	Image []byte
	Mask  []byte
	// Form holds the typed configuration fields; Files the optional side
	// uploads such as the paint-by-example image.
	Form      map[string]string
	Files     map[string][]byte
	RequestID string
}

// Inpaint runs the active primary backend on the request. The backend call
// is not interrupted when ctx is canceled; memory reclamation runs after
// every attempt.
func (s *Service) Inpaint(ctx context.Context, req InpaintRequest) (res *Result, err error) {
	const op = "inpaint"
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	f := &flow{}
	var start time.Time
	defer func() {
		s.observe(op, start, f, err)
		s.countFailure(op, err)
	}()

	src, err := imgproc.Decode(req.Image)
	if err != nil {
		return nil, f.fail(&Error{Kind: KindValidation, Msg: "invalid image: " + err.Error(), Err: err})
	}
	mask, err := imgproc.DecodeGray(req.Mask)
	if err != nil {
		return nil, f.fail(&Error{Kind: KindValidation, Msg: "invalid mask: " + err.Error(), Err: err})
	}
	is, ms := src.RGB.Bounds().Size(), mask.Bounds().Size()
	if is != ms {
		return nil, f.fail(&Error{
			Kind: KindValidation,
			Msg:  fmt.Sprintf("image size(%dx%d) not match mask size(%dx%d)", is.X, is.Y, ms.X, ms.Y),
		})
	}
	cfg, err := s.builder.Build(req.Form, req.Files)
	if err != nil {
		return nil, f.fail(&Error{Kind: KindValidation, Msg: err.Error(), Err: err})
	}
	f.advance(StageValidated)
	s.log.Debug().Str("request_id", req.RequestID).Int("width", is.X).Int("height", is.Y).
		Str("format", string(src.Format)).Bool("alpha", src.Alpha != nil).Msg("origin image")

	start = time.Now()
	limit := max(is.X, is.Y)
	img := imgproc.ResizeToLimit(src.RGB, limit, imgproc.Cubic)
	mask = imgproc.Binarize(imgproc.ResizeToLimit(mask, limit, imgproc.Cubic))
	f.advance(StageNormalized)

	out, ierr := s.infer(ctx, img, mask, cfg, req.RequestID)
	if ierr != nil {
		return nil, f.fail(ierr)
	}
	f.advance(StageInferred)

	composed := imgproc.ComposeAlpha(imgproc.FromOrder(out.Image, out.Order), src.Alpha, s.alphaInt)
	f.advance(StageComposed)

	body, format, err := imgproc.Encode(composed, src.Format, s.quality, src.Meta)
	if err != nil {
		return nil, f.fail(&Error{Kind: KindBackend, Msg: "encode result: " + err.Error(), Err: err})
	}
	f.advance(StageEncoded)

	s.pub.Publish(events.Finish(req.RequestID))
	f.advance(StageResponded)
	b := composed.Bounds()
	return &Result{Body: body, Format: format, Width: b.Dx(), Height: b.Dy(), Seed: cfg.SDSeed}, nil
}

// infer calls the primary backend detached from ctx's cancellation and
// classifies the failure. Reclaim always runs before it returns.
func (s *Service) infer(ctx context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, requestID string) (*manager.Output, *Error) {
	defer s.models.Reclaim()
	out, err := s.models.Infer(context.WithoutCancel(ctx), img, mask, cfg, events.StepSink{Pub: s.pub, RequestID: requestID})
	if err == nil {
		return out, nil
	}
	return nil, s.classify(err, manager.BackendOf(err), requestID)
}

// classify turns a backend failure into a caller-facing Error, logging the
// full cause.
func (s *Service) classify(err error, backend, requestID string) *Error {
	if manager.IsResourceExhausted(err) {
		s.log.Error().Err(err).Str("backend", backend).Str("request_id", requestID).Msg("resource exhausted")
		return &Error{Kind: KindResourceExhausted, Msg: "out of memory", Err: err}
	}
	s.log.Error().Err(err).Str("backend", backend).Str("request_id", requestID).Msg("backend failure")
	return &Error{Kind: KindBackend, Msg: err.Error(), Err: err}
}
