package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/plugins"
)

// PluginRequest is one /run_plugin call.
type PluginRequest struct {
	Name      string
	Image     []byte
	Form      map[string]string
	Files     map[string][]byte
	RequestID string
}

// RunPlugin applies the named plugin to the uploaded image. The response
// format and alpha handling follow the plugin's declared Info.
func (s *Service) RunPlugin(ctx context.Context, req PluginRequest) (res *Result, err error) {
	const op = "run_plugin"
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	f := &flow{}
	var start time.Time
	defer func() {
		s.observe(op, start, f, err)
		s.countFailure(op, err)
	}()

	p, ok := s.plugins.Get(req.Name)
	if !ok {
		return nil, f.fail(&Error{Kind: KindPluginNotFound, Msg: "Plugin " + req.Name + " not found"})
	}
	info := p.Info()
	src, err := imgproc.Decode(req.Image)
	if err != nil {
		return nil, f.fail(&Error{Kind: KindValidation, Msg: "invalid image: " + err.Error(), Err: err})
	}
	in := plugins.Input{Form: req.Form, Files: req.Files}
	if info.NeedsImageHash {
		sum := md5.Sum(req.Image)
		in.ImageHash = hex.EncodeToString(sum[:])
	}
	f.advance(StageValidated)

	start = time.Now()
	f.advance(StageNormalized)
	out, perr := s.applyPlugin(ctx, p, src, in, req.RequestID)
	if perr != nil {
		return nil, f.fail(perr)
	}
	f.advance(StageInferred)

	img := imgproc.FromOrder(out.Image, info.Order)
	alpha := src.Alpha
	if info.ProducesAlpha {
		alpha = out.Alpha
	}
	composed := imgproc.ComposeAlpha(img, alpha, s.alphaInt)
	f.advance(StageComposed)

	format := src.Format
	if info.FixedFormat != "" {
		format = info.FixedFormat
	}
	body, format, err := imgproc.Encode(composed, format, s.quality, src.Meta)
	if err != nil {
		return nil, f.fail(&Error{Kind: KindBackend, Msg: "encode result: " + err.Error(), Err: err})
	}
	f.advance(StageEncoded)

	s.pub.Publish(events.Finish(req.RequestID))
	f.advance(StageResponded)
	b := composed.Bounds()
	return &Result{Body: body, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

func (s *Service) applyPlugin(ctx context.Context, p plugins.Plugin, src *imgproc.Decoded, in plugins.Input, requestID string) (out *plugins.Output, e *Error) {
	name := p.Info().Name
	defer p.Reclaim()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("plugin", name).Str("request_id", requestID).Msg("plugin panic")
			out, e = nil, &Error{Kind: KindBackend, Msg: "plugin " + name + " failed"}
		}
	}()
	res, err := p.Apply(context.WithoutCancel(ctx), imgproc.ToOrder(src.RGB, p.Info().Order), in)
	if err == nil && (res == nil || res.Image == nil) {
		err = errEmptyOutput
	}
	if err != nil {
		if plugins.IsInputError(err) {
			return nil, &Error{Kind: KindValidation, Msg: err.Error(), Err: err}
		}
		return nil, s.classify(err, name, requestID)
	}
	return res, nil
}
