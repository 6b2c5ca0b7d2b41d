package manager

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/runner"
	"inpaintd/internal/schema"
	"inpaintd/pkg/types"
)

// runnerBackend serves one model from the external runner.
type runnerBackend struct {
	client *runner.Client
	model  string
	log    zerolog.Logger
}

// NewRunnerFactory returns a Factory that loads descriptors on the runner at
// baseURL. A model that fails to load on the runner fails the switch.
func NewRunnerFactory(baseURL string, reqTimeout, connectTimeout time.Duration, log zerolog.Logger) Factory {
	client := runner.New(baseURL, reqTimeout, connectTimeout, log)
	return func(ctx context.Context, desc types.ModelDescriptor) (Backend, error) {
		if err := client.Load(ctx, desc.Name); err != nil {
			return nil, err
		}
		return &runnerBackend{client: client, model: desc.Name, log: log}, nil
	}
}

func (b *runnerBackend) Name() string                       { return b.model }
func (b *runnerBackend) ChannelOrder() imgproc.ChannelOrder { return imgproc.RGB }
func (b *runnerBackend) Reclaim()                           { b.client.Reclaim() }

func (b *runnerBackend) Infer(ctx context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error) {
	out, err := b.client.Inpaint(ctx, b.model, img, mask, cfg)
	if errors.Is(err, runner.ErrResourceExhausted) {
		return nil, ErrResourceExhausted(b.model, err.Error())
	}
	if err != nil {
		return nil, err
	}
	sink.Step(0)
	return out, nil
}

func (b *runnerBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.client.Unload(ctx, b.model); err != nil {
		b.log.Warn().Err(err).Str("backend", b.model).Msg("unload on runner")
	}
	return nil
}
