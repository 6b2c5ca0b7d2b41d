package plugins

import (
	"context"
	"errors"
	"image"

	"inpaintd/internal/manager"
	"inpaintd/internal/runner"
)

// Remote forwards calls to a plugin hosted by the external runner. Its
// output behaviour is declared by configuration.
type Remote struct {
	info   Info
	client *runner.Client
}

// NewRemote returns a plugin served by client under info.Name.
func NewRemote(info Info, client *runner.Client) *Remote {
	return &Remote{info: info, client: client}
}

func (p *Remote) Info() Info { return p.info }

func (p *Remote) Reclaim() { p.client.Reclaim() }

func (p *Remote) Apply(ctx context.Context, img *image.NRGBA, in Input) (*Output, error) {
	form := make(map[string]string, len(in.Form)+1)
	for k, v := range in.Form {
		form[k] = v
	}
	if p.info.NeedsImageHash {
		form[ImageHashField] = in.ImageHash
	}
	d, err := p.client.RunPlugin(ctx, p.info.Name, img, form, in.Files)
	if errors.Is(err, runner.ErrResourceExhausted) {
		return nil, manager.ErrResourceExhausted(p.info.Name, err.Error())
	}
	if err != nil {
		return nil, err
	}
	out := &Output{Image: d.RGB}
	if p.info.ProducesAlpha {
		out.Alpha = d.Alpha
	}
	return out, nil
}
