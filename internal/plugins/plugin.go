// Package plugins holds the auxiliary backends invoked by name through
// /run_plugin. The set is fixed at startup. Each plugin declares how its
// output must be treated (fixed container format, own alpha, need for the
// image content hash) so callers never special-case plugin names.
package plugins

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	"inpaintd/internal/imgproc"
	"inpaintd/pkg/types"
)

// ImageHashField is the form field carrying the upload's content hash for
// plugins that keep per-image state.
const ImageHashField = "img_md5"

// Info is the declared behaviour of a plugin.
type Info struct {
	Name string
	// FixedFormat, when set, overrides the upload's format for the response.
	FixedFormat imgproc.Format
	// ProducesAlpha plugins return their own transparency; the upload's
	// alpha is not recombined with their output.
	ProducesAlpha bool
	// NeedsImageHash plugins receive the upload's content hash in Input.
	NeedsImageHash bool
	// Order is the channel order Apply receives and returns.
	Order imgproc.ChannelOrder
}

// Input carries the side inputs of one plugin call.
type Input struct {
	Form      map[string]string
	Files     map[string][]byte
	ImageHash string
}

// Output is a plugin result. Alpha is set only by ProducesAlpha plugins.
type Output struct {
	Image *image.NRGBA
	Alpha *image.Gray
}

// Plugin is a named auxiliary backend. Apply receives an opaque image in
// the declared channel order.
type Plugin interface {
	Info() Info
	Apply(ctx context.Context, img *image.NRGBA, in Input) (*Output, error)
	// Reclaim releases cached device memory after each call.
	Reclaim()
}

// Registry maps plugin names to plugins. It is immutable after construction.
type Registry struct {
	byName map[string]Plugin
	names  []string
}

// NewRegistry builds a registry; plugin names must be unique.
func NewRegistry(ps ...Plugin) (*Registry, error) {
	r := &Registry{byName: make(map[string]Plugin, len(ps))}
	for _, p := range ps {
		name := p.Info().Name
		if name == "" {
			return nil, fmt.Errorf("plugin with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate plugin %q", name)
		}
		r.byName[name] = p
		r.names = append(r.names, name)
	}
	return r, nil
}

// Get returns the plugin registered as name.
func (r *Registry) Get(name string) (Plugin, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names lists plugin names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Descriptors lists the declared behaviour of every plugin.
func (r *Registry) Descriptors() []types.PluginDescriptor {
	out := make([]types.PluginDescriptor, 0, len(r.names))
	for _, n := range r.names {
		info := r.byName[n].Info()
		out = append(out, types.PluginDescriptor{
			Name:          info.Name,
			FixedFormat:   string(info.FixedFormat),
			ProducesAlpha: info.ProducesAlpha,
		})
	}
	return out
}

// formFloat parses an optional float field with bounds.
func formFloat(form map[string]string, key string, def, lo, hi float64) (float64, error) {
	raw, ok := form[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &InputError{Field: key, Reason: "not a number"}
	}
	if v < lo || v > hi {
		return 0, &InputError{Field: key, Reason: fmt.Sprintf("must be within [%g, %g]", lo, hi)}
	}
	return v, nil
}
