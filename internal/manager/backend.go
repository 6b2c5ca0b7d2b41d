package manager

import (
	"context"
	"image"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/schema"
	"inpaintd/pkg/types"
)

// Backend is a primary inpainting runtime. Infer receives the image in the
// backend's ChannelOrder and a binarized mask of the same size, and returns an
// image in the same order. Resource exhaustion must be reported with
// ErrResourceExhausted so callers can tell it apart from other failures.
type Backend interface {
	Name() string
	ChannelOrder() imgproc.ChannelOrder
	Infer(ctx context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*image.NRGBA, error)
	// Reclaim releases cached device memory. It is called after every
	// inference attempt and must be safe to call at any time.
	Reclaim()
	// Close releases everything held by the backend. No calls follow Close.
	Close() error
}

// Factory constructs a fully initialized backend for desc.
type Factory func(ctx context.Context, desc types.ModelDescriptor) (Backend, error)
