package manager

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"inpaintd/internal/events"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/schema"
)

// Infer runs the active backend on an RGB image and a binarized mask of the
// same size, applying cfg's HD strategy. The returned image is in the
// backend's channel order; converting it back is the caller's concern. It
// blocks for the full duration of the call.
//
// Failures are either resource exhaustion (IsResourceExhausted) or a wrapped
// backend error (IsBackendError). Nothing is retried.
func (m *Manager) Infer(ctx context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (*Output, error) {
	if !imgproc.SameSize(img.Bounds(), mask.Bounds()) {
		return nil, fmt.Errorf("image %v and mask %v differ in size", img.Bounds().Size(), mask.Bounds().Size())
	}
	if sink == nil {
		sink = events.Discard
	}
	for {
		s := m.active.Load()
		if s == nil {
			return nil, ErrNoActiveBackend
		}
		out, ok, err := s.infer(ctx, img, mask, cfg, sink)
		if !ok {
			// Retired between Load and the read lock; a newer snapshot is published.
			continue
		}
		if err != nil {
			var re resourceExhaustedError
			if errors.As(err, &re) {
				backendFailures.WithLabelValues(s.Name(), "resource_exhausted").Inc()
				if re.backend == "" {
					re.backend = s.Name()
					return nil, re
				}
				return nil, err
			}
			backendFailures.WithLabelValues(s.Name(), "error").Inc()
			return nil, &backendError{backend: s.Name(), err: err}
		}
		return out, nil
	}
}

func (s *Snapshot) infer(ctx context.Context, img *image.NRGBA, mask *image.Gray, cfg *schema.Config, sink events.Sink) (out *Output, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.retired {
		return nil, false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			out, ok, err = nil, true, fmt.Errorf("backend panic: %v", r)
		}
	}()
	order := s.backend.ChannelOrder()
	start := time.Now()
	res, err := runStrategy(ctx, s.backend, imgproc.ToOrder(img, order), mask, cfg, sink)
	backendDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, true, err
	}
	return &Output{Image: res, Order: order, Backend: s.Name()}, true, nil
}

// Reclaim asks the active backend to release cached device memory. It is
// meant to run unconditionally after every inference attempt.
func (m *Manager) Reclaim() {
	s := m.active.Load()
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.retired {
		s.backend.Reclaim()
	}
}
