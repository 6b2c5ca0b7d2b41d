package manager

import (
	"image"
	"sync"
	"time"

	"inpaintd/internal/imgproc"
	"inpaintd/pkg/types"
)

// State represents lifecycle state of the manager.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateError   State = "error"
)

// Capabilities are the feature flags of the active backend.
type Capabilities struct {
	EnableControlnet bool
	ControlnetMethod string
	NeedPrompt       bool
	SupportStrength  bool
}

// Snapshot is one published generation of the active backend. Its exported
// fields never change after publication; a swap publishes a new Snapshot.
type Snapshot struct {
	Model        types.ModelDescriptor
	Capabilities Capabilities
	Since        time.Time

	backend Backend
	// mu is held for reading by in-flight calls and for writing while the
	// snapshot is retired, so Close never races an Infer.
	mu      sync.RWMutex
	retired bool
}

// Name returns the backend name of the snapshot.
func (s *Snapshot) Name() string { return s.Model.Name }

// Status is a read-only projection of the manager state.
type Status struct {
	State   State
	Current string
	Err     string
}

// Output is the result of one Infer call, in the backend's channel order.
type Output struct {
	Image   *image.NRGBA
	Order   imgproc.ChannelOrder
	Backend string
}
