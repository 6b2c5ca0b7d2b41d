package manager

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"inpaintd/internal/registry"
	"inpaintd/pkg/types"
)

// Descriptor kinds understood by the default factories.
const (
	KindBuiltin = "builtin"
	KindRunner  = registry.KindRunner
)

type Manager struct {
	// switchMu serializes swaps; readers never take it.
	switchMu sync.Mutex
	active   atomic.Pointer[Snapshot]

	mu      sync.RWMutex
	state   State
	lastErr string

	builtins         []types.ModelDescriptor
	modelsDir        string
	disableSwitch    bool
	enableControlnet bool
	controlnetMethod string
	factories        map[string]Factory

	publisher EventPublisher
	log       zerolog.Logger
}

// SetEventPublisher replaces the lifecycle event publisher.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}

// Ready reports whether a backend is active.
func (m *Manager) Ready() bool {
	return m.active.Load() != nil
}

// Status returns a read-only view of the manager state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{State: m.state, Current: m.CurrentName(), Err: m.lastErr}
}

// Current returns the active snapshot, or nil before activation.
func (m *Manager) Current() *Snapshot { return m.active.Load() }

// CurrentName returns the name of the active backend, or "".
func (m *Manager) CurrentName() string {
	if s := m.active.Load(); s != nil {
		return s.Name()
	}
	return ""
}

// Capabilities returns the feature flags of the active backend.
func (m *Manager) Capabilities() Capabilities {
	if s := m.active.Load(); s != nil {
		return s.Capabilities
	}
	return Capabilities{}
}

// SwitchDisabled reports whether Switch is rejected.
func (m *Manager) SwitchDisabled() bool { return m.disableSwitch }

// ScanAvailable lists the builtin backends followed by the runner models
// found in the models directory. A directory that cannot be scanned is logged
// and contributes nothing.
func (m *Manager) ScanAvailable() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, 0, len(m.builtins))
	out = append(out, m.builtins...)
	if _, ok := m.factories[KindRunner]; !ok || m.modelsDir == "" {
		return out
	}
	found, err := registry.LoadDir(m.modelsDir)
	if err != nil {
		m.log.Warn().Err(err).Str("dir", m.modelsDir).Msg("scan models dir")
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, d := range out {
		seen[d.Name] = true
	}
	for _, d := range found {
		if !seen[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

func (m *Manager) lookup(name string) (types.ModelDescriptor, bool) {
	for _, d := range m.ScanAvailable() {
		if d.Name == name {
			return d, true
		}
	}
	return types.ModelDescriptor{}, false
}

// Close retires the active backend. The manager is not usable afterwards.
func (m *Manager) Close() error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()
	s := m.active.Swap(nil)
	if s == nil {
		return nil
	}
	return m.retire(s)
}

func capabilitiesFor(d types.ModelDescriptor, enableControlnet bool, method string) Capabilities {
	c := Capabilities{NeedPrompt: d.NeedPrompt, SupportStrength: d.SupportStrength}
	if !enableControlnet || !d.SupportControlnet {
		return c
	}
	c.EnableControlnet = true
	c.ControlnetMethod = method
	if len(d.Controlnets) == 0 {
		return c
	}
	for _, cn := range d.Controlnets {
		if cn == method {
			return c
		}
	}
	c.ControlnetMethod = d.Controlnets[0]
	return c
}
