package manager

import (
	"context"
	"time"
)

// Activate makes name the active backend at startup. Unlike Switch it is
// allowed when switching is disabled.
func (m *Manager) Activate(ctx context.Context, name string) (*Snapshot, error) {
	return m.swap(ctx, name)
}

// Switch atomically replaces the active backend with name and returns the
// newly published snapshot. On any failure the previous backend stays active.
// Switching to the active name is a no-op returning the current snapshot.
func (m *Manager) Switch(ctx context.Context, name string) (*Snapshot, error) {
	if m.disableSwitch {
		return nil, switchDisabledError{}
	}
	return m.swap(ctx, name)
}

func (m *Manager) swap(ctx context.Context, name string) (*Snapshot, error) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	old := m.active.Load()
	if old != nil && old.Name() == name {
		return old, nil
	}
	desc, ok := m.lookup(name)
	if !ok {
		switchTotal.WithLabelValues("unknown").Inc()
		return nil, ErrUnknownBackend(name)
	}
	factory, ok := m.factories[desc.Kind]
	if !ok {
		switchTotal.WithLabelValues("unknown").Inc()
		return nil, ErrUnknownBackend(name)
	}

	m.publish(Event{Name: EventSwitchStart, Backend: name, Fields: map[string]any{"kind": desc.Kind}})
	m.setState(StateLoading, "")
	start := time.Now()
	b, err := factory(ctx, desc)
	if err != nil {
		switchTotal.WithLabelValues("failed").Inc()
		m.log.Error().Err(err).Str("backend", name).Msg("switch failed, keeping previous backend")
		m.publish(Event{Name: EventSwitchFailed, Backend: name, Fields: map[string]any{"error": err.Error()}})
		if old != nil {
			m.setState(StateReady, err.Error())
		} else {
			m.setState(StateError, err.Error())
		}
		return nil, &switchFailedError{name: name, err: err}
	}

	next := &Snapshot{
		Model:        desc,
		Capabilities: capabilitiesFor(desc, m.enableControlnet, m.controlnetMethod),
		Since:        time.Now(),
		backend:      b,
	}
	m.active.Store(next)
	m.setState(StateReady, "")
	switchTotal.WithLabelValues("ok").Inc()
	m.log.Info().Str("backend", name).Dur("dur", time.Since(start)).Msg("backend active")
	m.publish(Event{Name: EventSwitchReady, Backend: name, Fields: map[string]any{"dur_ms": time.Since(start).Milliseconds()}})

	if old != nil {
		if err := m.retire(old); err != nil {
			m.log.Warn().Err(err).Str("backend", old.Name()).Msg("close retired backend")
		}
	}
	return next, nil
}

// retire waits for in-flight calls on s and closes its backend. Calls that
// load s after this point see it retired and retry on the active snapshot.
func (m *Manager) retire(s *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return nil
	}
	s.retired = true
	m.publish(Event{Name: EventRetired, Backend: s.Name()})
	return s.backend.Close()
}

func (m *Manager) setState(st State, errMsg string) {
	m.mu.Lock()
	m.state = st
	m.lastErr = errMsg
	m.mu.Unlock()
}
