package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + backend name and optional fields.
type Event struct {
	Name    string
	Backend string
	Fields  map[string]any
}

// Lifecycle event names.
const (
	EventSwitchStart  = "switch_start"
	EventSwitchReady  = "switch_ready"
	EventSwitchFailed = "switch_failed"
	EventRetired      = "backend_retired"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
