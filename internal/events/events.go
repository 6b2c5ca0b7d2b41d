// Package events carries progress notifications from a running inference to
// external observers. Delivery is best effort: publishers never block on slow
// subscribers, and a dropped event is not an error.
package events

import "sync"

// Wire names of the progress events.
const (
	NameProgress = "diffusion_progress"
	NameFinish   = "diffusion_finish"
)

// Event is a single progress notification. Step is set for progress events
// only.
type Event struct {
	Name      string
	Step      *int
	RequestID string
}

// Progress builds a step event.
func Progress(requestID string, step int) Event {
	return Event{Name: NameProgress, Step: &step, RequestID: requestID}
}

// Finish builds the completion marker.
func Finish(requestID string) Event {
	return Event{Name: NameFinish, RequestID: requestID}
}

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// Sink is handed to a backend for the duration of one inference call. The
// backend reports each intermediate step in computation order.
type Sink interface {
	Step(i int)
}

// Discard is a Sink that drops every step.
var Discard Sink = discard{}

type discard struct{}

func (discard) Step(int) {}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// StepSink forwards the steps of one request to a Publisher.
type StepSink struct {
	Pub       Publisher
	RequestID string
}

func (s StepSink) Step(i int) {
	if s.Pub == nil {
		return
	}
	s.Pub.Publish(Progress(s.RequestID, i))
}

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Steps returns the step indices recorded so far, in publish order.
func (p *MemoryPublisher) Steps() []int {
	var out []int
	for _, e := range p.Events() {
		if e.Name == NameProgress && e.Step != nil {
			out = append(out, *e.Step)
		}
	}
	return out
}
