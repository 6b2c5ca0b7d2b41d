package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inpaintd/pkg/types"
)

const (
	defaultSubscriberBuffer = 64
	writeWait               = 10 * time.Second
	pongWait                = 60 * time.Second
	pingInterval            = (pongWait * 9) / 10
)

// Hub fans events out to any number of subscribers. A subscriber whose buffer
// is full misses the event; the publisher is never held up.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	log    zerolog.Logger

	upgrader websocket.Upgrader
}

// NewHub constructs a Hub. A buffer of zero or less uses the package default.
func NewHub(log zerolog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
		log:    log.With().Str("component", "events").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks are left to the CORS configuration of the mux.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Publish delivers e to every subscriber that has room for it.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.log.Debug().Str("event", e.Name).Msg("subscriber buffer full, dropping event")
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func unregisters
// it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Message converts e to its wire form.
func Message(e Event) types.ProgressMessage {
	return types.ProgressMessage{Event: e.Name, Step: e.Step, RequestID: e.RequestID}
}

// ServeWS upgrades the request to a websocket and streams events as JSON text
// frames until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	events, cancel := h.Subscribe()
	defer cancel()
	defer conn.Close()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("subscriber connected")

	// The read side only services control frames and notices the close.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			h.log.Debug().Str("remote", r.RemoteAddr).Msg("subscriber disconnected")
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(Message(e))
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
