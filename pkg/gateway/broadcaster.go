package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Broadcaster fans events out to all connected websocket clients.
type Broadcaster struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]bool
	seq    uint64
	logger zerolog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		conns:  make(map[*websocket.Conn]bool),
		logger: logger,
	}
}

// Add registers a client connection.
func (b *Broadcaster) Add(conn *websocket.Conn) {
	b.mu.Lock()
	b.conns[conn] = true
	b.mu.Unlock()
}

// Remove unregisters a client connection.
func (b *Broadcaster) Remove(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.conns, conn)
	b.mu.Unlock()
}

// Count returns the number of connected clients.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Broadcast sends an event to every connected client. Write failures drop
// the offending client; they never affect the workflow that emitted the
// event.
func (b *Broadcaster) Broadcast(event string, data interface{}) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		Seq:       atomic.AddUint64(&b.seq, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.conns {
		if err := conn.WriteJSON(msg); err != nil {
			b.logger.Warn().Err(err).Str("event", event).Msg("Failed to broadcast to client")
			_ = conn.Close()
			delete(b.conns, conn)
		}
	}
}
