package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/models"
)

const (
	// sendBuffer bounds how far a subscriber may fall behind before it is dropped.
	sendBuffer = 64

	writeTimeout = 5 * time.Second
)

// subscriber is one websocket client with its own outbound queue. A dedicated
// writer goroutine drains the queue so a stalled connection never holds the hub.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster fans newly recorded audit entries out to websocket subscribers.
// Slow or closed connections are dropped, never retried: Notify must not block
// the ledger write path behind a subscriber.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]bool
	logger *logrus.Logger
}

func NewBroadcaster(logger *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[*subscriber]bool),
		logger: logger,
	}
}

// Add registers a subscriber connection and starts its writer goroutine plus
// a read loop that detects the peer closing.
func (b *Broadcaster) Add(conn *websocket.Conn) {
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	b.mu.Lock()
	b.subs[sub] = true
	b.mu.Unlock()
	b.logger.Info("audit stream subscriber connected")

	go b.writeLoop(sub)
	go b.readLoop(sub)
}

func (b *Broadcaster) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for raw := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			b.drop(sub)
			return
		}
	}
}

func (b *Broadcaster) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			b.drop(sub)
			return
		}
	}
}

// drop unregisters the subscriber. Only the caller that removes it from the
// map closes the send channel, so concurrent drops are safe.
func (b *Broadcaster) drop(sub *subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.send)
	}
	b.mu.Unlock()
}

// Notify queues the entry for every subscriber without blocking. A subscriber
// whose queue is full is dropped on the spot.
func (b *Broadcaster) Notify(entry models.AuditEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}

	b.mu.Lock()
	var slow []*subscriber
	for sub := range b.subs {
		select {
		case sub.send <- raw:
		default:
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		delete(b.subs, sub)
		close(sub.send)
	}
	b.mu.Unlock()

	if len(slow) > 0 {
		b.logger.Warnf("Dropped %d slow audit stream subscriber(s)", len(slow))
	}
}
