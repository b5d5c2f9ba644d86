// Package broker fans events out to subscribers so several observers share
// one monitoring computation.
package broker

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"projectmonitor/internal/logging"
	"projectmonitor/internal/models"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Broker delivers published events to every subscriber. Publishing never
// blocks: a subscriber whose queue is full misses the event.
type Broker struct {
	buffer int
	log    *logrus.Entry

	mu     sync.RWMutex
	subs   map[string]chan models.Event
	closed bool
}

// New creates a broker with the given per-subscriber buffer.
func New(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		buffer: buffer,
		log:    logging.WithPrefix("broker"),
		subs:   make(map[string]chan models.Event),
	}
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or
// Close. Subscribing to a closed broker yields a closed channel.
func (b *Broker) Subscribe() (string, <-chan models.Event) {
	id := uuid.NewString()
	ch := make(chan models.Event, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers ev to all current subscribers.
func (b *Broker) Publish(ev models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.WithFields(logrus.Fields{"subscriber": id, "event": ev.Event}).Warn("subscriber queue full, dropping event")
		}
	}
}

// Len returns the number of subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
