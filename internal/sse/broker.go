// Package sse pushes calendar changes to browsers as Server-Sent Events.
//
// Every mutation is sent as event.<kind> carrying a Change. Clients that only
// render a month grid can instead listen for calendar.updated, whose payload
// is the Span of months to refetch. calendar.updated is sent at most once per
// throttle interval; changes arriving inside the interval are merged into a
// single trailing message, so none is lost.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// EventCalendarUpdated names the coalesced month-refresh message.
const EventCalendarUpdated = "calendar.updated"

const (
	keepAliveInterval = 25 * time.Second
	clientBuffer      = 64
)

// Event is a raw message for Publish.
type Event struct {
	Type string
	Data any
}

// Change is one mutation of the event collection. ID is empty for bulk
// changes. The embedded Span lists the month grids it touched.
type Change struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
	Span
}

// Broker fans messages out to connected clients.
type Broker struct {
	throttle time.Duration

	mu          sync.Mutex
	clients     map[chan []byte]struct{}
	closed      bool
	lastRefresh time.Time
	pending     *Span
	flush       *time.Timer
}

// NewBroker returns a broker that sends calendar.updated at most once per
// throttle.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	return &Broker{
		throttle: throttle,
		clients:  make(map[chan []byte]struct{}),
	}
}

// Subscribe registers a client. The channel is closed by Unsubscribe or
// Close; it is returned closed if the broker already is.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Publish sends ev to every client as is.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.sendLocked(ev.Type, ev.Data)
	}
}

// PublishChange sends event.<kind> for c and schedules calendar.updated for
// its span.
func (b *Broker) PublishChange(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.sendLocked("event."+c.Kind, c)

	if b.pending != nil {
		merged := b.pending.Union(c.Span)
		b.pending = &merged
		return
	}
	wait := b.throttle - time.Since(b.lastRefresh)
	if wait <= 0 {
		b.lastRefresh = time.Now()
		b.sendLocked(EventCalendarUpdated, c.Span)
		return
	}
	span := c.Span
	b.pending = &span
	b.flush = time.AfterFunc(wait, b.flushRefresh)
}

func (b *Broker) flushRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.pending == nil {
		return
	}
	b.lastRefresh = time.Now()
	b.sendLocked(EventCalendarUpdated, *b.pending)
	b.pending = nil
	b.flush = nil
}

// Close drops every client and any pending refresh. Later calls to the
// broker are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.flush != nil {
		b.flush.Stop()
	}
	b.pending = nil
	for ch := range b.clients {
		close(ch)
	}
	clear(b.clients)
}

// sendLocked frames one message. Slow clients whose buffer is full miss it.
// Callers hold b.mu.
func (b *Broker) sendLocked(typ string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", typ, payload))
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// ServeHTTP streams messages to one client (GET /api/stream).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
		}
		flusher.Flush()
	}
}
