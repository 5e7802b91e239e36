package liveevents

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	TypeRateChanged      = "rate_changed"
	TypeVariationChanged = "variation_changed"
	TypePolicyChanged    = "making_charge_changed"
	// TypeResync means events may have been missed; caches should drop everything.
	TypeResync = "resync"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

type Event struct {
	Type           string    `json:"type"`
	RateID         string    `json:"rate_id,omitempty"`
	PreviousRateID string    `json:"previous_rate_id,omitempty"`
	Rate22K        string    `json:"rate_22k,omitempty"`
	Rate24K        string    `json:"rate_24k,omitempty"`
	ProductID      string    `json:"product_id,omitempty"`
	Category       string    `json:"category,omitempty"`
	Source         string    `json:"source,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
	Origin         string    `json:"origin,omitempty"`
}

// Publisher fans an event out after the change that caused it committed.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Handler runs synchronously inside Publish. Handlers must not block.
type Handler func(Event)

// Hub is the in-process event fan-out. Handlers never miss an event;
// channel subscribers drop events when their buffer is full.
type Hub struct {
	mu               sync.RWMutex
	handlers         []Handler
	buffer           []Event
	subs             map[uint64]chan Event
	nextID           uint64
	bufferSize       int
	subscriberBuffer int
}

type Subscription struct {
	hub  *Hub
	id   uint64
	ch   chan Event
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:             make(map[uint64]chan Event),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

func (h *Hub) Handle(fn Handler) {
	if h == nil || fn == nil {
		return
	}
	h.mu.Lock()
	h.handlers = append(h.handlers, fn)
	h.mu.Unlock()
}

func (h *Hub) Publish(_ context.Context, event Event) {
	if h == nil || event.Type == "" {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	h.mu.Lock()
	h.buffer = append(h.buffer, event)
	if len(h.buffer) > h.bufferSize {
		h.buffer = h.buffer[len(h.buffer)-h.bufferSize:]
	}
	handlers := append([]Handler(nil), h.handlers...)
	subs := make([]chan Event, 0, len(h.subs))
	for _, ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(event)
	}
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a live subscription plus the recent backlog.
func (h *Hub) Subscribe() (*Subscription, []Event, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	h.subs[id] = ch
	backlog := append([]Event(nil), h.buffer...)
	return &Subscription{hub: h, id: id, ch: ch}, backlog, nil
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.id)
	})
}
