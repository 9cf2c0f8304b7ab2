package broadcast

import (
	"log/slog"
	"sync"
)

type counter interface {
	Add(float64)
}

// Hub раздаёт события подписчикам топика; топик = deliveryId.
// Топик появляется при первой подписке и удаляется, когда уходит последний подписчик.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	// subID -> deliveryIDs, чтобы Disconnect знал, откуда выписывать
	memberships map[string]map[string]struct{}

	delivered counter
	dropped   counter
}

type topic struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

func NewHub() *Hub {
	return &Hub{
		topics:      make(map[string]*topic),
		memberships: make(map[string]map[string]struct{}),
	}
}

// WithCounters подключает счётчики доставленных и потерянных событий (prometheus).
func (h *Hub) WithCounters(delivered, dropped counter) *Hub {
	h.delivered = delivered
	h.dropped = dropped
	return h
}

// Subscribe is idempotent: a subscriber joins a topic at most once.
func (h *Hub) Subscribe(sub *Subscriber, deliveryID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[deliveryID]
	if !ok {
		t = &topic{subs: make(map[string]*Subscriber)}
		h.topics[deliveryID] = t
	}
	t.mu.Lock()
	t.subs[sub.ID()] = sub
	t.mu.Unlock()

	m, ok := h.memberships[sub.ID()]
	if !ok {
		m = make(map[string]struct{})
		h.memberships[sub.ID()] = m
	}
	m[deliveryID] = struct{}{}
}

func (h *Hub) Unsubscribe(subID, deliveryID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(subID, deliveryID)
}

// Disconnect выписывает подписчика из всех топиков и закрывает его канал.
func (h *Hub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	for deliveryID := range h.memberships[sub.ID()] {
		h.leaveLocked(sub.ID(), deliveryID)
	}
	h.mu.Unlock()
	sub.close()
}

func (h *Hub) leaveLocked(subID, deliveryID string) {
	if m, ok := h.memberships[subID]; ok {
		delete(m, deliveryID)
		if len(m) == 0 {
			delete(h.memberships, subID)
		}
	}
	t, ok := h.topics[deliveryID]
	if !ok {
		return
	}
	t.mu.Lock()
	delete(t.subs, subID)
	empty := len(t.subs) == 0
	t.mu.Unlock()
	if empty {
		delete(h.topics, deliveryID)
	}
}

// Publish delivers the event to every current subscriber of the topic and returns how
// many of them accepted it. It never blocks on a slow subscriber.
func (h *Hub) Publish(deliveryID string, kind EventKind, payload any) int {
	h.mu.RLock()
	t, ok := h.topics[deliveryID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	t.mu.RLock()
	subs := make([]*Subscriber, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.RUnlock()

	ev := Event{Kind: kind, DeliveryID: deliveryID, Payload: payload}
	delivered := 0
	for _, s := range subs {
		if s.offer(ev) {
			delivered++
			continue
		}
		slog.Debug("broadcast dropped", "delivery_id", deliveryID, "subscriber", s.ID(), "kind", string(kind))
	}
	if h.delivered != nil {
		h.delivered.Add(float64(delivered))
	}
	if h.dropped != nil {
		h.dropped.Add(float64(len(subs) - delivered))
	}
	return delivered
}

func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

func (h *Hub) SubscriberCount(deliveryID string) int {
	h.mu.RLock()
	t, ok := h.topics[deliveryID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}
