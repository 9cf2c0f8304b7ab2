package trackings

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/DeliveryTrack/internal/broadcast"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentEvent struct {
	deliveryID string
	kind       broadcast.EventKind
	payload    any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, deliveryID string, kind broadcast.EventKind, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{deliveryID: deliveryID, kind: kind, payload: payload})
}

func (b *recordingBroadcaster) kinds() []broadcast.EventKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcast.EventKind, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.kind)
	}
	return out
}

func (b *recordingBroadcaster) last() sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}
