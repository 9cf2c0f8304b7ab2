package broadcast

import "sync"

const DefaultBuffer = 64

// Subscriber — одно подключение зрителя. События кладутся в буферизированный канал;
// если зритель не успевает их читать, новые события для него теряются.
type Subscriber struct {
	id string
	ch chan Event

	mu     sync.Mutex
	closed bool
}

func NewSubscriber(id string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Subscriber{id: id, ch: make(chan Event, buffer)}
}

func (s *Subscriber) ID() string { return s.id }

// Events закрывается после Hub.Disconnect.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// offer never blocks; it reports whether the event was queued.
func (s *Subscriber) offer(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
