package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/BearBump/DeliveryTrack/internal/broker/messages"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

const relayQueueSize = 1024

// Relay делает хаб общим для нескольких инстансов API: событие отдаётся локальным
// подписчикам сразу, а в Kafka уходит из фоновой горутины. Чужие события из Kafka
// публикуются в локальный хаб; свои (по instanceID) пропускаются.
type Relay struct {
	hub        *Hub
	producer   Producer
	topic      string
	instanceID string

	queue chan messages.TrackingEvent
}

func NewRelay(hub *Hub, producer Producer, topic, instanceID string) *Relay {
	return &Relay{
		hub:        hub,
		producer:   producer,
		topic:      topic,
		instanceID: instanceID,
		queue:      make(chan messages.TrackingEvent, relayQueueSize),
	}
}

func (r *Relay) Hub() *Hub { return r.hub }

// Broadcast never blocks: when the outgoing queue is full the remote copy is dropped,
// local subscribers still get the event.
func (r *Relay) Broadcast(_ context.Context, deliveryID string, kind EventKind, payload any) {
	r.hub.Publish(deliveryID, kind, payload)

	b, err := json.Marshal(payload)
	if err != nil {
		slog.Error("relay marshal payload", "delivery_id", deliveryID, "error", err.Error())
		return
	}
	msg := messages.TrackingEvent{
		Origin:     r.instanceID,
		Kind:       string(kind),
		DeliveryID: deliveryID,
		Payload:    b,
	}
	select {
	case r.queue <- msg:
	default:
		slog.Warn("relay queue full, event not forwarded", "delivery_id", deliveryID, "kind", string(kind))
	}
}

// Run отправляет накопленные события в Kafka, пока не отменён ctx.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-r.queue:
			b, err := json.Marshal(msg)
			if err != nil {
				slog.Error("relay marshal event", "delivery_id", msg.DeliveryID, "error", err.Error())
				continue
			}
			if err := r.producer.Publish(ctx, r.topic, []byte(msg.DeliveryID), b); err != nil {
				slog.Error("relay publish", "delivery_id", msg.DeliveryID, "error", err.Error())
			}
		}
	}
}

// HandleMessage — обработчик для kafka.Consumer.
func (r *Relay) HandleMessage(_, value []byte) error {
	var msg messages.TrackingEvent
	if err := json.Unmarshal(value, &msg); err != nil {
		// битое сообщение не должно останавливать консьюмер
		slog.Warn("relay bad message", "error", err.Error())
		return nil
	}
	if msg.Origin == r.instanceID {
		return nil
	}
	if msg.DeliveryID == "" || msg.Kind == "" {
		slog.Warn("relay message skipped", "error", errors.New("delivery_id and kind are required").Error())
		return nil
	}
	r.hub.Publish(msg.DeliveryID, EventKind(msg.Kind), msg.Payload)
	return nil
}
