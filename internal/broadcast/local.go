package broadcast

import "context"

// Broadcast публикует только в локальный хаб (один инстанс, без Kafka).
func (h *Hub) Broadcast(_ context.Context, deliveryID string, kind EventKind, payload any) {
	h.Publish(deliveryID, kind, payload)
}
