package messages

import "encoding/json"

// TrackingEvent — событие хаба, пересылаемое между инстансами API (топик tracking.events).
type TrackingEvent struct {
	Origin     string          `json:"origin"`
	Kind       string          `json:"kind"`
	DeliveryID string          `json:"delivery_id"`
	Payload    json.RawMessage `json:"payload"`
}
