package messages

import "time"

// DriverReported — отчёт курьера (или симулятора) из топика driver.location.
// Если Status не пустой, это смена статуса, иначе — новая позиция.
type DriverReported struct {
	DeliveryID string    `json:"delivery_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Status     string    `json:"status,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}
