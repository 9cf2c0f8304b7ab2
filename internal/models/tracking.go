package models

import "time"

// HistoryLimit — сколько последних точек маршрута храним на одну доставку.
const HistoryLimit = 100

type DeliveryKind string

const (
	DeliveryKindOrder        DeliveryKind = "order"
	DeliveryKindSubscription DeliveryKind = "subscription"
)

type Driver struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Phone  string  `json:"phone,omitempty"`
	Rating float64 `json:"rating,omitempty"`
}

type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Heading  float64 `json:"heading"`
	Speed    float64 `json:"speed"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

type Place struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Route struct {
	Polyline string     `json:"polyline,omitempty"`
	Points   []LatLng   `json:"points"`
	Distance float64    `json:"distance"`
	Duration float64    `json:"duration"`
	ETA      *time.Time `json:"eta,omitempty"`
}

type HistoryPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type TrackingRecord struct {
	DeliveryID      string         `json:"deliveryId"`
	DeliveryKind    DeliveryKind   `json:"deliveryKind"`
	SubscriptionID  string         `json:"subscriptionId,omitempty"`
	Driver          *Driver        `json:"driver,omitempty"`
	Status          TrackingStatus `json:"status"`
	CurrentLocation *Location      `json:"currentLocation,omitempty"`
	Route           Route          `json:"route"`
	Origin          *Place         `json:"origin,omitempty"`
	Destination     *Place         `json:"destination,omitempty"`
	History         []HistoryPoint `json:"history"`
	LastUpdated     time.Time      `json:"lastUpdated"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// NewTrackingRecord — запись по умолчанию: статус assigned, пустые маршрут и история.
func NewTrackingRecord(deliveryID string, now time.Time) *TrackingRecord {
	return &TrackingRecord{
		DeliveryID:   deliveryID,
		DeliveryKind: DeliveryKindOrder,
		Status:       StatusAssigned,
		Route:        Route{Points: []LatLng{}},
		History:      []HistoryPoint{},
		LastUpdated:  now,
		CreatedAt:    now,
	}
}

// AppendHistory добавляет точку и выкидывает самые старые, если длина превысила HistoryLimit.
func (t *TrackingRecord) AppendHistory(p HistoryPoint) {
	t.History = append(t.History, p)
	if over := len(t.History) - HistoryLimit; over > 0 {
		kept := make([]HistoryPoint, HistoryLimit)
		copy(kept, t.History[over:])
		t.History = kept
	}
}

// SubscriptionRef возвращает id подписки, к которой привязана доставка, или "" для обычных заказов.
func (t *TrackingRecord) SubscriptionRef() string {
	if t.DeliveryKind != DeliveryKindSubscription {
		return ""
	}
	if t.SubscriptionID != "" {
		return t.SubscriptionID
	}
	return t.DeliveryID
}

// Clone — глубокая копия, чтобы отдавать наружу снимок, не разделяя слайсы с хранилищем.
func (t *TrackingRecord) Clone() *TrackingRecord {
	if t == nil {
		return nil
	}
	c := *t
	if t.Driver != nil {
		d := *t.Driver
		c.Driver = &d
	}
	if t.CurrentLocation != nil {
		l := *t.CurrentLocation
		c.CurrentLocation = &l
	}
	if t.Origin != nil {
		o := *t.Origin
		c.Origin = &o
	}
	if t.Destination != nil {
		d := *t.Destination
		c.Destination = &d
	}
	if t.Route.ETA != nil {
		eta := *t.Route.ETA
		c.Route.ETA = &eta
	}
	c.Route.Points = append([]LatLng{}, t.Route.Points...)
	c.History = append([]HistoryPoint{}, t.History...)
	return &c
}
