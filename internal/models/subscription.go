package models

import "time"

type SubscriptionPlan string

const (
	PlanDaily     SubscriptionPlan = "daily"
	PlanAlternate SubscriptionPlan = "alternate"
	PlanWeekly    SubscriptionPlan = "weekly"
	PlanCustom    SubscriptionPlan = "custom"
)

// IntervalDays — через сколько дней следующая доставка. custom и неизвестные планы считаем ежедневными.
func (p SubscriptionPlan) IntervalDays() int {
	switch p {
	case PlanAlternate:
		return 2
	case PlanWeekly:
		return 7
	default:
		return 1
	}
}

type SubscriptionDeliveryStatus string

const (
	SubscriptionPending        SubscriptionDeliveryStatus = "pending"
	SubscriptionPacked         SubscriptionDeliveryStatus = "packed"
	SubscriptionOutForDelivery SubscriptionDeliveryStatus = "out_for_delivery"
	SubscriptionNearby         SubscriptionDeliveryStatus = "nearby"
	SubscriptionDelivered      SubscriptionDeliveryStatus = "delivered"
)

// Subscription — снимок подписки, которой владеет внешний сервис подписок.
// Здесь меняются только поля, связанные с доставкой.
type Subscription struct {
	ID                string                     `json:"id"`
	Plan              SubscriptionPlan           `json:"plan"`
	DeliveryStatus    SubscriptionDeliveryStatus `json:"deliveryStatus"`
	LastDeliveredDate *time.Time                 `json:"lastDeliveredDate,omitempty"`
	NextDelivery      *time.Time                 `json:"nextDelivery,omitempty"`
	DeliveriesInCycle int                        `json:"deliveriesInCycle"`
	UpdatedAt         time.Time                  `json:"updatedAt"`
}

var subscriptionStatusByTracking = map[TrackingStatus]SubscriptionDeliveryStatus{
	StatusAssigned:  SubscriptionPacked,
	StatusPickingUp: SubscriptionPacked,
	StatusEnRoute:   SubscriptionOutForDelivery,
	StatusNearby:    SubscriptionNearby,
	StatusArrived:   SubscriptionNearby,
	StatusDelivered: SubscriptionDelivered,
}

// SubscriptionStatusFor отображает статус трекинга в статус доставки подписки.
func SubscriptionStatusFor(s TrackingStatus) (SubscriptionDeliveryStatus, bool) {
	v, ok := subscriptionStatusByTracking[s]
	return v, ok
}

// StartOfDay обрезает время до начала суток в UTC: расписание подписок дневное.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
