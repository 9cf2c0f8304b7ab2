package models

import "github.com/pkg/errors"

type TrackingStatus string

const (
	StatusAssigned  TrackingStatus = "assigned"
	StatusPickingUp TrackingStatus = "picking_up"
	StatusEnRoute   TrackingStatus = "en_route"
	StatusNearby    TrackingStatus = "nearby"
	StatusArrived   TrackingStatus = "arrived"
	StatusDelivered TrackingStatus = "delivered"
)

var allowedStatuses = [...]TrackingStatus{
	StatusAssigned, StatusPickingUp, StatusEnRoute, StatusNearby, StatusArrived, StatusDelivered,
}

func (s TrackingStatus) Valid() bool {
	for _, v := range allowedStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s TrackingStatus) IsTerminal() bool {
	return s == StatusDelivered
}

// IsActive — курьер едет (или едет забирать): такие доставки гоняет симулятор.
func (s TrackingStatus) IsActive() bool {
	switch s {
	case StatusPickingUp, StatusEnRoute, StatusNearby:
		return true
	}
	return false
}

// Rank задаёт порядок жизненного цикла; переходы не проверяются, порядок нужен
// только для автоматического продвижения по порогам близости.
func (s TrackingStatus) Rank() int {
	for i, v := range allowedStatuses {
		if s == v {
			return i
		}
	}
	return -1
}

func ParseTrackingStatus(raw string) (TrackingStatus, error) {
	s := TrackingStatus(raw)
	if !s.Valid() {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", raw)
	}
	return s, nil
}
