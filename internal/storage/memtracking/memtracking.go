package memtracking

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

// Storage — хранилище в памяти процесса: для тестов и запуска без Postgres.
// Наружу отдаются только копии, чтобы вызывающий не мог менять данные мимо Save.
type Storage struct {
	mu            sync.RWMutex
	trackings     map[string]*models.TrackingRecord
	subscriptions map[string]*models.Subscription
}

func New() *Storage {
	return &Storage{
		trackings:     make(map[string]*models.TrackingRecord),
		subscriptions: make(map[string]*models.Subscription),
	}
}

func (s *Storage) GetTracking(_ context.Context, deliveryID string) (*models.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trackings[deliveryID]
	if !ok {
		return nil, errors.Wrap(models.ErrNotFound, deliveryID)
	}
	return t.Clone(), nil
}

func (s *Storage) SaveTracking(_ context.Context, t *models.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackings[t.DeliveryID] = t.Clone()
	return nil
}

func (s *Storage) ListActiveTrackings(_ context.Context, limit int) ([]*models.TrackingRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	out := make([]*models.TrackingRecord, 0)
	for _, t := range s.trackings {
		if t.Status.IsActive() {
			out = append(out, t.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].DeliveryID < out[j].DeliveryID
		}
		return out[i].LastUpdated.Before(out[j].LastUpdated)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Storage) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, errors.Wrap(models.ErrSubscriptionNotFound, id)
	}
	return copySubscription(sub), nil
}

func (s *Storage) SaveSubscription(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = copySubscription(sub)
	return nil
}

func copySubscription(sub *models.Subscription) *models.Subscription {
	c := *sub
	if sub.LastDeliveredDate != nil {
		d := *sub.LastDeliveredDate
		c.LastDeliveredDate = &d
	}
	if sub.NextDelivery != nil {
		d := *sub.NextDelivery
		c.NextDelivery = &d
	}
	return &c
}
