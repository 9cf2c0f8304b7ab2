package memtracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

func TestStorage_Trackings(t *testing.T) {
	ctx := context.Background()
	st := New()

	_, err := st.GetTracking(ctx, "D1")
	require.ErrorIs(t, err, models.ErrNotFound)

	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	rec := models.NewTrackingRecord("D1", now)
	require.NoError(t, st.SaveTracking(ctx, rec))

	// изменение исходной записи без Save не видно хранилищу
	rec.Status = models.StatusDelivered
	got, err := st.GetTracking(ctx, "D1")
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, got.Status)

	got.AppendHistory(models.HistoryPoint{Lat: 1})
	again, _ := st.GetTracking(ctx, "D1")
	require.Empty(t, again.History)
}

func TestStorage_ListActiveTrackings(t *testing.T) {
	ctx := context.Background()
	st := New()
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	for i, s := range []models.TrackingStatus{
		models.StatusAssigned, models.StatusEnRoute, models.StatusPickingUp,
		models.StatusNearby, models.StatusDelivered,
	} {
		rec := models.NewTrackingRecord(string(rune('A'+i)), base)
		rec.Status = s
		rec.LastUpdated = base.Add(-time.Duration(i) * time.Minute)
		require.NoError(t, st.SaveTracking(ctx, rec))
	}

	active, err := st.ListActiveTrackings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, active, 3)
	require.Equal(t, "D", active[0].DeliveryID)
	require.Equal(t, "C", active[1].DeliveryID)
	require.Equal(t, "B", active[2].DeliveryID)

	active, err = st.ListActiveTrackings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, active, 2)
}

func TestStorage_Subscriptions(t *testing.T) {
	ctx := context.Background()
	st := New()

	_, err := st.GetSubscription(ctx, "S1")
	require.ErrorIs(t, err, models.ErrSubscriptionNotFound)

	next := time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)
	n := next
	sub := &models.Subscription{ID: "S1", Plan: models.PlanWeekly, NextDelivery: &n}
	require.NoError(t, st.SaveSubscription(ctx, sub))

	// хранилище держит копию: правка исходной подписки его не трогает
	*sub.NextDelivery = next.AddDate(0, 0, 1)
	got, err := st.GetSubscription(ctx, "S1")
	require.NoError(t, err)
	require.True(t, next.Equal(*got.NextDelivery))
	require.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), *sub.NextDelivery)
}
