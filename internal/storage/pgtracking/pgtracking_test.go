package pgtracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "deliverytrack_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/deliverytrack_test?sslmode=disable"
	var st *Storage
	// порт уже слушается, но postgres может ещё перезапускаться после initdb
	require.Eventually(t, func() bool {
		st, err = New(ctx, dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(st.Close)
	return st
}

func TestPGTracking_RepoFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	require.NoError(t, st.Ping(ctx))

	_, err := st.GetTracking(ctx, "D1")
	require.ErrorIs(t, err, models.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := models.NewTrackingRecord("D1", now)
	require.NoError(t, st.SaveTracking(ctx, rec))

	got, err := st.GetTracking(ctx, "D1")
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, got.Status)
	require.Nil(t, got.CurrentLocation)
	require.Nil(t, got.Driver)
	require.Empty(t, got.History)
	require.True(t, now.Equal(got.CreatedAt))

	eta := now.Add(10 * time.Minute)
	rec.Status = models.StatusEnRoute
	rec.DeliveryKind = models.DeliveryKindSubscription
	rec.SubscriptionID = "S1"
	rec.Driver = &models.Driver{ID: "drv", Name: "Ivan"}
	rec.CurrentLocation = &models.Location{Lat: 55.75, Lng: 37.61, Heading: 90, Speed: 8}
	rec.Origin = &models.Place{Lat: 55.75, Lng: 37.61}
	rec.Destination = &models.Place{Lat: 55.76, Lng: 37.62, Address: "Tverskaya 1"}
	rec.Route = models.Route{Points: []models.LatLng{{Lat: 55.75, Lng: 37.61}, {Lat: 55.76, Lng: 37.62}}, Distance: 1300, Duration: 160, ETA: &eta}
	rec.AppendHistory(models.HistoryPoint{Lat: 55.75, Lng: 37.61, Timestamp: now})
	rec.LastUpdated = now.Add(time.Second)
	require.NoError(t, st.SaveTracking(ctx, rec))

	got, err = st.GetTracking(ctx, "D1")
	require.NoError(t, err)
	require.Equal(t, models.StatusEnRoute, got.Status)
	require.Equal(t, "S1", got.SubscriptionID)
	require.Equal(t, "Ivan", got.Driver.Name)
	require.Equal(t, "Tverskaya 1", got.Destination.Address)
	require.Len(t, got.Route.Points, 2)
	require.True(t, eta.Equal(*got.Route.ETA))
	require.Len(t, got.History, 1)
	require.True(t, now.Equal(got.CreatedAt))

	other := models.NewTrackingRecord("D2", now)
	require.NoError(t, st.SaveTracking(ctx, other))

	active, err := st.ListActiveTrackings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "D1", active[0].DeliveryID)
}

func TestPGTracking_Subscriptions(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	_, err := st.GetSubscription(ctx, "S1")
	require.ErrorIs(t, err, models.ErrSubscriptionNotFound)

	next := time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscription{
		ID:             "S1",
		Plan:           models.PlanWeekly,
		DeliveryStatus: models.SubscriptionPending,
		NextDelivery:   &next,
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, st.SaveSubscription(ctx, sub))

	sub.DeliveryStatus = models.SubscriptionPacked
	sub.DeliveriesInCycle = 2
	require.NoError(t, st.SaveSubscription(ctx, sub))

	got, err := st.GetSubscription(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, models.PlanWeekly, got.Plan)
	require.Equal(t, models.SubscriptionPacked, got.DeliveryStatus)
	require.Equal(t, 2, got.DeliveriesInCycle)
	require.Nil(t, got.LastDeliveredDate)
	require.True(t, next.Equal(*got.NextDelivery))
}
