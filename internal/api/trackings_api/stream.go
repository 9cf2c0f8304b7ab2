package trackings_api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/broadcast"
)

// stream — подписка зрителя на топик доставки через Server-Sent Events.
// Первым уходит снимок записи, дальше события хаба; при обрыве соединения
// подписчик отключается.
func (a *TrackingsAPI) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.New("streaming unsupported"))
		return
	}
	deliveryID := chi.URLParam(r, "deliveryId")
	ctx := r.Context()

	sub := broadcast.NewSubscriber(newSubscriberID(), broadcast.DefaultBuffer)
	a.hub.Subscribe(sub, deliveryID)
	defer a.hub.Disconnect(sub)

	snapshot, err := a.svc.GetTracking(ctx, deliveryID)
	if err != nil {
		writeError(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", snapshot); err != nil {
		return
	}
	flusher.Flush()
	slog.Info("stream subscribed", "delivery_id", deliveryID, "subscriber_id", sub.ID())

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stream closed", "delivery_id", deliveryID, "subscriber_id", sub.ID())
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, string(ev.Kind), ev.Payload); err != nil {
				slog.Warn("stream write", "delivery_id", deliveryID, "error", err.Error())
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, kind string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, b)
	return err
}
