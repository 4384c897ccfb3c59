package dispatch

import (
	"context"
	"log/slog"

	"github.com/qz-yi/Satha-Choice-sub000/internal/city"
	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/observability"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
)

// Broadcaster fans newly persisted pending requests out to every connected
// driver whose service city matches. Delivery is best-effort to drivers
// connected at broadcast time; late connectors reconcile through
// PendingForCity.
type Broadcaster struct {
	registry *SessionRegistry
	drivers  storage.DriverDirectory
	store    storage.RequestStore
	logger   *slog.Logger
}

func NewBroadcaster(registry *SessionRegistry, drivers storage.DriverDirectory, store storage.RequestStore, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, drivers: drivers, store: store, logger: logger}
}

// OnRequestCreated fires after the store has durably persisted req. No
// acknowledgment is collected from recipients.
func (b *Broadcaster) OnRequestCreated(ctx context.Context, req *models.Request) {
	if req.Status != models.StatusPending {
		return
	}
	sent := 0
	for _, s := range b.registry.Drivers() {
		d, err := b.drivers.Get(ctx, s.DriverID)
		if err != nil {
			continue
		}
		if d.Status != models.DriverApproved || !d.Online {
			continue
		}
		if !city.Match(d.City, req.City) {
			continue
		}
		if s.EnqueueEvent(EventNewRequestAvailable, req) {
			observability.DispatchBroadcasts.Inc()
			sent++
		}
	}
	b.logger.Info("request broadcast", "order_id", req.ID, "city", req.City, "drivers_notified", sent)
}

// PendingForCity is the synchronous reconciliation query for drivers that
// connect after a broadcast already happened.
func (b *Broadcaster) PendingForCity(ctx context.Context, cityName string) ([]*models.Request, error) {
	return b.store.ListPendingByCity(ctx, cityName)
}
