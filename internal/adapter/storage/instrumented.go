package storage

import (
	"context"
	"time"

	"github.com/rl1809/blood-service/internal/core/domain"
	"github.com/rl1809/blood-service/internal/observability"
	"github.com/rl1809/blood-service/internal/port"
)

// InstrumentedStore records an operation counter and latency histogram for
// every call to the wrapped store.
type InstrumentedStore struct {
	next    port.RecordStore
	metrics *observability.Metrics
}

func NewInstrumentedStore(next port.RecordStore, metrics *observability.Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: metrics}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.StoreOps.WithLabelValues(op, outcome).Inc()
	s.metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) InsertSubscription(ctx context.Context, sub domain.Subscription) (err error) {
	defer func(start time.Time) { s.observe("insert_subscription", start, err) }(time.Now())
	return s.next.InsertSubscription(ctx, sub)
}

func (s *InstrumentedStore) ListSubscriptionsByUser(ctx context.Context, userID string, limit int) (_ []domain.Subscription, err error) {
	defer func(start time.Time) { s.observe("list_subscriptions", start, err) }(time.Now())
	return s.next.ListSubscriptionsByUser(ctx, userID, limit)
}

func (s *InstrumentedStore) UpsertInventory(ctx context.Context, rec domain.InventoryRecord) (_ domain.InventoryRecord, _ bool, err error) {
	defer func(start time.Time) { s.observe("upsert_inventory", start, err) }(time.Now())
	return s.next.UpsertInventory(ctx, rec)
}

func (s *InstrumentedStore) ListInventory(ctx context.Context, limit int) (_ []domain.InventoryRecord, err error) {
	defer func(start time.Time) { s.observe("list_inventory", start, err) }(time.Now())
	return s.next.ListInventory(ctx, limit)
}

func (s *InstrumentedStore) InsertDemand(ctx context.Context, demand domain.Demand) (err error) {
	defer func(start time.Time) { s.observe("insert_demand", start, err) }(time.Now())
	return s.next.InsertDemand(ctx, demand)
}

func (s *InstrumentedStore) ListDemands(ctx context.Context, limit int) (_ []domain.Demand, err error) {
	defer func(start time.Time) { s.observe("list_demands", start, err) }(time.Now())
	return s.next.ListDemands(ctx, limit)
}

func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
