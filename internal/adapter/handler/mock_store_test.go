package handler

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/blood-service/internal/adapter/storage"
	"github.com/rl1809/blood-service/internal/core/domain"
	"github.com/rl1809/blood-service/internal/core/service"
	"github.com/rl1809/blood-service/internal/observability"
	"github.com/rl1809/blood-service/internal/port"
)

var errStoreDown = errors.New("connection refused")

// Mock store that fails every call
type failingStore struct{}

func (failingStore) InsertSubscription(context.Context, domain.Subscription) error {
	return errStoreDown
}

func (failingStore) ListSubscriptionsByUser(context.Context, string, int) ([]domain.Subscription, error) {
	return nil, errStoreDown
}

func (failingStore) UpsertInventory(context.Context, domain.InventoryRecord) (domain.InventoryRecord, bool, error) {
	return domain.InventoryRecord{}, false, errStoreDown
}

func (failingStore) ListInventory(context.Context, int) ([]domain.InventoryRecord, error) {
	return nil, errStoreDown
}

func (failingStore) InsertDemand(context.Context, domain.Demand) error {
	return errStoreDown
}

func (failingStore) ListDemands(context.Context, int) ([]domain.Demand, error) {
	return nil, errStoreDown
}

func (failingStore) Close() error { return nil }

type services struct {
	subscriptions *service.SubscriptionService
	inventory     *service.InventoryService
	demands       *service.DemandService
	metrics       *observability.Metrics
}

func newServices(store port.RecordStore) services {
	return services{
		subscriptions: service.NewSubscriptionService(store),
		inventory:     service.NewInventoryService(store),
		demands:       service.NewDemandService(store, nil),
		metrics:       observability.NewMetrics(prometheus.NewRegistry()),
	}
}

func newMemoryServices() (services, *storage.MemoryAdapter) {
	store := storage.NewMemoryAdapter()
	return newServices(store), store
}
