package port

import (
	"context"

	"github.com/rl1809/blood-service/internal/core/domain"
)

type SubscriptionRepository interface {
	// InsertSubscription stores a new subscription as-is
	InsertSubscription(ctx context.Context, sub domain.Subscription) error

	// ListSubscriptionsByUser returns a user's subscriptions in insertion order
	ListSubscriptionsByUser(ctx context.Context, userID string, limit int) ([]domain.Subscription, error)
}

type InventoryRepository interface {
	// UpsertInventory atomically updates the record matching rec's natural key,
	// or inserts rec when there is none. created reports which one happened.
	UpsertInventory(ctx context.Context, rec domain.InventoryRecord) (stored domain.InventoryRecord, created bool, err error)

	// ListInventory returns inventory records in insertion order
	ListInventory(ctx context.Context, limit int) ([]domain.InventoryRecord, error)
}

type DemandRepository interface {
	// InsertDemand stores a new demand record
	InsertDemand(ctx context.Context, demand domain.Demand) error

	// ListDemands returns demands, most recently created first
	ListDemands(ctx context.Context, limit int) ([]domain.Demand, error)
}

// RecordStore is a backend holding all three collections.
type RecordStore interface {
	SubscriptionRepository
	InventoryRepository
	DemandRepository
	Close() error
}
