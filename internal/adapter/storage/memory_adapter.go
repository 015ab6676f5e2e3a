package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/blood-service/internal/core/domain"
)

// MemoryAdapter keeps all three collections in process memory. Every
// operation holds the adapter mutex, so the inventory upsert is atomic.
type MemoryAdapter struct {
	mu sync.Mutex

	subscriptions []domain.Subscription
	inventory     []domain.InventoryRecord
	inventoryKeys map[domain.InventoryKey]int
	demands       []domain.Demand
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		inventoryKeys: map[domain.InventoryKey]int{},
	}
}

func (m *MemoryAdapter) InsertSubscription(ctx context.Context, sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, sub)
	return nil
}

func (m *MemoryAdapter) ListSubscriptionsByUser(ctx context.Context, userID string, limit int) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Subscription{}
	for _, sub := range m.subscriptions {
		if len(out) == limit {
			break
		}
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *MemoryAdapter) UpsertInventory(ctx context.Context, rec domain.InventoryRecord) (domain.InventoryRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.inventoryKeys[rec.Key()]; ok {
		m.inventory[idx] = m.inventory[idx].ApplyUpdate(rec)
		return m.inventory[idx], false, nil
	}

	m.inventoryKeys[rec.Key()] = len(m.inventory)
	m.inventory = append(m.inventory, rec)
	return rec, true, nil
}

func (m *MemoryAdapter) ListInventory(ctx context.Context, limit int) ([]domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(limit, len(m.inventory))
	return append([]domain.InventoryRecord{}, m.inventory[:n]...), nil
}

func (m *MemoryAdapter) InsertDemand(ctx context.Context, demand domain.Demand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.demands = append(m.demands, demand)
	return nil
}

func (m *MemoryAdapter) ListDemands(ctx context.Context, limit int) ([]domain.Demand, error) {
	m.mu.Lock()
	out := make([]domain.Demand, len(m.demands))
	for i, d := range m.demands {
		// reversed so equal timestamps list the later insert first
		out[len(out)-1-i] = d
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryAdapter) Close() error {
	return nil
}
