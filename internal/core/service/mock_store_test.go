package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rl1809/blood-service/internal/core/domain"
)

var errStoreDown = errors.New("store down")

// Mock record store
type mockStore struct {
	mu            sync.Mutex
	subscriptions []domain.Subscription
	inventory     []domain.InventoryRecord
	demands       []domain.Demand
	fail          bool
	lastLimit     int
}

func newMockStore() *mockStore {
	return &mockStore{}
}

func (m *mockStore) InsertSubscription(ctx context.Context, sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.subscriptions = append(m.subscriptions, sub)
	return nil
}

func (m *mockStore) ListSubscriptionsByUser(ctx context.Context, userID string, limit int) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	m.lastLimit = limit
	out := []domain.Subscription{}
	for _, s := range m.subscriptions {
		if s.UserID == userID && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) UpsertInventory(ctx context.Context, rec domain.InventoryRecord) (domain.InventoryRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return domain.InventoryRecord{}, false, errStoreDown
	}
	for i, existing := range m.inventory {
		if existing.Key() == rec.Key() {
			m.inventory[i] = existing.ApplyUpdate(rec)
			return m.inventory[i], false, nil
		}
	}
	m.inventory = append(m.inventory, rec)
	return rec, true, nil
}

func (m *mockStore) ListInventory(ctx context.Context, limit int) ([]domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	m.lastLimit = limit
	if len(m.inventory) < limit {
		limit = len(m.inventory)
	}
	return append([]domain.InventoryRecord{}, m.inventory[:limit]...), nil
}

func (m *mockStore) InsertDemand(ctx context.Context, demand domain.Demand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.demands = append(m.demands, demand)
	return nil
}

func (m *mockStore) ListDemands(ctx context.Context, limit int) ([]domain.Demand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	m.lastLimit = limit
	out := append([]domain.Demand{}, m.demands...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Mock publisher
type mockPublisher struct {
	mu        sync.Mutex
	published []domain.Demand
	err       error
}

func (p *mockPublisher) PublishDemandCreated(ctx context.Context, demand domain.Demand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, demand)
	return nil
}
