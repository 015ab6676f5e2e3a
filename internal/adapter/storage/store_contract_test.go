package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/blood-service/internal/core/domain"
	"github.com/rl1809/blood-service/internal/port"
)

// runStoreContract exercises the behaviour every record store backend must
// share. newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) port.RecordStore) {
	t.Run("SubscriptionsByUser", func(t *testing.T) { testSubscriptionsByUser(t, newStore(t)) })
	t.Run("SubscriptionsLimit", func(t *testing.T) { testSubscriptionsLimit(t, newStore(t)) })
	t.Run("UpsertInsertsThenUpdates", func(t *testing.T) { testUpsertInsertsThenUpdates(t, newStore(t)) })
	t.Run("UpsertKeepsRegionWhenAbsent", func(t *testing.T) { testUpsertKeepsRegion(t, newStore(t)) })
	t.Run("UpsertConcurrentSameKey", func(t *testing.T) { testUpsertConcurrent(t, newStore(t)) })
	t.Run("UpsertKeyIsExact", func(t *testing.T) { testUpsertKeyIsExact(t, newStore(t)) })
	t.Run("SubscriptionsUserIsExact", func(t *testing.T) { testSubscriptionsUserIsExact(t, newStore(t)) })
	t.Run("InventoryLimit", func(t *testing.T) { testInventoryLimit(t, newStore(t)) })
	t.Run("DemandsNewestFirst", func(t *testing.T) { testDemandsNewestFirst(t, newStore(t)) })
}

func testSubscriptionsByUser(t *testing.T, store port.RecordStore) {
	ctx := context.Background()

	subs := []domain.Subscription{
		{ID: uuid.NewString(), UserID: "alice", BloodType: "A+", Location: "NYC", Extra: map[string]any{"phone": "555"}},
		{ID: uuid.NewString(), UserID: "bob", BloodType: "B+", Location: "LA"},
		{ID: uuid.NewString(), UserID: "alice", BloodType: "A+", Location: "NYC"},
	}
	for _, sub := range subs {
		if err := store.InsertSubscription(ctx, sub); err != nil {
			t.Fatalf("InsertSubscription failed: %v", err)
		}
	}

	got, err := store.ListSubscriptionsByUser(ctx, "alice", domain.ListLimit)
	if err != nil {
		t.Fatalf("ListSubscriptionsByUser failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(got))
	}
	if got[0].ID != subs[0].ID || got[1].ID != subs[2].ID {
		t.Errorf("expected insertion order, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Extra["phone"] != "555" {
		t.Errorf("expected extra field preserved, got %v", got[0].Extra)
	}

	none, err := store.ListSubscriptionsByUser(ctx, "nobody", domain.ListLimit)
	if err != nil {
		t.Fatalf("ListSubscriptionsByUser failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", none)
	}
}

func testSubscriptionsLimit(t *testing.T, store port.RecordStore) {
	ctx := context.Background()
	for i := 0; i < domain.ListLimit+5; i++ {
		sub := domain.Subscription{ID: uuid.NewString(), UserID: "carol", BloodType: "O+", Location: fmt.Sprintf("loc-%d", i)}
		if err := store.InsertSubscription(ctx, sub); err != nil {
			t.Fatalf("InsertSubscription failed: %v", err)
		}
	}

	got, err := store.ListSubscriptionsByUser(ctx, "carol", domain.ListLimit)
	if err != nil {
		t.Fatalf("ListSubscriptionsByUser failed: %v", err)
	}
	if len(got) != domain.ListLimit {
		t.Errorf("expected %d subscriptions, got %d", domain.ListLimit, len(got))
	}
}

func testUpsertInsertsThenUpdates(t *testing.T, store port.RecordStore) {
	ctx := context.Background()

	first, created, err := store.UpsertInventory(ctx, domain.InventoryRecord{
		ID:        uuid.NewString(),
		BloodType: "O+",
		Location:  "NYC",
		Quantity:  5,
		Extra:     map[string]any{"hospital": "Bellevue"},
	})
	if err != nil {
		t.Fatalf("first UpsertInventory failed: %v", err)
	}
	if !created {
		t.Error("expected first upsert to insert")
	}
	if first.Quantity != 5 || first.RegionName != nil {
		t.Errorf("unexpected inserted record: %+v", first)
	}

	east := "East"
	second, created, err := store.UpsertInventory(ctx, domain.InventoryRecord{
		ID:         uuid.NewString(),
		BloodType:  "O+",
		Location:   "NYC",
		Quantity:   9,
		RegionName: &east,
	})
	if err != nil {
		t.Fatalf("second UpsertInventory failed: %v", err)
	}
	if created {
		t.Error("expected second upsert to update")
	}

	records, err := store.ListInventory(ctx, domain.ListLimit)
	if err != nil {
		t.Fatalf("ListInventory failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.ID != first.ID || second.ID != first.ID {
		t.Errorf("expected ID %s preserved, got %s / %s", first.ID, rec.ID, second.ID)
	}
	if rec.BloodType != "O+" || rec.Location != "NYC" || rec.Quantity != 9 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.RegionName == nil || *rec.RegionName != "East" {
		t.Errorf("expected region_name East, got %v", rec.RegionName)
	}
	if rec.Extra["hospital"] != "Bellevue" {
		t.Errorf("expected extra field preserved, got %v", rec.Extra)
	}
}

func testUpsertKeepsRegion(t *testing.T, store port.RecordStore) {
	ctx := context.Background()
	west := "West"

	store.UpsertInventory(ctx, domain.InventoryRecord{ID: uuid.NewString(), BloodType: "A-", Location: "LA", Quantity: 1, RegionName: &west})
	rec, _, err := store.UpsertInventory(ctx, domain.InventoryRecord{ID: uuid.NewString(), BloodType: "A-", Location: "LA", Quantity: 4})
	if err != nil {
		t.Fatalf("UpsertInventory failed: %v", err)
	}
	if rec.Quantity != 4 {
		t.Errorf("expected quantity 4, got %d", rec.Quantity)
	}
	if rec.RegionName == nil || *rec.RegionName != "West" {
		t.Errorf("expected region_name West, got %v", rec.RegionName)
	}
}

func testUpsertConcurrent(t *testing.T, store port.RecordStore) {
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			_, _, err := store.UpsertInventory(ctx, domain.InventoryRecord{
				ID:        uuid.NewString(),
				BloodType: "B-",
				Location:  "SF",
				Quantity:  q,
			})
			if err != nil {
				t.Errorf("UpsertInventory failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	records, err := store.ListInventory(ctx, domain.ListLimit)
	if err != nil {
		t.Fatalf("ListInventory failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected exactly 1 record after concurrent upserts, got %d", len(records))
	}
}

func testUpsertKeyIsExact(t *testing.T, store port.RecordStore) {
	ctx := context.Background()

	locations := []string{"NYC", "nyc", "NYC ", "NÝC"}
	for i, loc := range locations {
		_, created, err := store.UpsertInventory(ctx, domain.InventoryRecord{
			ID: uuid.NewString(), BloodType: "O+", Location: loc, Quantity: i + 1,
		})
		if err != nil {
			t.Fatalf("UpsertInventory(%q) failed: %v", loc, err)
		}
		if !created {
			t.Errorf("UpsertInventory(%q): expected a new record", loc)
		}
	}

	records, err := store.ListInventory(ctx, domain.ListLimit)
	if err != nil {
		t.Fatalf("ListInventory failed: %v", err)
	}
	if len(records) != len(locations) {
		t.Fatalf("expected %d records, got %d", len(locations), len(records))
	}
	for i, rec := range records {
		if rec.Location != locations[i] || rec.Quantity != i+1 {
			t.Errorf("record %d: expected (%q, %d), got (%q, %d)", i, locations[i], i+1, rec.Location, rec.Quantity)
		}
	}
}

func testSubscriptionsUserIsExact(t *testing.T, store port.RecordStore) {
	ctx := context.Background()

	for _, user := range []string{"alice", "Alice"} {
		sub := domain.Subscription{ID: uuid.NewString(), UserID: user, BloodType: "A+", Location: "NYC"}
		if err := store.InsertSubscription(ctx, sub); err != nil {
			t.Fatalf("InsertSubscription failed: %v", err)
		}
	}

	for _, user := range []string{"alice", "Alice"} {
		got, err := store.ListSubscriptionsByUser(ctx, user, domain.ListLimit)
		if err != nil {
			t.Fatalf("ListSubscriptionsByUser failed: %v", err)
		}
		if len(got) != 1 || got[0].UserID != user {
			t.Errorf("user %q: expected only its own subscription, got %+v", user, got)
		}
	}
}

func testInventoryLimit(t *testing.T, store port.RecordStore) {
	ctx := context.Background()
	for i := 0; i < domain.ListLimit+5; i++ {
		_, _, err := store.UpsertInventory(ctx, domain.InventoryRecord{
			ID:        uuid.NewString(),
			BloodType: "AB+",
			Location:  fmt.Sprintf("loc-%d", i),
			Quantity:  i,
		})
		if err != nil {
			t.Fatalf("UpsertInventory failed: %v", err)
		}
	}

	records, err := store.ListInventory(ctx, domain.ListLimit)
	if err != nil {
		t.Fatalf("ListInventory failed: %v", err)
	}
	if len(records) != domain.ListLimit {
		t.Errorf("expected %d records, got %d", domain.ListLimit, len(records))
	}
	if records[0].Location != "loc-0" {
		t.Errorf("expected storage order, first is %s", records[0].Location)
	}
}

func testDemandsNewestFirst(t *testing.T, store port.RecordStore) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// inserted out of order on purpose
	offsets := []int{3, 1, 4, 0, 2}
	for _, off := range offsets {
		err := store.InsertDemand(ctx, domain.Demand{
			ID:         uuid.NewString(),
			BloodType:  "O-",
			RegionName: fmt.Sprintf("region-%d", off),
			CreatedAt:  base.Add(time.Duration(off) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertDemand failed: %v", err)
		}
	}

	demands, err := store.ListDemands(ctx, 3)
	if err != nil {
		t.Fatalf("ListDemands failed: %v", err)
	}
	if len(demands) != 3 {
		t.Fatalf("expected 3 demands, got %d", len(demands))
	}
	for i, want := range []string{"region-4", "region-3", "region-2"} {
		if demands[i].RegionName != want {
			t.Errorf("position %d: expected %s, got %s", i, want, demands[i].RegionName)
		}
	}
	if !demands[0].CreatedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("unexpected created_at %v", demands[0].CreatedAt)
	}
}
