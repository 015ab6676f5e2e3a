package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rl1809/blood-service/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func TestUpsert_InsertsNewRecord(t *testing.T) {
	store := newMockStore()
	svc := NewInventoryService(store)

	rec, created, err := svc.Upsert(context.Background(), domain.InventoryRecord{
		BloodType: "O+",
		Location:  "NYC",
		Quantity:  5,
		Extra:     map[string]any{"hospital": "Mount Sinai"},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if !created {
		t.Error("expected insert")
	}
	if rec.ID == "" {
		t.Error("expected generated ID")
	}
	if rec.RegionName != nil {
		t.Errorf("expected no region_name, got %q", *rec.RegionName)
	}
	if rec.Extra["hospital"] != "Mount Sinai" {
		t.Errorf("expected submitted extra field, got %v", rec.Extra)
	}
}

func TestUpsert_UpdatesExistingRecord(t *testing.T) {
	store := newMockStore()
	svc := NewInventoryService(store)
	ctx := context.Background()

	first, _, err := svc.Upsert(ctx, domain.InventoryRecord{
		BloodType: "O+",
		Location:  "NYC",
		Quantity:  5,
		Extra:     map[string]any{"hospital": "Mount Sinai"},
	})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second, created, err := svc.Upsert(ctx, domain.InventoryRecord{
		BloodType:  "O+",
		Location:   "NYC",
		Quantity:   9,
		RegionName: strPtr("East"),
		Extra:      map[string]any{"hospital": "ignored"},
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if created {
		t.Error("expected update, got insert")
	}

	if len(store.inventory) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(store.inventory))
	}
	if second.ID != first.ID {
		t.Errorf("expected ID %s preserved, got %s", first.ID, second.ID)
	}
	if second.Quantity != 9 {
		t.Errorf("expected quantity 9, got %d", second.Quantity)
	}
	if second.RegionName == nil || *second.RegionName != "East" {
		t.Errorf("expected region_name East, got %v", second.RegionName)
	}
	if second.Extra["hospital"] != "Mount Sinai" {
		t.Errorf("expected untouched extra field, got %v", second.Extra["hospital"])
	}
}

func TestUpsert_KeepsRegionWhenAbsent(t *testing.T) {
	store := newMockStore()
	svc := NewInventoryService(store)
	ctx := context.Background()

	svc.Upsert(ctx, domain.InventoryRecord{BloodType: "A-", Location: "LA", Quantity: 1, RegionName: strPtr("West")})
	rec, _, err := svc.Upsert(ctx, domain.InventoryRecord{BloodType: "A-", Location: "LA", Quantity: 2})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if rec.RegionName == nil || *rec.RegionName != "West" {
		t.Errorf("expected region_name West, got %v", rec.RegionName)
	}
}

func TestUpsert_Validation(t *testing.T) {
	svc := NewInventoryService(newMockStore())

	cases := []domain.InventoryRecord{
		{Location: "NYC", Quantity: 1},
		{BloodType: "O+", Quantity: 1},
		{BloodType: "O+", Location: "NYC", Quantity: -1},
	}
	for _, rec := range cases {
		_, _, err := svc.Upsert(context.Background(), rec)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", rec, err)
		}
	}
}

func TestUpsert_ConcurrentSameKey(t *testing.T) {
	store := newMockStore()
	svc := NewInventoryService(store)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			svc.Upsert(context.Background(), domain.InventoryRecord{BloodType: "B-", Location: "SF", Quantity: q})
		}(i)
	}
	wg.Wait()

	if len(store.inventory) != 1 {
		t.Errorf("expected exactly 1 record, got %d", len(store.inventory))
	}
}

func TestListInventory_Limit(t *testing.T) {
	store := newMockStore()
	svc := NewInventoryService(store)

	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if store.lastLimit != domain.ListLimit {
		t.Errorf("expected limit %d, got %d", domain.ListLimit, store.lastLimit)
	}

	store.fail = true
	if _, err := svc.List(context.Background()); !errors.Is(err, errStoreDown) {
		t.Errorf("expected store error, got %v", err)
	}
}
