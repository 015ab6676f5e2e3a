package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/blood-service/internal/core/domain"
	"github.com/rl1809/blood-service/internal/observability"
	"github.com/rl1809/blood-service/internal/port"
)

type InventoryService struct {
	repo  port.InventoryRepository
	newID func() string
}

func NewInventoryService(repo port.InventoryRepository) *InventoryService {
	return &InventoryService{repo: repo, newID: uuid.NewString}
}

// Upsert updates quantity and region_name of the record matching rec's
// (blood_type, location), or inserts rec when no such record exists.
// The lookup and the write happen as one atomic store operation.
func (s *InventoryService) Upsert(ctx context.Context, rec domain.InventoryRecord) (domain.InventoryRecord, bool, error) {
	if err := rec.Validate(); err != nil {
		return domain.InventoryRecord{}, false, err
	}

	rec.ID = s.newID()
	stored, created, err := s.repo.UpsertInventory(ctx, rec)
	if err != nil {
		return domain.InventoryRecord{}, false, fmt.Errorf("upsert inventory: %w", err)
	}

	observability.FromContext(ctx).Debug("inventory_upserted",
		zap.String("record_id", stored.ID),
		zap.String("blood_type", stored.BloodType),
		zap.String("location", stored.Location),
		zap.Int("quantity", stored.Quantity),
		zap.Bool("created", created),
	)

	return stored, created, nil
}

func (s *InventoryService) List(ctx context.Context) ([]domain.InventoryRecord, error) {
	records, err := s.repo.ListInventory(ctx, domain.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return records, nil
}
