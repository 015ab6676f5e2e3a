package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/blood-service/internal/core/domain"
	"github.com/rl1809/blood-service/internal/observability"
	"github.com/rl1809/blood-service/internal/port"
)

type DemandService struct {
	repo      port.DemandRepository
	publisher port.DemandPublisher
	newID     func() string
	now       func() time.Time
}

// NewDemandService creates the service. publisher may be nil, in which case
// no DemandCreated events are emitted.
func NewDemandService(repo port.DemandRepository, publisher port.DemandPublisher) *DemandService {
	return &DemandService{
		repo:      repo,
		publisher: publisher,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Create stamps created_at with the current UTC time and stores the demand.
// A failed event publish is logged; the stored demand is still returned.
func (s *DemandService) Create(ctx context.Context, demand domain.Demand) (domain.Demand, error) {
	if err := demand.Validate(); err != nil {
		return domain.Demand{}, err
	}

	demand.ID = s.newID()
	demand.CreatedAt = s.now().UTC()

	if err := s.repo.InsertDemand(ctx, demand); err != nil {
		return domain.Demand{}, fmt.Errorf("insert demand: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishDemandCreated(ctx, demand); err != nil {
			observability.FromContext(ctx).Warn("demand_publish_failed",
				zap.String("demand_id", demand.ID),
				zap.Error(err),
			)
		}
	}

	return demand, nil
}

// List returns demands, newest first.
func (s *DemandService) List(ctx context.Context) ([]domain.Demand, error) {
	demands, err := s.repo.ListDemands(ctx, domain.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list demands: %w", err)
	}
	return demands, nil
}
