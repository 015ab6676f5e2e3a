package port

import (
	"context"

	"github.com/rl1809/blood-service/internal/core/domain"
)

type DemandPublisher interface {
	// PublishDemandCreated announces a newly stored demand to downstream notifiers
	PublishDemandCreated(ctx context.Context, demand domain.Demand) error
}
