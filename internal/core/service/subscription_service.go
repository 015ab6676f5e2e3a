package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/blood-service/internal/core/domain"
	"github.com/rl1809/blood-service/internal/port"
)

type SubscriptionService struct {
	repo  port.SubscriptionRepository
	newID func() string
}

func NewSubscriptionService(repo port.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{repo: repo, newID: uuid.NewString}
}

// Subscribe stores sub as a new subscription. Duplicates are allowed.
func (s *SubscriptionService) Subscribe(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return domain.Subscription{}, err
	}

	sub.ID = s.newID()
	if err := s.repo.InsertSubscription(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}

	return sub, nil
}

func (s *SubscriptionService) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	subs, err := s.repo.ListSubscriptionsByUser(ctx, userID, domain.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}
