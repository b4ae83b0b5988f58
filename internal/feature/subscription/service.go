// Package subscription implements the subscribe/unsubscribe flows on top of
// the subscription repository.
package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kveex/Aktt-Telegram-Bot/internal/domain"
	"github.com/kveex/Aktt-Telegram-Bot/internal/logging"
)

// repository is the subset of the subscription repository the service needs.
type repository interface {
	ListForChat(ctx context.Context, chatID int64) ([]domain.Subscription, int64, error)
	Create(ctx context.Context, chatID int64, scope domain.Scope) (bool, error)
	Remove(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Service wraps subscription persistence with logging and the pick-by-number
// unsubscribe flow.
type Service struct {
	repo   repository
	logger *logrus.Entry
}

// NewService constructs a subscription Service.
func NewService(repo repository, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Service{repo: repo, logger: logger}
}

// Overview returns the chat's subscriptions in id order plus the exact count.
func (s *Service) Overview(ctx context.Context, chatID int64) ([]domain.Subscription, int64, error) {
	return s.repo.ListForChat(ctx, chatID)
}

// Subscribe creates a subscription. Business-rule violations
// (domain.ErrSubscriptionLimit, domain.ErrAlreadySubscribed) pass through for
// the handler to show the user; the bool mirrors the store acknowledgement.
func (s *Service) Subscribe(ctx context.Context, chatID int64, scope domain.Scope) (bool, error) {
	created, err := s.repo.Create(ctx, chatID, scope)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionLimit) || errors.Is(err, domain.ErrAlreadySubscribed) {
			s.logger.WithFields(logging.Fields{
				"event":   "subscription_rejected",
				"chat_id": chatID,
			}).Info("subscription rejected by business rule")
		}
		return false, err
	}

	if created {
		s.logger.WithFields(logging.Fields{
			"event":   "subscription_created",
			"chat_id": chatID,
			"scope":   scope.Name,
		}).Info("created subscription")
	}

	return created, nil
}

// UnsubscribeByNumber removes the chat's n-th subscription (1-based, in the
// id order shown to the user) and reports whether a record was removed.
func (s *Service) UnsubscribeByNumber(ctx context.Context, chatID int64, number int) (bool, error) {
	subs, _, err := s.repo.ListForChat(ctx, chatID)
	if err != nil {
		return false, err
	}

	if number < 1 || number > len(subs) {
		return false, fmt.Errorf("подписки с номером %d нет", number)
	}

	removed, err := s.repo.Remove(ctx, subs[number-1].ID)
	if err != nil {
		return false, err
	}

	if removed {
		s.logger.WithFields(logging.Fields{
			"event":   "subscription_removed",
			"chat_id": chatID,
		}).Info("removed subscription")
	}

	return removed, nil
}
