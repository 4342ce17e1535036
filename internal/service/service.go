package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/metrics"
	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/realtime"
	"github.com/Kerhoff/wishfund/internal/repository"
)

const maxAliasLength = 80

// Broadcaster pushes refresh hints to clients in a room
type Broadcaster interface {
	Broadcast(room, eventType string, data map[string]any)
}

// Service is the business logic layer of the funding ledger. It owns the
// transaction boundaries and fires notifications and broadcasts once a
// transaction has committed.
type Service struct {
	logger      *logrus.Logger
	notifier    notify.Dispatcher
	broadcaster Broadcaster
	now         func() time.Time

	Users     repository.UserRepository
	Wishlists repository.WishlistRepository
	Activity  repository.ActivityRepository
	Ledger    repository.LedgerRepository
}

// New creates a new Service with all required dependencies. notifier and
// broadcaster may be nil.
func New(logger *logrus.Logger,
	users repository.UserRepository,
	wishlists repository.WishlistRepository,
	activity repository.ActivityRepository,
	ledgerRepo repository.LedgerRepository,
	notifier notify.Dispatcher,
	broadcaster Broadcaster,
) *Service {
	return &Service{
		logger:      logger,
		notifier:    notifier,
		broadcaster: broadcaster,
		now:         time.Now,
		Users:       users,
		Wishlists:   wishlists,
		Activity:    activity,
		Ledger:      ledgerRepo,
	}
}

// ResolveActor completes a contributor before it is recorded. Aliases are
// trimmed and limited in length. Registered users must exist and fall back
// to their display name when no alias was supplied.
func (s *Service) ResolveActor(ctx context.Context, actor models.Contributor) (models.Contributor, error) {
	alias := strings.TrimSpace(actor.Alias)
	if len([]rune(alias)) > maxAliasLength {
		return actor, validation("alias must be at most %d characters", maxAliasLength)
	}
	if !actor.IsRegistered() {
		return models.Anonymous(alias), nil
	}

	user, err := s.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return actor, fmt.Errorf("failed to lookup user %d: %w", actor.UserID, err)
	}
	if user == nil {
		return actor, newError(ErrUnauthorized, "unknown user")
	}
	if alias == "" {
		alias = user.Alias()
	}
	return models.Registered(user.ID, alias), nil
}

// broadcast is fire-and-forget
func (s *Service) broadcast(slug, eventType string, itemID int64) {
	s.broadcastData(slug, eventType, map[string]any{"itemId": itemID})
}

func (s *Service) broadcastData(slug, eventType string, data map[string]any) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(roomOf(slug), eventType, data)
}

func roomOf(slug string) string {
	return realtime.WishlistRoom(slug)
}

// notify delivers n and only logs failures; the ledger outcome is already
// committed.
func (s *Service) notify(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		metrics.NotificationFailures.WithLabelValues("service").Inc()
		s.logger.WithFields(logrus.Fields{
			"user_id": n.UserID,
			"type":    n.Type,
		}).WithError(err).Warn("Failed to dispatch notification")
	}
}

func wishlistLink(slug string) string {
	return "/wishlist/" + slug
}
