package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/repository"
)

// ReservationMode tells what a reserve or unreserve call changed
type ReservationMode string

const (
	ReservationCreated         ReservationMode = "reserved"
	ReservationAlreadyHeld     ReservationMode = "already_reserved"
	ReservationReleased        ReservationMode = "unreserved"
	ReservationAlreadyReleased ReservationMode = "already_unreserved"
)

// Reserve claims an item for actor. Calling it again as the same
// reserver is a no-op.
func (s *Service) Reserve(ctx context.Context, itemID int64, actor models.Contributor) (ReservationMode, error) {
	actor, err := s.ResolveActor(ctx, actor)
	if err != nil {
		return "", err
	}
	item, list, err := s.itemWithWishlist(ctx, itemID)
	if err != nil {
		return "", err
	}
	if !item.IsActive() {
		return "", conflict("item is unavailable")
	}

	if held := item.Reservation; held != nil {
		if held.HeldBy(actor) {
			return ReservationAlreadyHeld, nil
		}
		return "", conflict("gift is already reserved")
	}

	res := &models.Reservation{ItemID: item.ID, Reserver: actor}
	if err := s.Wishlists.CreateReservation(ctx, res); err != nil {
		if errors.Is(err, repository.ErrAlreadyReserved) {
			return "", conflict("gift is already reserved")
		}
		return "", err
	}

	s.logger.WithField("item_id", item.ID).WithField("reservation_id", res.ID).Info("Item reserved")
	s.broadcast(list.Slug, "reservation.updated", item.ID)

	if !actor.IsRegistered() || actor.UserID != list.OwnerID {
		s.notify(ctx, notify.Notification{
			UserID: list.OwnerID,
			Type:   notify.TypeItemReserved,
			Title:  "Gift reserved",
			Body:   fmt.Sprintf("Someone reserved %q", item.Title),
			Link:   wishlistLink(list.Slug),
			Data:   map[string]any{"itemId": item.ID},
		})
	}

	return ReservationCreated, nil
}

// Unreserve cancels actor's reservation of an item. Anonymous reservers
// must repeat the alias they reserved with; the guest fallback does not
// count.
func (s *Service) Unreserve(ctx context.Context, itemID int64, actor models.Contributor) (ReservationMode, error) {
	actor, err := s.ResolveActor(ctx, actor)
	if err != nil {
		return "", err
	}
	item, list, err := s.itemWithWishlist(ctx, itemID)
	if err != nil {
		return "", err
	}

	held := item.Reservation
	if held == nil {
		return ReservationAlreadyReleased, nil
	}
	if !actor.IsRegistered() && strings.EqualFold(actor.Alias, models.GuestAlias) {
		return "", forbidden("only the current reserver can cancel the reservation")
	}
	if !held.HeldBy(actor) {
		return "", forbidden("only the current reserver can cancel the reservation")
	}

	if err := s.Wishlists.DeleteReservation(ctx, held.ID); err != nil {
		return "", err
	}

	s.logger.WithField("item_id", item.ID).WithField("reservation_id", held.ID).Info("Reservation cancelled")
	s.broadcast(list.Slug, "reservation.updated", item.ID)
	return ReservationReleased, nil
}
