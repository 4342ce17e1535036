package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/ledger"
	"github.com/Kerhoff/wishfund/internal/metrics"
	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/repository"
)

// DefaultRemovalReason is recorded when the editor gives none
const DefaultRemovalReason = "item is no longer available"

// RemovalMode tells whether anything had to be refunded
type RemovalMode string

const (
	RemovalDeleted           RemovalMode = "deleted"
	RemovalDeletedWithRefund RemovalMode = "deleted_with_refund"
)

// RemoveRequest withdraws an item from its wishlist
type RemoveRequest struct {
	ItemID  int64
	ActorID int64
	Reason  string
}

// RefundLine is what one contributor gets back
type RefundLine struct {
	UserID *int64          `json:"userId,omitempty"`
	Alias  string          `json:"alias"`
	Amount decimal.Decimal `json:"amount"`
}

// RemovalResult describes a committed removal
type RemovalResult struct {
	Mode          RemovalMode     `json:"mode"`
	Reason        string          `json:"reason"`
	RefundedTotal decimal.Decimal `json:"refundedTotal"`
	Refunds       []RefundLine    `json:"refunds"`
}

// RemoveItem deletes an item that has not reached its target. Every
// contributor's share is summed and registered contributors get an
// activity entry for it; the item's contributions are deleted with it.
func (s *Service) RemoveItem(ctx context.Context, req RemoveRequest) (*RemovalResult, error) {
	if req.ItemID <= 0 {
		return nil, validation("invalid item id")
	}
	if req.ActorID <= 0 {
		return nil, newError(ErrUnauthorized, "authentication required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = DefaultRemovalReason
	}
	if n := len([]rune(reason)); n < 3 || n > 280 {
		return nil, validation("reason must be between 3 and 280 characters")
	}

	var (
		refunds []ledger.Refund
		item    *models.WishlistItem
		list    *models.Wishlist
	)

	err := s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		item, list, err = tx.LockItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item not found")
		}
		if !list.CanEdit(req.ActorID) {
			return forbidden("only the wishlist owner or editor can remove items")
		}
		if item.IsFullyFunded() {
			return conflict("fully funded gift cannot be deleted")
		}

		contributions, err := tx.ListContributions(ctx, item.ID)
		if err != nil {
			return err
		}
		refunds = ledger.Refunds(contributions)

		wishlistID := list.ID
		for _, r := range refunds {
			// Anonymous contributors have no inbox.
			if !r.Contributor.IsRegistered() {
				continue
			}
			if err := tx.InsertActivity(ctx, &models.ActivityNotification{
				UserID:          r.Contributor.UserID,
				WishlistID:      &wishlistID,
				SourceItemTitle: item.Title,
				MovedAmount:     money.Zero,
				RefundedAmount:  r.Amount,
			}); err != nil {
				return err
			}
		}

		return tx.DeleteItem(ctx, item.ID)
	})
	if err != nil {
		var rejected *Error
		if errors.As(err, &rejected) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to remove item: %w", err)
	}

	result := &RemovalResult{
		Mode:          RemovalDeleted,
		Reason:        reason,
		RefundedTotal: ledger.TotalRefunded(refunds),
		Refunds:       make([]RefundLine, 0, len(refunds)),
	}
	if result.RefundedTotal.IsPositive() {
		result.Mode = RemovalDeletedWithRefund
	}
	for _, r := range refunds {
		result.Refunds = append(result.Refunds, RefundLine{
			UserID: r.Contributor.UserIDPtr(),
			Alias:  r.Contributor.Alias,
			Amount: r.Amount,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":     item.ID,
		"wishlist_id": list.ID,
		"mode":        result.Mode,
		"refunded":    result.RefundedTotal.String(),
	}).Info("Item removed")
	metrics.Removals.WithLabelValues(string(result.Mode)).Inc()

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(roomOf(list.Slug), "item.removed", map[string]any{
			"itemId": item.ID,
			"reason": reason,
		})
	}
	for _, r := range refunds {
		if !r.Contributor.IsRegistered() {
			continue
		}
		s.notify(ctx, notify.Notification{
			UserID: r.Contributor.UserID,
			Type:   notify.TypeItemRefunded,
			Title:  "Contribution refunded",
			Body:   fmt.Sprintf("Gift %q was removed from %q: %s. Your %s was refunded.", item.Title, list.Title, reason, r.Amount.StringFixed(money.Places)),
			Link:   wishlistLink(list.Slug),
			Data:   map[string]any{"itemId": item.ID, "amount": r.Amount},
		})
	}

	return result, nil
}
