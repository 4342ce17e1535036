package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/ledger"
	"github.com/Kerhoff/wishfund/internal/metrics"
	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/repository"
)

// ContributeRequest is a pledge toward one item
type ContributeRequest struct {
	ItemID int64
	Amount decimal.Decimal
	Actor  models.Contributor
}

// AllocationLine is the share of a pledge recorded on one item
type AllocationLine struct {
	ItemID  int64           `json:"itemId"`
	Title   string          `json:"title"`
	Amount  decimal.Decimal `json:"amount"`
	Primary bool            `json:"primary"`
}

// ContributionResult is the breakdown of a committed pledge
type ContributionResult struct {
	AcceptedAmount      decimal.Decimal     `json:"acceptedAmount"`
	TransferredAmount   decimal.Decimal     `json:"transferredAmount"`
	RefundedAmount      decimal.Decimal     `json:"refundedAmount"`
	CreditUsedAmount    decimal.Decimal     `json:"creditUsedAmount"`
	ChargedAmount       decimal.Decimal     `json:"chargedAmount"`
	DroppedCreditAmount decimal.Decimal     `json:"droppedCreditAmount"`
	Distribution        ledger.Distribution `json:"distribution"`
	Allocations         []AllocationLine    `json:"allocations"`
}

// fundedItem carries what the post-commit notifications need
type fundedItem struct {
	ledger.Transition
	ResponsibleUserID *int64
}

// Contribute records a pledge. The target item takes what it still needs,
// the overflow cascades over sibling items by priority and whatever is
// left is reported as refunded. Registered contributors spend their
// wishlist credits first. All writes happen in one transaction that
// holds the wishlist lock; notifications and broadcasts follow the
// commit and never affect the result.
func (s *Service) Contribute(ctx context.Context, req ContributeRequest) (*ContributionResult, error) {
	result, err := s.contribute(ctx, req)
	if err != nil {
		metrics.PledgeRejections.WithLabelValues(Reason(err)).Inc()
		return nil, err
	}
	return result, nil
}

func (s *Service) contribute(ctx context.Context, req ContributeRequest) (*ContributionResult, error) {
	if req.ItemID <= 0 {
		return nil, validation("invalid item id")
	}
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, validation("amount must be positive")
	}

	actor, err := s.ResolveActor(ctx, req.Actor)
	if err != nil {
		return nil, err
	}

	var (
		plan        ledger.Plan
		credits     ledger.CreditOutcome
		slug        string
		ownerID     int64
		transitions []fundedItem
	)

	err = s.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		item, list, err := tx.LockItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item not found")
		}
		if !item.IsActive() {
			return conflict("item is unavailable")
		}
		if actor.IsRegistered() && list.IsRecipient(actor.UserID) {
			return forbidden("recipient cannot contribute to this wishlist")
		}
		minimum := list.MinimumContribution()
		if req.Amount.LessThan(minimum) {
			return validation("contribution should be at least %s", minimum.StringFixed(money.Places))
		}
		if item.IsFullyFunded() {
			return conflict("gift is already fully funded")
		}

		siblings, err := tx.ListActiveItems(ctx, list.ID)
		if err != nil {
			return err
		}
		responsible := map[int64]*int64{item.ID: item.ResponsibleUserID}
		snapshots := make([]ledger.Snapshot, 0, len(siblings))
		for _, sibling := range siblings {
			if sibling.ID == item.ID {
				continue
			}
			responsible[sibling.ID] = sibling.ResponsibleUserID
			snapshots = append(snapshots, ledger.SnapshotOf(sibling))
		}

		plan = ledger.Allocate(ledger.SnapshotOf(item), snapshots, amount)
		if !plan.Accepted.IsPositive() {
			return conflict("no available items for contribution")
		}

		credits = ledger.CreditOutcome{Used: money.Zero, Charged: plan.Accepted, Dropped: money.Zero}
		if actor.IsRegistered() {
			available, err := tx.AvailableCredits(ctx, actor.UserID, list.ID)
			if err != nil {
				return err
			}
			credits = ledger.ApplyCredits(available, plan.Accepted)
			for _, c := range credits.Changed {
				if err := tx.UpdateCredit(ctx, c); err != nil {
					return err
				}
			}
		}

		for _, a := range plan.Allocations {
			if err := tx.InsertContribution(ctx, &models.Contribution{
				ItemID:      a.ItemID,
				Contributor: actor,
				Amount:      a.Amount,
			}); err != nil {
				return err
			}
		}

		// The snapshots were read under the wishlist lock, so each
		// transition is seen by exactly one pledge.
		for _, t := range ledger.FundingTransitions(plan) {
			transitions = append(transitions, fundedItem{Transition: t, ResponsibleUserID: responsible[t.ItemID]})
		}
		slug = list.Slug
		ownerID = list.OwnerID
		return nil
	})
	if err != nil {
		var rejected *Error
		if errors.As(err, &rejected) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record contribution: %w", err)
	}

	result := &ContributionResult{
		AcceptedAmount:      plan.Accepted,
		TransferredAmount:   plan.Transferred,
		RefundedAmount:      plan.Refunded,
		CreditUsedAmount:    credits.Used,
		ChargedAmount:       credits.Charged,
		DroppedCreditAmount: credits.Dropped,
		Distribution:        plan.Distribution(),
	}
	for _, a := range plan.Allocations {
		result.Allocations = append(result.Allocations, AllocationLine{
			ItemID:  a.ItemID,
			Title:   a.Title,
			Amount:  a.Amount,
			Primary: a.Primary,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":      req.ItemID,
		"amount":       amount.String(),
		"accepted":     plan.Accepted.String(),
		"refunded":     plan.Refunded.String(),
		"distribution": result.Distribution,
	}).Info("Contribution recorded")

	metrics.PledgesTotal.WithLabelValues(string(result.Distribution)).Inc()
	metrics.PledgedAmount.Observe(plan.Accepted.InexactFloat64())
	metrics.AddAmount(metrics.CreditUsedAmount, credits.Used)
	metrics.AddAmount(metrics.CreditDroppedAmount, credits.Dropped)

	for _, a := range plan.Allocations {
		s.broadcast(slug, "contribution.updated", a.ItemID)
	}
	for _, t := range transitions {
		metrics.FundingTransitions.Inc()
		s.notifyFunded(ctx, slug, ownerID, t)
	}

	return result, nil
}

func (s *Service) notifyFunded(ctx context.Context, slug string, ownerID int64, item fundedItem) {
	data := map[string]any{"itemId": item.ItemID}

	s.notify(ctx, notify.Notification{
		UserID: ownerID,
		Type:   notify.TypeItemFundedOwner,
		Title:  "Gift fully funded",
		Body:   fmt.Sprintf("Gift %q is fully funded.", item.Title),
		Link:   wishlistLink(slug),
		Data:   data,
	})

	if item.ResponsibleUserID != nil {
		s.notify(ctx, notify.Notification{
			UserID: *item.ResponsibleUserID,
			Type:   notify.TypeItemFundedResponsible,
			Title:  "Money collected, time to buy the gift",
			Body:   fmt.Sprintf("Gift %q is funded. You can buy it now.", item.Title),
			Link:   wishlistLink(slug),
			Data:   data,
		})
	}
}
