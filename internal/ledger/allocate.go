// Package ledger implements the funding rules of a wishlist: how a pledge
// is spread across items, how credits are consumed, which items cross
// their funding target and what is refunded when an item is withdrawn.
//
// Everything here is pure. Callers load the item snapshots inside a
// locked transaction, run the rules and persist the outcome.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
)

// Distribution summarizes where the pledge went
type Distribution string

const (
	DistributionNone             Distribution = "none"
	DistributionRefundOnly       Distribution = "refund_only"
	DistributionPriorityTransfer Distribution = "priority_transfer"
)

// Snapshot is the pre-allocation state of one item
type Snapshot struct {
	ItemID    int64
	Title     string
	Target    decimal.Decimal
	Collected decimal.Decimal
	Priority  models.Priority
}

// SnapshotOf captures the allocation-relevant state of an item
func SnapshotOf(item *models.WishlistItem) Snapshot {
	return Snapshot{
		ItemID:    item.ID,
		Title:     item.Title,
		Target:    item.TargetPrice,
		Collected: item.Collected,
		Priority:  item.Priority,
	}
}

// Need returns the amount still missing for a capped item
func (s Snapshot) Need() decimal.Decimal {
	if !s.Target.IsPositive() {
		return money.Zero
	}
	return money.NonNegative(money.Sub(s.Target, s.Collected))
}

// IsFunded reports whether the snapshot already meets its target
func (s Snapshot) IsFunded() bool {
	return s.Target.IsPositive() && s.Collected.GreaterThanOrEqual(s.Target)
}

// Allocation is the share of a pledge assigned to one item
type Allocation struct {
	Snapshot
	Amount  decimal.Decimal
	Primary bool
}

// CollectedAfter is the item's collected amount once the allocation lands
func (a Allocation) CollectedAfter() decimal.Decimal {
	return money.Add(a.Collected, a.Amount)
}

// Plan is the result of spreading one pledge over a wishlist
type Plan struct {
	Pledged     decimal.Decimal
	Allocations []Allocation
	Accepted    decimal.Decimal
	Transferred decimal.Decimal
	Refunded    decimal.Decimal
}

// Distribution classifies the plan for the caller
func (p Plan) Distribution() Distribution {
	switch {
	case p.Transferred.IsPositive():
		return DistributionPriorityTransfer
	case p.Refunded.IsPositive():
		return DistributionRefundOnly
	default:
		return DistributionNone
	}
}

// SortWaterfall orders overflow candidates: priority rank descending, then
// newest item (highest id) first.
func SortWaterfall(items []Snapshot) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Priority.Rank(), items[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].ItemID > items[j].ItemID
	})
}

// Allocate spreads amount over the target item and, when it overflows,
// over the siblings in waterfall order. Uncapped targets absorb the whole
// pledge; uncapped siblings never receive overflow. Whatever cannot be
// placed is reported as refunded.
//
// siblings must not contain the target; they are re-sorted in place.
func Allocate(target Snapshot, siblings []Snapshot, amount decimal.Decimal) Plan {
	remaining := money.Round(amount)
	plan := Plan{Pledged: remaining}

	need := remaining
	if target.Target.IsPositive() {
		need = target.Need()
	}
	if primary := money.Min(remaining, need); primary.IsPositive() {
		plan.Allocations = append(plan.Allocations, Allocation{Snapshot: target, Amount: primary, Primary: true})
		remaining = money.Sub(remaining, primary)
	}

	if remaining.IsPositive() {
		SortWaterfall(siblings)
		for _, sibling := range siblings {
			if !remaining.IsPositive() {
				break
			}
			if sibling.ItemID == target.ItemID || !sibling.Target.IsPositive() {
				continue
			}
			siblingNeed := sibling.Need()
			if !siblingNeed.IsPositive() {
				continue
			}
			moved := money.Min(remaining, siblingNeed)
			plan.Allocations = append(plan.Allocations, Allocation{Snapshot: sibling, Amount: moved})
			plan.Transferred = money.Add(plan.Transferred, moved)
			remaining = money.Sub(remaining, moved)
		}
	}

	for _, a := range plan.Allocations {
		plan.Accepted = money.Add(plan.Accepted, a.Amount)
	}
	plan.Refunded = money.NonNegative(remaining)
	return plan
}
