package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
)

// CreditOutcome is the effect of applying credits to an accepted amount
type CreditOutcome struct {
	Used    decimal.Decimal
	Charged decimal.Decimal
	Dropped decimal.Decimal
	// Changed holds every credit whose amount or status changed, in the
	// state to persist.
	Changed []models.ContributionCredit
}

// ApplyCredits spends available credits oldest first against accepted.
// Once any credit is spent, every credit balance still available for the
// wishlist is dropped, including the rest of a partially spent credit.
// Balances only ever go down.
func ApplyCredits(credits []models.ContributionCredit, accepted decimal.Decimal) CreditOutcome {
	out := CreditOutcome{Used: money.Zero, Charged: money.Round(accepted), Dropped: money.Zero}
	if !accepted.IsPositive() {
		return out
	}

	pool := make([]models.ContributionCredit, 0, len(credits))
	for _, c := range credits {
		if c.Status == models.CreditAvailable && c.Amount.IsPositive() {
			pool = append(pool, c)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })

	toCover := money.Round(accepted)
	touched := make(map[int64]bool)
	for i := range pool {
		if !toCover.IsPositive() {
			break
		}
		use := money.Min(pool[i].Amount, toCover)
		pool[i].Amount = money.Sub(pool[i].Amount, use)
		if !pool[i].Amount.IsPositive() {
			pool[i].Amount = money.Zero
			pool[i].Status = models.CreditUsed
		}
		toCover = money.Sub(toCover, use)
		out.Used = money.Add(out.Used, use)
		touched[pool[i].ID] = true
	}
	out.Charged = money.NonNegative(money.Sub(accepted, out.Used))

	if out.Used.IsPositive() {
		for i := range pool {
			if pool[i].Status != models.CreditAvailable || !pool[i].Amount.IsPositive() {
				continue
			}
			out.Dropped = money.Add(out.Dropped, pool[i].Amount)
			pool[i].Amount = money.Zero
			pool[i].Status = models.CreditDropped
			touched[pool[i].ID] = true
		}
	}

	for _, c := range pool {
		if touched[c.ID] {
			out.Changed = append(out.Changed, c)
		}
	}
	return out
}
