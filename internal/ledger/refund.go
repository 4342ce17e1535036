package ledger

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
)

// Refund is what one contributor gets back when an item is withdrawn
type Refund struct {
	Contributor models.Contributor
	Amount      decimal.Decimal
}

func refundKey(c models.Contributor) string {
	if c.IsRegistered() {
		return "u:" + strconv.FormatInt(c.UserID, 10)
	}
	return "a:" + strings.ToLower(c.Alias)
}

// Refunds groups an item's contributions per contributor and sums them.
// Registered users are grouped by id, anonymous ones by case-insensitive
// alias. The order follows each contributor's first contribution.
func Refunds(contributions []models.Contribution) []Refund {
	index := make(map[string]int)
	var out []Refund
	for _, c := range contributions {
		if !c.Amount.IsPositive() {
			continue
		}
		key := refundKey(c.Contributor)
		if i, ok := index[key]; ok {
			out[i].Amount = money.Add(out[i].Amount, c.Amount)
			continue
		}
		index[key] = len(out)
		out = append(out, Refund{Contributor: c.Contributor, Amount: money.Round(c.Amount)})
	}
	return out
}

// TotalRefunded sums all refunds
func TotalRefunded(refunds []Refund) decimal.Decimal {
	total := money.Zero
	for _, r := range refunds {
		total = money.Add(total, r.Amount)
	}
	return total
}
