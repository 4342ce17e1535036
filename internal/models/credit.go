package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditStatus is the state of a contribution credit
type CreditStatus string

const (
	CreditAvailable CreditStatus = "available"
	CreditUsed      CreditStatus = "used"
	CreditDropped   CreditStatus = "dropped"
)

// ContributionCredit is a balance a user may spend on one wishlist.
// A credit that is not available always holds a zero amount.
type ContributionCredit struct {
	ID           int64           `json:"id" db:"id"`
	UserID       int64           `json:"user_id" db:"user_id"`
	WishlistID   int64           `json:"wishlist_id" db:"wishlist_id"`
	SourceItemID *int64          `json:"source_item_id,omitempty" db:"source_item_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Status       CreditStatus    `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}
