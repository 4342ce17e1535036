package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityNotification tells a contributor that money they pledged was
// moved or refunded. Rows are written once and only flip IsRead.
type ActivityNotification struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	WishlistID      *int64          `json:"wishlist_id,omitempty" db:"wishlist_id"`
	WishlistTitle   string          `json:"wishlist_title,omitempty" db:"wishlist_title"`
	SourceItemTitle string          `json:"source_item_title" db:"source_item_title"`
	MovedAmount     decimal.Decimal `json:"moved_amount" db:"moved_amount"`
	RefundedAmount  decimal.Decimal `json:"refunded_amount" db:"refunded_amount"`
	IsRead          bool            `json:"is_read" db:"is_read"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}
