package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipientMode tells who the gift list is for
type RecipientMode string

const (
	RecipientSelf   RecipientMode = "self"
	RecipientFriend RecipientMode = "friend"
)

// DefaultMinContribution applies when a wishlist has no explicit minimum.
var DefaultMinContribution = decimal.NewFromInt(100)

// Wishlist represents a published gift list
type Wishlist struct {
	ID              int64           `json:"id" db:"id"`
	OwnerID         int64           `json:"owner_id" db:"owner_id"`
	Title           string          `json:"title" db:"title"`
	Slug            string          `json:"slug" db:"slug"`
	IsPublic        bool            `json:"is_public" db:"is_public"`
	MinContribution decimal.Decimal `json:"min_contribution" db:"min_contribution"`
	RecipientMode   RecipientMode   `json:"recipient_mode" db:"recipient_mode"`
	RecipientUserID *int64          `json:"recipient_user_id,omitempty" db:"recipient_user_id"`
	RecipientName   *string         `json:"recipient_name,omitempty" db:"recipient_name"`
	CurrencyCode    string          `json:"currency_code" db:"currency_code"`
	DueAt           *time.Time      `json:"due_at,omitempty" db:"due_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// IsRecipient reports whether userID is the designated friend recipient.
// Recipients may edit the list but never fund it.
func (w *Wishlist) IsRecipient(userID int64) bool {
	return w.RecipientMode == RecipientFriend &&
		w.RecipientUserID != nil &&
		*w.RecipientUserID == userID
}

// CanEdit reports whether userID may manage items of the wishlist
func (w *Wishlist) CanEdit(userID int64) bool {
	return w.OwnerID == userID || w.IsRecipient(userID)
}

// IsPastDue reports whether the wishlist's due date has passed. Lists
// without a due date never expire.
func (w *Wishlist) IsPastDue(now time.Time) bool {
	return w.DueAt != nil && !w.DueAt.After(now)
}

// MinimumContribution returns the configured minimum or the default one
func (w *Wishlist) MinimumContribution() decimal.Decimal {
	if w.MinContribution.IsPositive() {
		return w.MinContribution
	}
	return DefaultMinContribution
}

// Priority ranks items for overflow distribution
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort weight of the priority (high=3, medium=2, low=1).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// IsValid reports whether p is one of the known priorities
func (p Priority) IsValid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ItemStatus is the lifecycle state of a wishlist item
type ItemStatus string

const (
	ItemStatusActive  ItemStatus = "active"
	ItemStatusRemoved ItemStatus = "removed"
)

// WishlistItem represents a gift that can be funded collectively.
// Collected is never stored: it is the sum of the item's contributions.
type WishlistItem struct {
	ID                int64           `json:"id" db:"id"`
	WishlistID        int64           `json:"wishlist_id" db:"wishlist_id"`
	Title             string          `json:"title" db:"title"`
	ProductURL        string          `json:"product_url" db:"product_url"`
	ImageURL          *string         `json:"image_url,omitempty" db:"image_url"`
	TargetPrice       decimal.Decimal `json:"target_price" db:"target_price"`
	Priority          Priority        `json:"priority" db:"priority"`
	Status            ItemStatus      `json:"item_status" db:"item_status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	Collected         decimal.Decimal `json:"-" db:"collected"`
	ContributorsCount int             `json:"-" db:"contributors_count"`
	ResponsibleUserID *int64          `json:"responsible_user_id,omitempty" db:"responsible_user_id"`
	Reservation       *Reservation    `json:"-"`
}

// IsCapped reports whether the item has a funding target
func (i *WishlistItem) IsCapped() bool {
	return i.TargetPrice.IsPositive()
}

// CollectedCapped returns the collected amount, never above the target
// for capped items.
func (i *WishlistItem) CollectedCapped() decimal.Decimal {
	if i.IsCapped() && i.Collected.GreaterThan(i.TargetPrice) {
		return i.TargetPrice
	}
	return i.Collected
}

// IsFullyFunded reports whether a capped item reached its target
func (i *WishlistItem) IsFullyFunded() bool {
	return i.IsCapped() && i.Collected.GreaterThanOrEqual(i.TargetPrice)
}

// IsActive reports whether the item accepts contributions
func (i *WishlistItem) IsActive() bool {
	return i.Status == ItemStatusActive
}
