package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
)

// ErrAlreadyReserved is returned when an item already has a live
// reservation
var ErrAlreadyReserved = errors.New("item is already reserved")

// UserRepository defines the interface for user lookups
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	// GetByUsername matches usernames ignoring case.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// WishlistRepository defines the interface for wishlists and the item
// edits that do not move money
type WishlistRepository interface {
	Create(ctx context.Context, list *models.Wishlist) (*models.Wishlist, error)
	GetByID(ctx context.Context, id int64) (*models.Wishlist, error)
	GetBySlug(ctx context.Context, slug string) (*models.Wishlist, error)
	SetVisibility(ctx context.Context, id int64, isPublic bool) error
	// Delete removes the wishlist with its items and their contributions.
	Delete(ctx context.Context, id int64) error
	// GetItem returns the item with its collected amount and live
	// reservation, if any.
	GetItem(ctx context.Context, itemID int64) (*models.WishlistItem, error)
	// ListItems returns the wishlist's items with derived collected amounts,
	// ordered by priority rank descending, then id descending.
	ListItems(ctx context.Context, wishlistID int64) ([]*models.WishlistItem, error)
	CreateItem(ctx context.Context, item *models.WishlistItem) (*models.WishlistItem, error)
	UpdatePriority(ctx context.Context, itemID int64, priority models.Priority) error
	SetResponsible(ctx context.Context, itemID, userID int64) error
	ClearResponsible(ctx context.Context, itemID, userID int64) error
	// CreateReservation returns ErrAlreadyReserved when the item is
	// already reserved.
	CreateReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, reservationID int64) error
	// InvestedTotal sums the user's remaining contributions in a wishlist.
	InvestedTotal(ctx context.Context, userID, wishlistID int64) (decimal.Decimal, error)
}

// ActivityRepository defines the interface for a user's refund inbox
type ActivityRepository interface {
	ListUnread(ctx context.Context, userID int64, limit int) ([]*models.ActivityNotification, error)
	MarkRead(ctx context.Context, userID int64, ids []int64) error
}

// LedgerRepository runs funding operations atomically
type LedgerRepository interface {
	// WithinTx runs fn in a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of reads and writes available inside a ledger
// transaction
type LedgerTx interface {
	// LockItem locks the item's wishlist for the rest of the transaction
	// and returns both with the item's collected amount. It returns nil
	// values when the item does not exist.
	LockItem(ctx context.Context, itemID int64) (*models.WishlistItem, *models.Wishlist, error)
	// ListActiveItems returns the wishlist's active items with collected
	// amounts.
	ListActiveItems(ctx context.Context, wishlistID int64) ([]*models.WishlistItem, error)
	InsertContribution(ctx context.Context, c *models.Contribution) error
	ListContributions(ctx context.Context, itemID int64) ([]models.Contribution, error)
	// AvailableCredits returns available, non-empty credits oldest first.
	AvailableCredits(ctx context.Context, userID, wishlistID int64) ([]models.ContributionCredit, error)
	UpdateCredit(ctx context.Context, credit models.ContributionCredit) error
	InsertActivity(ctx context.Context, n *models.ActivityNotification) error
	// DeleteItem removes the item; its contributions go with it.
	DeleteItem(ctx context.Context, itemID int64) error
}
