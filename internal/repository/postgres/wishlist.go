package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/repository"
)

type wishlistRepository struct {
	db *sql.DB
}

// NewWishlistRepository creates a new wishlist repository
func NewWishlistRepository(db *sql.DB) repository.WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) Create(ctx context.Context, list *models.Wishlist) (*models.Wishlist, error) {
	query := `
		INSERT INTO wishlists (owner_id, title, slug, is_public, min_contribution, recipient_mode,
		                       recipient_user_id, recipient_name, currency_code, due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	list.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		list.OwnerID,
		list.Title,
		list.Slug,
		list.IsPublic,
		list.MinContribution,
		string(list.RecipientMode),
		list.RecipientUserID,
		list.RecipientName,
		list.CurrencyCode,
		list.DueAt,
		list.CreatedAt,
	).Scan(&list.ID, &list.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create wishlist: %w", err)
	}

	return list, nil
}

func (r *wishlistRepository) SetVisibility(ctx context.Context, id int64, isPublic bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE wishlists SET is_public = $2 WHERE id = $1`, id, isPublic)
	if err != nil {
		return fmt.Errorf("failed to update wishlist visibility: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("wishlist with ID %d not found", id)
	}

	return nil
}

func (r *wishlistRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM wishlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("wishlist with ID %d not found", id)
	}

	return nil
}

func (r *wishlistRepository) GetByID(ctx context.Context, id int64) (*models.Wishlist, error) {
	query := `SELECT ` + wishlistColumns + ` FROM wishlists w WHERE w.id = $1`

	list, err := scanWishlist(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wishlist by ID: %w", err)
	}

	return list, nil
}

func (r *wishlistRepository) GetBySlug(ctx context.Context, slug string) (*models.Wishlist, error) {
	query := `SELECT ` + wishlistColumns + ` FROM wishlists w WHERE w.slug = $1`

	list, err := scanWishlist(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wishlist by slug: %w", err)
	}

	return list, nil
}

func (r *wishlistRepository) GetItem(ctx context.Context, itemID int64) (*models.WishlistItem, error) {
	query := itemSelect + ` WHERE wi.id = $1`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wishlist item: %w", err)
	}

	return item, nil
}

func (r *wishlistRepository) ListItems(ctx context.Context, wishlistID int64) ([]*models.WishlistItem, error) {
	return queryItems(ctx, r.db, itemSelect+` WHERE wi.wishlist_id = $1`+waterfallOrder, wishlistID)
}

func (r *wishlistRepository) CreateItem(ctx context.Context, item *models.WishlistItem) (*models.WishlistItem, error) {
	query := `
		INSERT INTO wishlist_items (wishlist_id, title, product_url, image_url, target_price, priority, item_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	item.Status = models.ItemStatusActive
	item.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		item.WishlistID,
		item.Title,
		item.ProductURL,
		item.ImageURL,
		item.TargetPrice,
		string(item.Priority),
		string(item.Status),
		item.CreatedAt,
	).Scan(&item.ID, &item.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create wishlist item: %w", err)
	}

	item.Collected = decimal.Zero
	return item, nil
}

func (r *wishlistRepository) UpdatePriority(ctx context.Context, itemID int64, priority models.Priority) error {
	query := `UPDATE wishlist_items SET priority = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, itemID, string(priority))
	if err != nil {
		return fmt.Errorf("failed to update item priority: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("wishlist item with ID %d not found", itemID)
	}

	return nil
}

func (r *wishlistRepository) SetResponsible(ctx context.Context, itemID, userID int64) error {
	query := `
		INSERT INTO item_responsibles (item_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (item_id) DO UPDATE
		SET user_id = EXCLUDED.user_id`

	if _, err := r.db.ExecContext(ctx, query, itemID, userID); err != nil {
		return fmt.Errorf("failed to set item responsible: %w", err)
	}

	return nil
}

func (r *wishlistRepository) ClearResponsible(ctx context.Context, itemID, userID int64) error {
	query := `DELETE FROM item_responsibles WHERE item_id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, itemID, userID); err != nil {
		return fmt.Errorf("failed to clear item responsible: %w", err)
	}

	return nil
}

func (r *wishlistRepository) CreateReservation(ctx context.Context, res *models.Reservation) error {
	query := `
		INSERT INTO reservations (item_id, reserver_user_id, reserver_alias, status, created_at)
		VALUES ($1, $2, $3, 'reserved', $4)
		RETURNING id`

	res.CreatedAt = time.Now()
	err := r.db.QueryRowContext(ctx, query,
		res.ItemID,
		res.Reserver.UserIDPtr(),
		res.Reserver.Alias,
		res.CreatedAt,
	).Scan(&res.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrAlreadyReserved
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	return nil
}

func (r *wishlistRepository) DeleteReservation(ctx context.Context, reservationID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, reservationID); err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}

	return nil
}

func (r *wishlistRepository) InvestedTotal(ctx context.Context, userID, wishlistID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(c.amount), 0)
		FROM contributions c
		JOIN wishlist_items wi ON wi.id = c.item_id
		WHERE wi.wishlist_id = $1 AND c.contributor_user_id = $2`

	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, wishlistID, userID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum invested amount: %w", err)
	}

	return total, nil
}
