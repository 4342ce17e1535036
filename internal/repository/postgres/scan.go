package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/wishfund/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// uniqueViolation is the SQLSTATE postgres reports for a duplicate key
const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

const wishlistColumns = `
	w.id, w.owner_id, w.title, w.slug, w.is_public, w.min_contribution,
	w.recipient_mode, w.recipient_user_id, w.recipient_name, w.currency_code, w.due_at, w.created_at`

// itemSelect reads items together with their derived collected amount.
// Collected always comes from the contributions table.
const itemSelect = `
	SELECT wi.id, wi.wishlist_id, wi.title, wi.product_url, wi.image_url,
	       wi.target_price, wi.priority, wi.item_status, wi.created_at,
	       COALESCE((SELECT SUM(c.amount) FROM contributions c WHERE c.item_id = wi.id), 0) AS collected,
	       (SELECT COUNT(1) FROM contributions c WHERE c.item_id = wi.id) AS contributors_count,
	       ir.user_id AS responsible_user_id,
	       rv.id, rv.reserver_user_id, rv.reserver_alias, rv.created_at
	FROM wishlist_items wi
	LEFT JOIN item_responsibles ir ON ir.item_id = wi.id
	LEFT JOIN reservations rv ON rv.item_id = wi.id AND rv.status = 'reserved'`

const waterfallOrder = `
	ORDER BY
	  CASE wi.priority
	    WHEN 'high' THEN 3
	    WHEN 'medium' THEN 2
	    ELSE 1
	  END DESC,
	  wi.id DESC`

func scanWishlist(row rowScanner) (*models.Wishlist, error) {
	w := &models.Wishlist{}
	var (
		recipientUserID sql.NullInt64
		recipientName   sql.NullString
		dueAt           sql.NullTime
		mode            string
	)
	if err := row.Scan(
		&w.ID,
		&w.OwnerID,
		&w.Title,
		&w.Slug,
		&w.IsPublic,
		&w.MinContribution,
		&mode,
		&recipientUserID,
		&recipientName,
		&w.CurrencyCode,
		&dueAt,
		&w.CreatedAt,
	); err != nil {
		return nil, err
	}
	w.RecipientMode = models.RecipientMode(mode)
	if recipientUserID.Valid {
		id := recipientUserID.Int64
		w.RecipientUserID = &id
	}
	if recipientName.Valid {
		name := recipientName.String
		w.RecipientName = &name
	}
	if dueAt.Valid {
		due := dueAt.Time
		w.DueAt = &due
	}
	return w, nil
}

func scanItem(row rowScanner) (*models.WishlistItem, error) {
	item := &models.WishlistItem{}
	var (
		imageURL    sql.NullString
		responsible sql.NullInt64
		priority    string
		status      string

		reservationID sql.NullInt64
		reserverID    sql.NullInt64
		reserverAlias sql.NullString
		reservedAt    sql.NullTime
	)
	if err := row.Scan(
		&item.ID,
		&item.WishlistID,
		&item.Title,
		&item.ProductURL,
		&imageURL,
		&item.TargetPrice,
		&priority,
		&status,
		&item.CreatedAt,
		&item.Collected,
		&item.ContributorsCount,
		&responsible,
		&reservationID,
		&reserverID,
		&reserverAlias,
		&reservedAt,
	); err != nil {
		return nil, err
	}
	item.Priority = models.Priority(priority)
	item.Status = models.ItemStatus(status)
	if imageURL.Valid {
		u := imageURL.String
		item.ImageURL = &u
	}
	if responsible.Valid {
		id := responsible.Int64
		item.ResponsibleUserID = &id
	}
	if reservationID.Valid {
		var uid *int64
		if reserverID.Valid {
			uid = &reserverID.Int64
		}
		item.Reservation = &models.Reservation{
			ID:        reservationID.Int64,
			ItemID:    item.ID,
			Reserver:  models.ContributorFromRow(uid, reserverAlias.String),
			CreatedAt: reservedAt.Time,
		}
	}
	return item, nil
}

func queryItems(ctx context.Context, q querier, query string, args ...any) ([]*models.WishlistItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist items: %w", err)
	}
	defer rows.Close()

	var items []*models.WishlistItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
