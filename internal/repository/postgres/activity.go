package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/repository"
)

type activityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity notification repository
func NewActivityRepository(db *sql.DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) ListUnread(ctx context.Context, userID int64, limit int) ([]*models.ActivityNotification, error) {
	query := `
		SELECT n.id, n.user_id, n.wishlist_id, COALESCE(w.title, ''), COALESCE(n.source_item_title, ''),
		       n.moved_amount, n.refunded_amount, n.is_read, n.created_at
		FROM user_activity_notifications n
		LEFT JOIN wishlists w ON w.id = n.wishlist_id
		WHERE n.user_id = $1 AND n.is_read = false
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.ActivityNotification
	for rows.Next() {
		n := &models.ActivityNotification{}
		var wishlistID sql.NullInt64
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&wishlistID,
			&n.WishlistTitle,
			&n.SourceItemTitle,
			&n.MovedAmount,
			&n.RefundedAmount,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity notification: %w", err)
		}
		if wishlistID.Valid {
			id := wishlistID.Int64
			n.WishlistID = &id
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (r *activityRepository) MarkRead(ctx context.Context, userID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE user_activity_notifications
		SET is_read = true
		WHERE user_id = $1 AND id = ANY($2)`

	if _, err := r.db.ExecContext(ctx, query, userID, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark activity notifications read: %w", err)
	}

	return nil
}
