package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/repository"
)

type ledgerRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewLedgerRepository creates the transactional funding ledger store
func NewLedgerRepository(db *sql.DB, logger *logrus.Logger) repository.LedgerRepository {
	return &ledgerRepository{db: db, logger: logger}
}

func (r *ledgerRepository) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.WithError(rbErr).Error("failed to roll back ledger transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}

	return nil
}

type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) LockItem(ctx context.Context, itemID int64) (*models.WishlistItem, *models.Wishlist, error) {
	var wishlistID int64
	err := t.tx.QueryRowContext(ctx, `SELECT wishlist_id FROM wishlist_items WHERE id = $1`, itemID).Scan(&wishlistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to find item wishlist: %w", err)
	}

	// Every pledge and removal in a wishlist queues on this row lock, so
	// the collected amounts read below cannot change until commit.
	lockQuery := `SELECT ` + wishlistColumns + ` FROM wishlists w WHERE w.id = $1 FOR UPDATE`
	list, err := scanWishlist(t.tx.QueryRowContext(ctx, lockQuery, wishlistID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to lock wishlist: %w", err)
	}

	item, err := scanItem(t.tx.QueryRowContext(ctx, itemSelect+` WHERE wi.id = $1`, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read locked item: %w", err)
	}

	return item, list, nil
}

func (t *ledgerTx) ListActiveItems(ctx context.Context, wishlistID int64) ([]*models.WishlistItem, error) {
	query := itemSelect + ` WHERE wi.wishlist_id = $1 AND wi.item_status = 'active'` + waterfallOrder
	return queryItems(ctx, t.tx, query, wishlistID)
}

func (t *ledgerTx) InsertContribution(ctx context.Context, c *models.Contribution) error {
	query := `
		INSERT INTO contributions (item_id, contributor_user_id, contributor_alias, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	c.CreatedAt = time.Now()
	err := t.tx.QueryRowContext(ctx, query,
		c.ItemID,
		c.Contributor.UserIDPtr(),
		c.Contributor.Alias,
		c.Amount,
		c.CreatedAt,
	).Scan(&c.ID)

	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}

	return nil
}

func (t *ledgerTx) ListContributions(ctx context.Context, itemID int64) ([]models.Contribution, error) {
	query := `
		SELECT id, item_id, contributor_user_id, contributor_alias, amount, created_at
		FROM contributions
		WHERE item_id = $1
		ORDER BY id ASC`

	rows, err := t.tx.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	var contributions []models.Contribution
	for rows.Next() {
		var (
			c      models.Contribution
			userID sql.NullInt64
			alias  string
		)
		if err := rows.Scan(&c.ID, &c.ItemID, &userID, &alias, &c.Amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		var uid *int64
		if userID.Valid {
			uid = &userID.Int64
		}
		c.Contributor = models.ContributorFromRow(uid, alias)
		contributions = append(contributions, c)
	}

	return contributions, rows.Err()
}

func (t *ledgerTx) AvailableCredits(ctx context.Context, userID, wishlistID int64) ([]models.ContributionCredit, error) {
	query := `
		SELECT id, user_id, wishlist_id, source_item_id, amount, status, created_at, updated_at
		FROM contribution_credits
		WHERE user_id = $1 AND wishlist_id = $2 AND status = 'available' AND amount > 0
		ORDER BY id ASC
		FOR UPDATE`

	rows, err := t.tx.QueryContext(ctx, query, userID, wishlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution credits: %w", err)
	}
	defer rows.Close()

	var credits []models.ContributionCredit
	for rows.Next() {
		var (
			c            models.ContributionCredit
			sourceItemID sql.NullInt64
			status       string
		)
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.WishlistID,
			&sourceItemID,
			&c.Amount,
			&status,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contribution credit: %w", err)
		}
		c.Status = models.CreditStatus(status)
		if sourceItemID.Valid {
			id := sourceItemID.Int64
			c.SourceItemID = &id
		}
		credits = append(credits, c)
	}

	return credits, rows.Err()
}

func (t *ledgerTx) UpdateCredit(ctx context.Context, credit models.ContributionCredit) error {
	// The status guard keeps spent credits from ever coming back.
	query := `
		UPDATE contribution_credits
		SET amount = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'available' AND amount >= $2`

	result, err := t.tx.ExecContext(ctx, query, credit.ID, credit.Amount, string(credit.Status))
	if err != nil {
		return fmt.Errorf("failed to update contribution credit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("contribution credit %d is no longer available", credit.ID)
	}

	return nil
}

func (t *ledgerTx) InsertActivity(ctx context.Context, n *models.ActivityNotification) error {
	query := `
		INSERT INTO user_activity_notifications (user_id, wishlist_id, source_item_title, moved_amount, refunded_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	n.CreatedAt = time.Now()
	err := t.tx.QueryRowContext(ctx, query,
		n.UserID,
		n.WishlistID,
		n.SourceItemTitle,
		n.MovedAmount,
		n.RefundedAmount,
		n.CreatedAt,
	).Scan(&n.ID)

	if err != nil {
		return fmt.Errorf("failed to insert activity notification: %w", err)
	}

	return nil
}

func (t *ledgerTx) DeleteItem(ctx context.Context, itemID int64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM wishlist_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist item: %w", err)
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
