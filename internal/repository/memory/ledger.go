package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/repository"
)

type ledgerRepo struct{ s *Store }

// WithinTx holds the store lock for the whole transaction and works on a
// copy of the state, which replaces the live state only when fn succeeds.
func (r ledgerRepo) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx := &ledgerTx{store: r.s, st: r.s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	r.s.state = tx.st
	return nil
}

type ledgerTx struct {
	store *Store
	st    *state
}

func (t *ledgerTx) LockItem(_ context.Context, itemID int64) (*models.WishlistItem, *models.Wishlist, error) {
	item, ok := t.st.items[itemID]
	if !ok {
		return nil, nil, nil
	}
	list, ok := t.st.wishlists[item.WishlistID]
	if !ok {
		return nil, nil, nil
	}
	return t.st.withCollected(item), &list, nil
}

func (t *ledgerTx) ListActiveItems(_ context.Context, wishlistID int64) ([]*models.WishlistItem, error) {
	return t.st.itemsOf(wishlistID, true), nil
}

func (t *ledgerTx) InsertContribution(_ context.Context, c *models.Contribution) error {
	if _, ok := t.st.items[c.ItemID]; !ok {
		return fmt.Errorf("failed to insert contribution: item %d not found", c.ItemID)
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("failed to insert contribution: amount must be positive")
	}
	c.ID = t.st.id()
	c.CreatedAt = t.store.now()
	t.st.contributions[c.ID] = *c
	return nil
}

func (t *ledgerTx) ListContributions(_ context.Context, itemID int64) ([]models.Contribution, error) {
	return t.st.contributionsOf(itemID), nil
}

func (t *ledgerTx) AvailableCredits(_ context.Context, userID, wishlistID int64) ([]models.ContributionCredit, error) {
	var out []models.ContributionCredit
	for _, c := range t.st.credits {
		if c.UserID == userID && c.WishlistID == wishlistID &&
			c.Status == models.CreditAvailable && c.Amount.IsPositive() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *ledgerTx) UpdateCredit(_ context.Context, credit models.ContributionCredit) error {
	current, ok := t.st.credits[credit.ID]
	if !ok || current.Status != models.CreditAvailable || current.Amount.LessThan(credit.Amount) {
		return fmt.Errorf("contribution credit %d is no longer available", credit.ID)
	}
	current.Amount = credit.Amount
	current.Status = credit.Status
	current.UpdatedAt = t.store.now()
	t.st.credits[credit.ID] = current
	return nil
}

func (t *ledgerTx) InsertActivity(_ context.Context, n *models.ActivityNotification) error {
	n.ID = t.st.id()
	n.CreatedAt = t.store.now()
	t.st.activity[n.ID] = *n
	return nil
}

func (t *ledgerTx) DeleteItem(_ context.Context, itemID int64) error {
	if _, ok := t.st.items[itemID]; !ok {
		return fmt.Errorf("wishlist item with ID %d not found", itemID)
	}
	t.st.deleteItem(itemID)
	return nil
}
