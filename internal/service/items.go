package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
)

// NewItem is the editor's input for a wishlist item
type NewItem struct {
	Title       string
	ProductURL  string
	ImageURL    string
	TargetPrice decimal.Decimal
	Priority    models.Priority
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validImageURL(raw string) bool {
	lower := strings.ToLower(raw)
	return validHTTPURL(raw) || (strings.HasPrefix(lower, "data:image/") && strings.Contains(lower, ";base64,"))
}

// CreateItem adds an item to a wishlist the actor may edit
func (s *Service) CreateItem(ctx context.Context, slug string, actorID int64, in NewItem) (*models.WishlistItem, error) {
	title := strings.TrimSpace(in.Title)
	if n := len([]rune(title)); n < 1 || n > 200 {
		return nil, validation("title must be between 1 and 200 characters")
	}
	if !validHTTPURL(in.ProductURL) {
		return nil, validation("invalid product URL")
	}
	if in.ImageURL != "" && !validImageURL(in.ImageURL) {
		return nil, validation("invalid image URL")
	}
	if in.TargetPrice.IsNegative() {
		return nil, validation("target price must not be negative")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, validation("invalid priority %q", priority)
	}

	list, err := s.Wishlists.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, notFound("wishlist not found")
	}
	if !list.CanEdit(actorID) {
		return nil, forbidden("forbidden")
	}

	item := &models.WishlistItem{
		WishlistID:  list.ID,
		Title:       title,
		ProductURL:  in.ProductURL,
		TargetPrice: money.Round(in.TargetPrice),
		Priority:    priority,
	}
	if in.ImageURL != "" {
		image := in.ImageURL
		item.ImageURL = &image
	}

	created, err := s.Wishlists.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("item_id", created.ID).WithField("wishlist_id", list.ID).Info("Item created")
	s.broadcast(list.Slug, "item.created", created.ID)
	return created, nil
}

// itemWithWishlist loads an item and the wishlist it belongs to
func (s *Service) itemWithWishlist(ctx context.Context, itemID int64) (*models.WishlistItem, *models.Wishlist, error) {
	if itemID <= 0 {
		return nil, nil, validation("invalid item id")
	}
	item, err := s.Wishlists.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, notFound("item not found")
	}
	list, err := s.Wishlists.GetByID(ctx, item.WishlistID)
	if err != nil {
		return nil, nil, err
	}
	if list == nil {
		return nil, nil, notFound("wishlist not found")
	}
	return item, list, nil
}

// UpdatePriority changes where the item stands in future overflow
// waterfalls.
func (s *Service) UpdatePriority(ctx context.Context, itemID, actorID int64, priority models.Priority) error {
	if !priority.IsValid() {
		return validation("invalid priority %q", priority)
	}
	_, list, err := s.itemWithWishlist(ctx, itemID)
	if err != nil {
		return err
	}
	if !list.CanEdit(actorID) {
		return forbidden("forbidden")
	}

	if err := s.Wishlists.UpdatePriority(ctx, itemID, priority); err != nil {
		return err
	}

	s.broadcast(list.Slug, "item.priority.updated", itemID)
	return nil
}

// AssignResponsible makes userID the one who buys the item once funded.
// A later volunteer replaces the previous one.
func (s *Service) AssignResponsible(ctx context.Context, itemID, userID int64) error {
	item, list, err := s.itemWithWishlist(ctx, itemID)
	if err != nil {
		return err
	}
	if !item.IsActive() {
		return conflict("item is unavailable")
	}

	if err := s.Wishlists.SetResponsible(ctx, itemID, userID); err != nil {
		return err
	}

	s.broadcast(list.Slug, "responsible.updated", itemID)
	return nil
}

// ReleaseResponsible steps userID down as the item's buyer. It is a no-op
// when someone else is responsible.
func (s *Service) ReleaseResponsible(ctx context.Context, itemID, userID int64) error {
	_, list, err := s.itemWithWishlist(ctx, itemID)
	if err != nil {
		return err
	}

	if err := s.Wishlists.ClearResponsible(ctx, itemID, userID); err != nil {
		return err
	}

	s.broadcast(list.Slug, "responsible.updated", itemID)
	return nil
}
