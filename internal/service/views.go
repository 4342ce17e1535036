package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
)

// ActivityFeedLimit caps how many unread entries one fetch returns
const ActivityFeedLimit = 20

// ItemView is an item as shown to a viewer
type ItemView struct {
	ID                int64             `json:"id"`
	Title             string            `json:"title"`
	ProductURL        string            `json:"productUrl"`
	ImageURL          *string           `json:"imageUrl,omitempty"`
	TargetPrice       decimal.Decimal   `json:"targetPrice"`
	Priority          models.Priority   `json:"priority"`
	Status            models.ItemStatus `json:"itemStatus"`
	Collected         decimal.Decimal   `json:"collected"`
	ContributorsCount int               `json:"contributorsCount"`
	IsFullyFunded     bool              `json:"isFullyFunded"`
	ResponsibleUserID *int64            `json:"responsibleUserId,omitempty"`
	IsReserved        bool              `json:"isReserved"`
	IsReservedByMe    bool              `json:"isReservedByMe"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// WishlistView is a wishlist with its items and the viewer's rights
type WishlistView struct {
	ID               int64                `json:"id"`
	Title            string               `json:"title"`
	Slug             string               `json:"slug"`
	IsPublic         bool                 `json:"isPublic"`
	CurrencyCode     string               `json:"currencyCode"`
	RecipientMode    models.RecipientMode `json:"recipientMode"`
	RecipientName    *string              `json:"recipientName,omitempty"`
	MinContribution  decimal.Decimal      `json:"minContribution"`
	DueAt            *time.Time           `json:"dueAt,omitempty"`
	CanEdit          bool                 `json:"canEdit"`
	CanDelete        bool                 `json:"canDelete"`
	CanContribute    bool                 `json:"canContribute"`
	MyContributedSum *decimal.Decimal     `json:"myContributedSum,omitempty"`
	Items            []ItemView           `json:"items"`
}

// GetWishlist builds the view of a wishlist for viewerID (0 for
// anonymous viewers). Private wishlists are only visible to editors.
func (s *Service) GetWishlist(ctx context.Context, slug string, viewerID int64) (*WishlistView, error) {
	list, err := s.Wishlists.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, notFound("wishlist not found")
	}

	canEdit := viewerID > 0 && list.CanEdit(viewerID)
	if !list.IsPublic && !canEdit {
		return nil, notFound("wishlist not found")
	}

	items, err := s.Wishlists.ListItems(ctx, list.ID)
	if err != nil {
		return nil, err
	}

	view := &WishlistView{
		ID:              list.ID,
		Title:           list.Title,
		Slug:            list.Slug,
		IsPublic:        list.IsPublic,
		CurrencyCode:    list.CurrencyCode,
		RecipientMode:   list.RecipientMode,
		RecipientName:   list.RecipientName,
		MinContribution: list.MinimumContribution(),
		DueAt:           list.DueAt,
		CanEdit:         canEdit,
		CanDelete:       viewerID > 0 && list.OwnerID == viewerID && list.IsPastDue(s.now()),
		CanContribute:   viewerID <= 0 || !list.IsRecipient(viewerID),
		Items:           make([]ItemView, 0, len(items)),
	}

	for _, item := range items {
		reservedByMe := item.Reservation != nil && viewerID > 0 &&
			item.Reservation.HeldBy(models.Registered(viewerID, ""))
		view.Items = append(view.Items, ItemView{
			ID:                item.ID,
			Title:             item.Title,
			ProductURL:        item.ProductURL,
			ImageURL:          item.ImageURL,
			TargetPrice:       item.TargetPrice,
			Priority:          item.Priority,
			Status:            item.Status,
			Collected:         item.CollectedCapped(),
			ContributorsCount: item.ContributorsCount,
			IsFullyFunded:     item.IsFullyFunded(),
			ResponsibleUserID: item.ResponsibleUserID,
			IsReserved:        item.Reservation != nil,
			IsReservedByMe:    reservedByMe,
			CreatedAt:         item.CreatedAt,
		})
	}

	if viewerID > 0 {
		invested, err := s.Wishlists.InvestedTotal(ctx, viewerID, list.ID)
		if err != nil {
			return nil, err
		}
		view.MyContributedSum = &invested
	}

	return view, nil
}

// ActivityFeed returns the user's unread refund entries, newest first,
// and marks them read.
func (s *Service) ActivityFeed(ctx context.Context, userID int64) ([]*models.ActivityNotification, error) {
	if userID <= 0 {
		return nil, newError(ErrUnauthorized, "authentication required")
	}

	entries, err := s.Activity.ListUnread(ctx, userID, ActivityFeedLimit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []*models.ActivityNotification{}, nil
	}

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := s.Activity.MarkRead(ctx, userID, ids); err != nil {
		return nil, err
	}

	return entries, nil
}
