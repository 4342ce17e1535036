package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
)

// DefaultWishlistLifetime sets the due date of lists created without one
const DefaultWishlistLifetime = 30 * 24 * time.Hour

// DefaultCurrency is the currency of new wishlists
const DefaultCurrency = "RUB"

const maxMinContribution = 1_000_000

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,60}$`)
	slugUnsafe      = regexp.MustCompile(`[^a-z0-9а-яё\s-]`)
	slugSpaces      = regexp.MustCompile(`\s+`)
	slugDashes      = regexp.MustCompile(`-+`)
)

// NewWishlist is the owner's input for a new wishlist
type NewWishlist struct {
	Title string
	// MinContribution is a whole amount; zero means the default.
	MinContribution decimal.Decimal
	// DueDate is YYYY-MM-DD; empty means DefaultWishlistLifetime from now.
	DueDate       string
	RecipientMode models.RecipientMode
	// RecipientInput is a username or a free-text name for friend lists.
	RecipientInput string
	// IsPublic defaults to true.
	IsPublic *bool
}

// makeSlug turns a title into a URL-safe slug with a random suffix
func makeSlug(title string) string {
	base := strings.ToLower(strings.TrimSpace(title))
	base = slugUnsafe.ReplaceAllString(base, "")
	base = slugSpaces.ReplaceAllString(base, "-")
	base = slugDashes.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "wishlist"
	}
	return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

func (s *Service) parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().Add(DefaultWishlistLifetime).UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, validation("due date must be YYYY-MM-DD")
	}
	return day.Add(23*time.Hour + 59*time.Minute + 59*time.Second), nil
}

// resolveRecipient fills the recipient of a friend list. A username of an
// existing user links that user; anything else is kept as a plain name.
func (s *Service) resolveRecipient(ctx context.Context, ownerID int64, list *models.Wishlist, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return validation("friend name or username is required")
	}
	if n := len([]rune(input)); n < 2 || n > 120 {
		return validation("friend name must be between 2 and 120 characters")
	}

	if usernamePattern.MatchString(input) {
		user, err := s.Users.GetByUsername(ctx, input)
		if err != nil {
			return err
		}
		if user != nil {
			if user.ID == ownerID {
				return conflict("choose self mode for your own wishlist")
			}
			id, name := user.ID, user.Alias()
			list.RecipientUserID = &id
			list.RecipientName = &name
			return nil
		}
	}

	list.RecipientName = &input
	return nil
}

// CreateWishlist publishes a new wishlist owned by ownerID
func (s *Service) CreateWishlist(ctx context.Context, ownerID int64, in NewWishlist) (*models.Wishlist, error) {
	if ownerID <= 0 {
		return nil, newError(ErrUnauthorized, "authentication required")
	}

	title := strings.TrimSpace(in.Title)
	if n := len([]rune(title)); n < 2 || n > 150 {
		return nil, validation("title must be between 2 and 150 characters")
	}

	minimum := in.MinContribution
	if minimum.IsZero() {
		minimum = models.DefaultMinContribution
	}
	if !minimum.IsInteger() || minimum.LessThan(decimal.NewFromInt(1)) || minimum.GreaterThan(decimal.NewFromInt(maxMinContribution)) {
		return nil, validation("minimum contribution must be a whole amount between 1 and %d", maxMinContribution)
	}

	due, err := s.parseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	list := &models.Wishlist{
		OwnerID:         ownerID,
		Title:           title,
		Slug:            makeSlug(title),
		IsPublic:        isPublic,
		MinContribution: money.Round(minimum),
		RecipientMode:   models.RecipientSelf,
		CurrencyCode:    DefaultCurrency,
		DueAt:           &due,
	}

	switch in.RecipientMode {
	case "", models.RecipientSelf:
	case models.RecipientFriend:
		list.RecipientMode = models.RecipientFriend
		if err := s.resolveRecipient(ctx, ownerID, list, in.RecipientInput); err != nil {
			return nil, err
		}
	default:
		return nil, validation("invalid recipient mode %q", in.RecipientMode)
	}

	created, err := s.Wishlists.Create(ctx, list)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("wishlist_id", created.ID).WithField("owner_id", ownerID).Info("Wishlist created")
	return created, nil
}

// ownedWishlist loads a wishlist only its owner may manage. Anybody else
// gets the same not-found answer as for a missing slug.
func (s *Service) ownedWishlist(ctx context.Context, slug string, actorID int64) (*models.Wishlist, error) {
	if actorID <= 0 {
		return nil, newError(ErrUnauthorized, "authentication required")
	}
	list, err := s.Wishlists.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if list == nil || list.OwnerID != actorID {
		return nil, notFound("wishlist not found")
	}
	return list, nil
}

// SetVisibility publishes or hides a wishlist
func (s *Service) SetVisibility(ctx context.Context, slug string, actorID int64, isPublic bool) (*models.Wishlist, error) {
	list, err := s.ownedWishlist(ctx, slug, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.Wishlists.SetVisibility(ctx, list.ID, isPublic); err != nil {
		return nil, err
	}
	list.IsPublic = isPublic

	s.broadcastData(list.Slug, "wishlist.visibility", map[string]any{"isPublic": isPublic})
	return list, nil
}

// DeleteWishlist removes a wishlist once its due date has passed. Items,
// contributions and credits go with it.
func (s *Service) DeleteWishlist(ctx context.Context, slug string, actorID int64) error {
	if actorID <= 0 {
		return newError(ErrUnauthorized, "authentication required")
	}
	list, err := s.Wishlists.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if list == nil {
		return notFound("wishlist not found")
	}
	if list.OwnerID != actorID {
		return forbidden("only the owner can delete the wishlist")
	}
	if !list.IsPastDue(s.now()) {
		return conflict("wishlist can be deleted only after its due date")
	}

	if err := s.Wishlists.Delete(ctx, list.ID); err != nil {
		return err
	}

	s.logger.WithField("wishlist_id", list.ID).Info("Wishlist deleted")
	s.broadcastData(list.Slug, "wishlist.deleted", map[string]any{"wishlistId": list.ID})
	return nil
}
