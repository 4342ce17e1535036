package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/service"
)

// ---------------------------------------------------------------------------
// WishlistHandler – /wishlist <slug>
// ---------------------------------------------------------------------------

// WishlistHandler handles the /wishlist command. It shows the items of a
// wishlist with what has been collected so far. Private wishlists are only
// shown to their editors.
type WishlistHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewWishlistHandler creates a new WishlistHandler.
func NewWishlistHandler(svc *service.Service, logger *logrus.Logger) *WishlistHandler {
	return &WishlistHandler{svc: svc, logger: logger}
}

// Handle processes the /wishlist command.
func (h *WishlistHandler) Handle(ctx context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return reply(bot, message.Chat.ID,
			"❌ Please provide a wishlist.\n"+
				"Usage: `/wishlist birthday-2026`")
	}

	user, err := linkedUser(ctx, h.svc, message.From)
	if err != nil {
		return err
	}
	var viewerID int64
	if user != nil {
		viewerID = user.ID
	}

	view, err := h.svc.GetWishlist(ctx, args[0], viewerID)
	if err != nil {
		return replyServiceError(bot, message.Chat.ID, err)
	}

	if err := reply(bot, message.Chat.ID, formatWishlist(view)); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
		"slug":    view.Slug,
	}).Info("Wishlist shown")

	return nil
}

var priorityIcons = map[models.Priority]string{
	models.PriorityHigh:   "🔴",
	models.PriorityMedium: "🟡",
	models.PriorityLow:    "⚪",
}

func formatWishlist(view *service.WishlistView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎁 *%s*\n", escape(view.Title))

	if len(view.Items) == 0 {
		sb.WriteString("\n_No gifts yet._")
		return sb.String()
	}

	for _, item := range view.Items {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%s *#%d* %s", priorityIcons[item.Priority], item.ID, escape(item.Title))
		// Editors do not see reservations so the gift stays a surprise.
		if item.IsReserved && !view.CanEdit {
			sb.WriteString(" 🔒")
		}
		sb.WriteString("\n")
		switch {
		case item.Status != models.ItemStatusActive:
			sb.WriteString("    _unavailable_\n")
		case item.IsFullyFunded:
			fmt.Fprintf(&sb, "    ✅ %s %s collected\n", formatAmount(item.Collected), view.CurrencyCode)
		case item.TargetPrice.IsPositive():
			fmt.Fprintf(&sb, "    %s / %s %s from %d contributors\n",
				formatAmount(item.Collected), formatAmount(item.TargetPrice), view.CurrencyCode, item.ContributorsCount)
		default:
			fmt.Fprintf(&sb, "    %s %s collected\n", formatAmount(item.Collected), view.CurrencyCode)
		}
	}

	if view.MyContributedSum != nil {
		fmt.Fprintf(&sb, "\nYou have contributed %s %s.", formatAmount(*view.MyContributedSum), view.CurrencyCode)
	}
	return sb.String()
}
