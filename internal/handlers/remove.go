package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/service"
)

// ---------------------------------------------------------------------------
// RemoveHandler – /remove <id> [reason]
// ---------------------------------------------------------------------------

// RemoveHandler handles the /remove command. Only editors of the wishlist
// may remove an item; contributors are refunded.
type RemoveHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewRemoveHandler creates a new RemoveHandler.
func NewRemoveHandler(svc *service.Service, logger *logrus.Logger) *RemoveHandler {
	return &RemoveHandler{svc: svc, logger: logger}
}

// Handle processes the /remove command.
func (h *RemoveHandler) Handle(ctx context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, message.Chat.ID,
			"❌ Please provide an item.\n"+
				"Usage: `/remove 12 sold out everywhere`")
	}

	itemID, err := parseItemID(args[0])
	if err != nil {
		return reply(bot, message.Chat.ID, "❌ "+escape(err.Error()))
	}

	user, err := linkedUser(ctx, h.svc, message.From)
	if err != nil {
		return err
	}
	if user == nil {
		return reply(bot, message.Chat.ID, notLinkedText)
	}

	result, err := h.svc.RemoveItem(ctx, service.RemoveRequest{
		ItemID:  itemID,
		ActorID: user.ID,
		Reason:  strings.Join(args[1:], " "),
	})
	if err != nil {
		return replyServiceError(bot, message.Chat.ID, err)
	}

	text := fmt.Sprintf("🗑 Item *#%d* removed: %s", itemID, escape(result.Reason))
	if result.Mode == service.RemovalDeletedWithRefund {
		text += fmt.Sprintf("\n%s refunded to %d contributors.", formatAmount(result.RefundedTotal), len(result.Refunds))
	}
	if err := reply(bot, message.Chat.ID, text); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
		"item_id": itemID,
		"mode":    result.Mode,
	}).Info("Item removed from Telegram")

	return nil
}
