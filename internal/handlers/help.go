package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/notify"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(_ context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *Wishfund Help*

*Gifts:*
• /newlist <title> - Create a wishlist
• /wishlist <slug> - Show items and how much is collected
• /fund <id> <amount> - Contribute to an item
• /remove <id> [reason] - Delete your item and refund contributors

*Buying:*
• /reserve <id> - Reserve a gift so nobody else picks it
• /unreserve <id> - Cancel your reservation
• /take <id> - Volunteer to buy the gift
• /release <id> - Step down as the buyer

*Inbox:*
• /activity - Show unread refund notes

_Money above an item's target moves on to other items of the same wishlist, highest priority first._`

	if err := reply(bot, message.Chat.ID, helpText); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
