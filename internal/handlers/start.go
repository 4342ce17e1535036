package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/notify"
)

// StartHandler handles the /start command
type StartHandler struct {
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		logger: logger,
	}
}

// Handle processes the /start command
func (h *StartHandler) Handle(_ context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	welcomeText := `🎁 *Welcome to Wishfund!*

Chip in on gifts together with friends. When a gift is fully funded I will let its owner know.

*Available Commands:*
• /wishlist <slug> - Show a wishlist
• /fund <id> <amount> - Contribute to a gift
• /activity - Show refunds of your contributions
• /help - Show this help message

Link your Telegram account in your profile to get notifications.`

	if err := reply(bot, message.Chat.ID, welcomeText); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent start message")

	return nil
}
