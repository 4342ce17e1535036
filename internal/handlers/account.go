package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/service"
)

const notLinkedText = "🔗 Your Telegram account is not linked to a wishlist profile yet.\n" +
	"Link it in the profile settings on the site, then try again."

// reply sends a Markdown message to the chat
func reply(bot notify.Sender, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// replyServiceError shows a rejection to the user. Unexpected errors are
// returned so the router can log them.
func replyServiceError(bot notify.Sender, chatID int64, err error) error {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		return reply(bot, chatID, "❌ "+escape(svcErr.Message))
	}
	return err
}

// linkedUser returns the profile linked to the Telegram sender, or nil
func linkedUser(ctx context.Context, svc *service.Service, from *tgbotapi.User) (*models.User, error) {
	user, err := svc.Users.GetByTelegramID(ctx, from.ID)
	if err != nil {
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}
	return user, nil
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatAmount(v decimal.Decimal) string {
	return v.StringFixed(money.Places)
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item ID %q", raw)
	}
	return id, nil
}

// parseAmount accepts both "250.50" and "250,50"
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
