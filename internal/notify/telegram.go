package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/wishfund/internal/repository"
)

// Sender is the part of the Telegram bot API used for delivery
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDispatcher sends notifications to users that linked a Telegram
// account. Users without one are skipped silently.
type TelegramDispatcher struct {
	sender  Sender
	users   repository.UserRepository
	baseURL string
}

// NewTelegramDispatcher creates a Telegram delivery channel. baseURL is
// prepended to relative notification links.
func NewTelegramDispatcher(sender Sender, users repository.UserRepository, baseURL string) *TelegramDispatcher {
	return &TelegramDispatcher{
		sender:  sender,
		users:   users,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (d *TelegramDispatcher) Dispatch(ctx context.Context, n Notification) error {
	user, err := d.users.GetByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to look up user %d: %w", n.UserID, err)
	}
	if user == nil || user.TelegramID == nil {
		return nil
	}

	msg := tgbotapi.NewMessage(*user.TelegramID, d.format(n))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := d.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (d *TelegramDispatcher) format(n Notification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, n.Title), tgbotapi.EscapeText(tgbotapi.ModeMarkdown, n.Body))
	if n.Link != "" {
		link := n.Link
		if strings.HasPrefix(link, "/") && d.baseURL != "" {
			link = d.baseURL + link
		}
		fmt.Fprintf(&sb, "\n%s", link)
	}
	return sb.String()
}
