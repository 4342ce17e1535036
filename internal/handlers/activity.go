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
// ActivityHandler – /activity
// ---------------------------------------------------------------------------

// ActivityHandler shows the unread refund notes of the linked user and
// marks them read.
type ActivityHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(svc *service.Service, logger *logrus.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, logger: logger}
}

// Handle processes the /activity command.
func (h *ActivityHandler) Handle(ctx context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	user, err := linkedUser(ctx, h.svc, message.From)
	if err != nil {
		return err
	}
	if user == nil {
		return reply(bot, message.Chat.ID, notLinkedText)
	}

	entries, err := h.svc.ActivityFeed(ctx, user.ID)
	if err != nil {
		return replyServiceError(bot, message.Chat.ID, err)
	}

	if len(entries) == 0 {
		return reply(bot, message.Chat.ID, "📭 No new activity.")
	}

	var sb strings.Builder
	sb.WriteString("📬 *Activity*\n")
	for _, e := range entries {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "• %s", escape(e.SourceItemTitle))
		if e.WishlistTitle != "" {
			fmt.Fprintf(&sb, " (%s)", escape(e.WishlistTitle))
		}
		if e.MovedAmount.IsPositive() {
			fmt.Fprintf(&sb, ": %s moved", formatAmount(e.MovedAmount))
		}
		if e.RefundedAmount.IsPositive() {
			fmt.Fprintf(&sb, ": %s refunded", formatAmount(e.RefundedAmount))
		}
	}
	if len(entries) == service.ActivityFeedLimit {
		sb.WriteString("\n\nSend /activity again for more.")
	}

	if err := reply(bot, message.Chat.ID, sb.String()); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
		"count":   len(entries),
	}).Info("Activity shown")

	return nil
}
