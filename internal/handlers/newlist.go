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

// NewListHandler handles /newlist <title>. The list gets the default
// minimum contribution and due date; the web app edits the rest.
type NewListHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewNewListHandler(svc *service.Service, logger *logrus.Logger) *NewListHandler {
	return &NewListHandler{svc: svc, logger: logger}
}

func (h *NewListHandler) Handle(ctx context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return reply(bot, message.Chat.ID, "❌ Please provide a title.\nUsage: `/newlist Olga's birthday`")
	}

	user, err := linkedUser(ctx, h.svc, message.From)
	if err != nil {
		return err
	}
	if user == nil {
		return reply(bot, message.Chat.ID, notLinkedText)
	}

	list, err := h.svc.CreateWishlist(ctx, user.ID, service.NewWishlist{Title: title})
	if err != nil {
		return replyServiceError(bot, message.Chat.ID, err)
	}

	text := fmt.Sprintf("🎁 Wishlist *%s* created!\n\nShare it with `/wishlist %s`", escape(list.Title), list.Slug)
	if list.DueAt != nil {
		text += fmt.Sprintf("\n_Open until %s._", list.DueAt.Format("2 Jan 2006"))
	}
	if err := reply(bot, message.Chat.ID, text); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":     message.Chat.ID,
		"user_id":     message.From.ID,
		"wishlist_id": list.ID,
	}).Info("Wishlist created")

	return nil
}
