package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/service"
)

// ---------------------------------------------------------------------------
// ResponsibleHandler – /take <id>, /release <id>
// ---------------------------------------------------------------------------

// ResponsibleHandler lets a linked user volunteer to buy a gift, or step
// down again. The buyer is notified once the gift is fully funded.
type ResponsibleHandler struct {
	svc     *service.Service
	logger  *logrus.Logger
	release bool
}

// NewTakeHandler creates the /take handler.
func NewTakeHandler(svc *service.Service, logger *logrus.Logger) *ResponsibleHandler {
	return &ResponsibleHandler{svc: svc, logger: logger}
}

// NewReleaseHandler creates the /release handler.
func NewReleaseHandler(svc *service.Service, logger *logrus.Logger) *ResponsibleHandler {
	return &ResponsibleHandler{svc: svc, logger: logger, release: true}
}

// Handle processes /take and /release.
func (h *ResponsibleHandler) Handle(ctx context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return reply(bot, message.Chat.ID, "❌ Please provide an item.\nUsage: `/take 12`")
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

	text := fmt.Sprintf("🛍 You will buy item *#%d* once it is funded.", itemID)
	if h.release {
		err = h.svc.ReleaseResponsible(ctx, itemID, user.ID)
		text = fmt.Sprintf("👌 You are no longer buying item *#%d*.", itemID)
	} else {
		err = h.svc.AssignResponsible(ctx, itemID, user.ID)
	}
	if err != nil {
		return replyServiceError(bot, message.Chat.ID, err)
	}

	if err := reply(bot, message.Chat.ID, text); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
		"item_id": itemID,
		"release": h.release,
	}).Info("Responsible updated")

	return nil
}
