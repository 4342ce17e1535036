package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/service"
)

// ---------------------------------------------------------------------------
// ReserveHandler – /reserve <id>, /unreserve <id>
// ---------------------------------------------------------------------------

// ReserveHandler claims a gift, or gives the claim back. The owner never
// sees who reserved it. Unlinked users reserve under their first name and
// must cancel from the same name.
type ReserveHandler struct {
	svc    *service.Service
	logger *logrus.Logger
	cancel bool
}

// NewReserveHandler creates the /reserve handler.
func NewReserveHandler(svc *service.Service, logger *logrus.Logger) *ReserveHandler {
	return &ReserveHandler{svc: svc, logger: logger}
}

// NewUnreserveHandler creates the /unreserve handler.
func NewUnreserveHandler(svc *service.Service, logger *logrus.Logger) *ReserveHandler {
	return &ReserveHandler{svc: svc, logger: logger, cancel: true}
}

// Handle processes /reserve and /unreserve.
func (h *ReserveHandler) Handle(ctx context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		usage := "`/reserve 5`"
		if h.cancel {
			usage = "`/unreserve 5`"
		}
		return reply(bot, message.Chat.ID,
			"❌ Please provide a wish item ID.\n\nUsage: "+usage+"\n\n"+
				"_View the wishlist first with_ `/wishlist <slug>`")
	}
	itemID, err := parseItemID(args[0])
	if err != nil {
		return reply(bot, message.Chat.ID, "❌ "+escape(err.Error()))
	}

	user, err := linkedUser(ctx, h.svc, message.From)
	if err != nil {
		return err
	}
	actor := models.Anonymous(message.From.FirstName)
	if user != nil {
		actor = models.Registered(user.ID, "")
	}

	var mode service.ReservationMode
	if h.cancel {
		mode, err = h.svc.Unreserve(ctx, itemID, actor)
	} else {
		mode, err = h.svc.Reserve(ctx, itemID, actor)
	}
	if err != nil {
		return replyServiceError(bot, message.Chat.ID, err)
	}

	var text string
	switch mode {
	case service.ReservationCreated:
		text = fmt.Sprintf("🔒 Item *#%d* reserved!\n\n_The owner won't see who reserved it._", itemID)
	case service.ReservationAlreadyHeld:
		text = fmt.Sprintf("🔒 You have already reserved item *#%d*.", itemID)
	case service.ReservationReleased:
		text = fmt.Sprintf("🔓 Reservation of item *#%d* cancelled.", itemID)
	default:
		text = fmt.Sprintf("Item *#%d* is not reserved.", itemID)
	}
	if err := reply(bot, message.Chat.ID, text); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
		"item_id": itemID,
		"mode":    mode,
	}).Info("Reservation updated")

	return nil
}
