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
// FundHandler – /fund <id> <amount>
// ---------------------------------------------------------------------------

// FundHandler handles the /fund command. Linked users contribute under
// their profile and spend their credits first; everyone else contributes
// anonymously under their Telegram first name.
type FundHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewFundHandler creates a new FundHandler.
func NewFundHandler(svc *service.Service, logger *logrus.Logger) *FundHandler {
	return &FundHandler{svc: svc, logger: logger}
}

// Handle processes the /fund command.
func (h *FundHandler) Handle(ctx context.Context, bot notify.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 2 {
		return reply(bot, message.Chat.ID,
			"❌ Please provide an item and an amount.\n"+
				"Usage: `/fund 12 500`")
	}

	itemID, err := parseItemID(args[0])
	if err != nil {
		return reply(bot, message.Chat.ID, "❌ "+escape(err.Error()))
	}
	amount, err := parseAmount(args[1])
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

	result, err := h.svc.Contribute(ctx, service.ContributeRequest{
		ItemID: itemID,
		Amount: amount,
		Actor:  actor,
	})
	if err != nil {
		return replyServiceError(bot, message.Chat.ID, err)
	}

	if err := reply(bot, message.Chat.ID, formatContribution(result)); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":      message.Chat.ID,
		"user_id":      message.From.ID,
		"item_id":      itemID,
		"distribution": result.Distribution,
	}).Info("Contribution made from Telegram")

	return nil
}

func formatContribution(res *service.ContributionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💸 *Thank you!* %s accepted.\n", formatAmount(res.AcceptedAmount))

	for _, line := range res.Allocations {
		marker := "↪"
		if line.Primary {
			marker = "•"
		}
		fmt.Fprintf(&sb, "%s %s to *#%d* %s\n", marker, formatAmount(line.Amount), line.ItemID, escape(line.Title))
	}

	if res.CreditUsedAmount.IsPositive() {
		fmt.Fprintf(&sb, "Paid from credits: %s, charged: %s\n", formatAmount(res.CreditUsedAmount), formatAmount(res.ChargedAmount))
	}
	if res.RefundedAmount.IsPositive() {
		fmt.Fprintf(&sb, "Not needed and refunded: %s\n", formatAmount(res.RefundedAmount))
	}
	return strings.TrimRight(sb.String(), "\n")
}
