package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/taimast/multi-merchant/internal/domain"
)

// Notifier pushes invoice lifecycle events to an ops chat. A zero chat id
// disables it. Send failures are logged and never surfaced to the payment
// flow.
type Notifier struct {
	bot    *bot.Bot
	chatID int64
}

func NewNotifier(b *bot.Bot, chatID int64) *Notifier {
	return &Notifier{bot: b, chatID: chatID}
}

func (n *Notifier) InvoicePaid(inv *domain.Invoice) {
	n.send(fmt.Sprintf(
		"💰 *Invoice paid*\n\n*Merchant:* %s\n*User:* `%d`\n*Amount:* %s %s\n*Invoice:* `%s`",
		inv.Merchant, inv.UserID, inv.Amount, inv.Currency, inv.InvoiceID,
	))
}

func (n *Notifier) InvoiceExpired(count int64) {
	n.send(fmt.Sprintf("⌛ *Invoices expired*\n\n*Count:* %d", count))
}

func (n *Notifier) send(message string) {
	if n.bot == nil || n.chatID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      message,
		ParseMode: "Markdown",
	})
	if err != nil {
		slog.Error("failed to send telegram notification", "error", err)
	}
}
