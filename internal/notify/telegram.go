// Package notify delivers outbound chat notifications to debtors whose
// Telegram account is linked. Delivery is always best-effort; callers log
// failures and move on.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// Notifier sends a plain message to a Telegram chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, message string) error
}

// TelegramNotifier sends through the Bot API.
type TelegramNotifier struct {
	api *tgbotapi.BotAPI
}

func NewTelegramNotifier(api *tgbotapi.BotAPI) *TelegramNotifier {
	return &TelegramNotifier{api: api}
}

func (n *TelegramNotifier) Notify(ctx context.Context, chatID int64, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

// Nop swallows notifications. Used when the bot is not configured.
type Nop struct{}

func (Nop) Notify(context.Context, int64, string) error { return nil }

// FormatLedgerEvent renders the message a linked debtor receives after a
// ledger write that concerns them.
func FormatLedgerEvent(creditorName, txType string, amount decimal.Decimal, note *string) string {
	verb := "recorded a debt of"
	if txType == "CREDIT" {
		verb = "recorded a payment of"
	}
	msg := fmt.Sprintf("*%s* %s *%s* against you.", creditorName, verb, amount.StringFixed(2))
	if note != nil && *note != "" {
		msg += fmt.Sprintf("\nNote: %s", *note)
	}
	return msg
}
