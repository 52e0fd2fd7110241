package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/notocbot/backend/internal/models"
	"github.com/notocbot/backend/internal/services"
)

func (h *Handler) HandleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	defer h.api.Request(tgbotapi.NewCallback(q.ID, ""))

	data := q.Data
	if data == "noop" {
		h.clearKeyboard(q, "Okay, nothing changed.", false)
		return
	}
	if data == "delall:yes" {
		h.confirmDeleteAll(ctx, q)
		return
	}

	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return
	}

	user, err := h.upsertSender(ctx, q.From)
	if err != nil {
		log.Printf("[Bot] callback upsert user %d: %v", q.From.ID, err)
		return
	}

	switch parts[0] {
	case "pick":
		if len(parts) != 3 {
			return
		}
		debtorID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return
		}
		h.resolvePending(ctx, user, q, parts[1], &debtorID)

	case "new":
		h.resolvePending(ctx, user, q, parts[1], nil)

	case "cancel":
		if err := h.pending.Delete(ctx, user.TelegramID, parts[1]); err != nil {
			log.Printf("[Bot] drop pending %s: %v", parts[1], err)
		}
		h.clearKeyboard(q, "Cancelled, nothing recorded.", false)

	case "deldebtor":
		debtorID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return
		}
		h.confirmDeleteDebtor(ctx, user, q, debtorID)

	case "bal":
		debtorID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return
		}
		if debtor := h.pickedDebtor(ctx, user, q, debtorID); debtor != nil {
			text, err := h.debtorBalanceText(ctx, debtor)
			if err != nil {
				h.clearKeyboard(q, dbErrText, false)
				return
			}
			h.clearKeyboard(q, text, true)
		}

	case "hist":
		debtorID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return
		}
		if debtor := h.pickedDebtor(ctx, user, q, debtorID); debtor != nil {
			text, err := h.debtorHistoryText(ctx, debtor)
			if err != nil {
				h.clearKeyboard(q, dbErrText, false)
				return
			}
			h.clearKeyboard(q, text, true)
		}

	case "delwho":
		debtorID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return
		}
		if debtor := h.pickedDebtor(ctx, user, q, debtorID); debtor != nil {
			h.showDeletePrompt(q, debtor)
		}
	}
}

// pickedDebtor loads a candidate chosen from a keyboard, re-checking
// ownership since the buttons may be stale.
func (h *Handler) pickedDebtor(ctx context.Context, user *userIdentity, q *tgbotapi.CallbackQuery, debtorID int64) *models.Debtor {
	debtor, err := h.debtors.GetDebtor(ctx, user.ID, debtorID)
	if err != nil {
		log.Printf("[Bot] load debtor %d for user %d: %v", debtorID, user.ID, err)
		h.clearKeyboard(q, dbErrText, false)
		return nil
	}
	if debtor == nil {
		h.clearKeyboard(q, "That debtor is gone.", false)
		return nil
	}
	return debtor
}

func (h *Handler) showDeletePrompt(q *tgbotapi.CallbackQuery, debtor *models.Debtor) {
	if q.Message == nil {
		return
	}
	text, kb := deleteDebtorPrompt(debtor)
	edit := tgbotapi.NewEditMessageTextAndMarkup(q.Message.Chat.ID, q.Message.MessageID, text, kb)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("[Bot] edit message: %v", err)
	}
}

// resolvePending finishes a stashed entry: debtorID picks a candidate, nil
// means create a debtor with the name as typed.
func (h *Handler) resolvePending(ctx context.Context, user *userIdentity, q *tgbotapi.CallbackQuery, token string, debtorID *int64) {
	pending, err := h.pending.Get(ctx, user.TelegramID, token)
	if err != nil {
		log.Printf("[Bot] load pending %s: %v", token, err)
		h.clearKeyboard(q, dbErrText, false)
		return
	}
	if pending == nil {
		h.clearKeyboard(q, "That question expired. Send the entry again.", false)
		return
	}

	debtorName := ""
	if debtorID == nil {
		debtorName = pending.DebtorName
	}
	res, err := h.debts.RecordTransaction(ctx, services.RecordParams{
		TelegramID: user.TelegramID,
		FullName:   user.FullName,
		Username:   user.Username,
		DebtorID:   debtorID,
		DebtorName: debtorName,
		Amount:     pending.Amount,
		Type:       pending.Type,
		Note:       pending.Note,
	})
	if err != nil {
		if err == services.ErrDebtorNotFound {
			h.clearKeyboard(q, "That debtor is gone. Send the entry again.", false)
		} else {
			log.Printf("[Bot] record pending %s: %v", token, err)
			h.clearKeyboard(q, dbErrText, false)
		}
		return
	}

	if err := h.pending.Delete(ctx, user.TelegramID, token); err != nil {
		log.Printf("[Bot] drop pending %s: %v", token, err)
	}

	verb := "owes you"
	if pending.Type == models.TransactionCredit {
		verb = "paid you"
	}
	h.clearKeyboard(q, fmt.Sprintf("✅ %s %s %s (entry #%d). Balance: %s",
		res.Debtor.Name, verb, res.Transaction.Amount.StringFixed(2),
		res.Transaction.ID, res.Balance.StringFixed(2)), false)
}

func (h *Handler) confirmDeleteDebtor(ctx context.Context, user *userIdentity, q *tgbotapi.CallbackQuery, debtorID int64) {
	deleted, err := h.debts.DeleteDebtor(ctx, user.ID, debtorID)
	if err != nil {
		log.Printf("[Bot] delete debtor %d for user %d: %v", debtorID, user.ID, err)
		h.clearKeyboard(q, dbErrText, false)
		return
	}
	if !deleted {
		h.clearKeyboard(q, "Already gone, or not yours.", false)
		return
	}
	h.clearKeyboard(q, "🗑 Debtor and history deleted.", false)
}

func (h *Handler) confirmDeleteAll(ctx context.Context, q *tgbotapi.CallbackQuery) {
	user, err := h.upsertSender(ctx, q.From)
	if err != nil {
		log.Printf("[Bot] callback upsert user %d: %v", q.From.ID, err)
		return
	}

	n, err := h.debts.DeleteAll(ctx, user.ID)
	if err != nil {
		log.Printf("[Bot] delete all for user %d: %v", user.ID, err)
		h.clearKeyboard(q, dbErrText, false)
		return
	}
	h.clearKeyboard(q, fmt.Sprintf("🗑 Deleted %d debtors. Fresh start.", n), false)
}

// clearKeyboard replaces the prompt message with a final text so the
// buttons cannot be pressed twice.
func (h *Handler) clearKeyboard(q *tgbotapi.CallbackQuery, text string, markdown bool) {
	if q.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	if markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("[Bot] edit message: %v", err)
	}
}
