package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/notocbot/backend/internal/models"
	"github.com/notocbot/backend/internal/services"
)

const dbErrText = "Something went wrong, try again."

const maxCandidateButtons = 5

func (h *Handler) handleAdd(ctx context.Context, user *userIdentity, chatID int64, args string) {
	h.recordEntry(ctx, user, chatID, args, models.TransactionDebt)
}

func (h *Handler) handlePaid(ctx context.Context, user *userIdentity, chatID int64, args string) {
	h.recordEntry(ctx, user, chatID, args, models.TransactionCredit)
}

// recordEntry is the resolve-then-append flow. Exact matches (alias or name)
// write immediately; fuzzy matches and unknown names stash the entry as a
// pending decision and ask through an inline keyboard.
func (h *Handler) recordEntry(ctx context.Context, user *userIdentity, chatID int64, args, txType string) {
	parsed, err := ParseEntry(args)
	if err != nil {
		h.reply(chatID, err.Error(), true)
		return
	}

	debtor, candidates, kind, err := h.debtors.ResolveDebtor(ctx, user.ID, parsed.RawName, h.cfg.FuzzyThreshold)
	if err != nil {
		log.Printf("[Bot] resolve %q for user %d: %v", parsed.RawName, user.ID, err)
		h.reply(chatID, dbErrText, false)
		return
	}

	switch kind {
	case services.MatchAlias, services.MatchName:
		h.commitEntry(ctx, user, chatID, &debtor.ID, "", parsed, txType)
	case services.MatchFuzzy:
		h.askWhichDebtor(ctx, user, chatID, parsed, txType, candidates)
	default:
		h.askCreateDebtor(ctx, user, chatID, parsed, txType)
	}
}

func (h *Handler) commitEntry(ctx context.Context, user *userIdentity, chatID int64, debtorID *int64, debtorName string, parsed ParsedEntry, txType string) {
	res, err := h.debts.RecordTransaction(ctx, services.RecordParams{
		TelegramID: user.TelegramID,
		FullName:   user.FullName,
		Username:   user.Username,
		DebtorID:   debtorID,
		DebtorName: debtorName,
		Amount:     parsed.Amount,
		Type:       txType,
		Note:       parsed.Note,
	})
	if err != nil {
		log.Printf("[Bot] record for user %d: %v", user.ID, err)
		h.reply(chatID, dbErrText, false)
		return
	}

	verb := "owes you"
	if txType == models.TransactionCredit {
		verb = "paid you"
	}
	text := fmt.Sprintf("✅ *%s* %s *%s* (entry #%d).\nBalance: *%s*",
		res.Debtor.Name, verb, res.Transaction.Amount.StringFixed(2),
		res.Transaction.ID, res.Balance.StringFixed(2))
	if parsed.Note != nil {
		text += fmt.Sprintf("\nNote: %s", *parsed.Note)
	}
	h.reply(chatID, text, true)
}

func (h *Handler) askWhichDebtor(ctx context.Context, user *userIdentity, chatID int64, parsed ParsedEntry, txType string, candidates []services.Candidate) {
	token, err := h.stashPending(ctx, user, parsed, txType)
	if err != nil {
		h.reply(chatID, h.pendingErrText(err), false)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, c := range candidates {
		if i == maxCandidateButtons {
			break
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%d%%)", c.Debtor.Name, c.Score),
				fmt.Sprintf("pick:%s:%d", token, c.Debtor.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("➕ New: "+parsed.RawName, "new:"+token),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "cancel:"+token),
	})

	h.replyWithKeyboard(chatID,
		fmt.Sprintf("I don't know *%s* exactly. Did you mean:", parsed.RawName),
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (h *Handler) askCreateDebtor(ctx context.Context, user *userIdentity, chatID int64, parsed ParsedEntry, txType string) {
	token, err := h.stashPending(ctx, user, parsed, txType)
	if err != nil {
		h.reply(chatID, h.pendingErrText(err), false)
		return
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Create "+parsed.RawName, "new:"+token),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "cancel:"+token),
		),
	)
	h.replyWithKeyboard(chatID,
		fmt.Sprintf("*%s* is new to me. Create them?", parsed.RawName), kb)
}

func (h *Handler) stashPending(ctx context.Context, user *userIdentity, parsed ParsedEntry, txType string) (string, error) {
	return h.pending.Create(ctx, services.PendingDecision{
		TelegramID: user.TelegramID,
		Action:     "record",
		DebtorName: parsed.RawName,
		Amount:     parsed.Amount,
		Type:       txType,
		Note:       parsed.Note,
	})
}

// candidateKeyboard renders ranked candidates whose callback data carries
// the debtor id directly. The read and delete flows use this; only the
// entry-recording flow needs a stashed pending decision.
func candidateKeyboard(action string, candidates []services.Candidate) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, c := range candidates {
		if i == maxCandidateButtons {
			break
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%d%%)", c.Debtor.Name, c.Score),
				fmt.Sprintf("%s:%d", action, c.Debtor.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "noop"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) askWhichFor(chatID int64, action, query string, candidates []services.Candidate) {
	h.replyWithKeyboard(chatID,
		fmt.Sprintf("I don't know *%s* exactly. Did you mean:", query),
		candidateKeyboard(action, candidates))
}

func (h *Handler) pendingErrText(err error) string {
	if err == services.ErrSessionStoreUnavailable {
		return "I can't hold that question right now. Use the exact name, or add an alias with /alias."
	}
	return dbErrText
}

func (h *Handler) handleBalance(ctx context.Context, user *userIdentity, chatID int64, args string) {
	if args == "" {
		h.sendAllBalances(ctx, user, chatID)
		return
	}

	debtor, candidates, kind, err := h.debtors.ResolveDebtor(ctx, user.ID, args, h.cfg.FuzzyThreshold)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	if kind == services.MatchFuzzy && len(candidates) > 0 {
		h.askWhichFor(chatID, "bal", args, candidates)
		return
	}
	if debtor == nil {
		h.reply(chatID, fmt.Sprintf("I don't know anyone called %q.", args), false)
		return
	}

	text, err := h.debtorBalanceText(ctx, debtor)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	h.reply(chatID, text, true)
}

func (h *Handler) debtorBalanceText(ctx context.Context, debtor *models.Debtor) (string, error) {
	balance, err := h.debts.GetBalance(ctx, debtor.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("*%s*: *%s*", debtor.Name, balance.StringFixed(2)), nil
}

func (h *Handler) sendAllBalances(ctx context.Context, user *userIdentity, chatID int64) {
	balances, err := h.debts.GetAllBalances(ctx, user.ID)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	if len(balances) == 0 {
		h.reply(chatID, "Nobody owes you anything. Clean slate.", false)
		return
	}

	var b strings.Builder
	b.WriteString("📒 *Balances:*\n")
	total := decimal.Zero
	for _, bal := range balances {
		fmt.Fprintf(&b, "• %s: %s\n", bal.Name, bal.Balance.StringFixed(2))
		total = total.Add(bal.Balance)
	}
	fmt.Fprintf(&b, "\nTotal: *%s*", total.StringFixed(2))
	h.reply(chatID, b.String(), true)
}

func (h *Handler) handleHistory(ctx context.Context, user *userIdentity, chatID int64, args string) {
	if args == "" {
		h.reply(chatID, "Whose history? Use: /history name", false)
		return
	}

	debtor, candidates, kind, err := h.debtors.ResolveDebtor(ctx, user.ID, args, h.cfg.FuzzyThreshold)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	if kind == services.MatchFuzzy && len(candidates) > 0 {
		h.askWhichFor(chatID, "hist", args, candidates)
		return
	}
	if debtor == nil {
		h.reply(chatID, fmt.Sprintf("I don't know anyone called %q.", args), false)
		return
	}

	text, err := h.debtorHistoryText(ctx, debtor)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	h.reply(chatID, text, true)
}

func (h *Handler) debtorHistoryText(ctx context.Context, debtor *models.Debtor) (string, error) {
	history, err := h.debts.GetHistory(ctx, debtor.ID, h.cfg.HistoryLimit)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return fmt.Sprintf("No entries for %s yet.", debtor.Name), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🧾 *%s*, last %d:\n", debtor.Name, len(history))
	for _, t := range history {
		sign := "+"
		if t.Type == models.TransactionCredit {
			sign = "−"
		}
		fmt.Fprintf(&b, "#%d  %s%s  %s", t.ID, sign, t.Amount.StringFixed(2), t.CreatedAt.Format("02.01.2006"))
		if t.Note != nil {
			fmt.Fprintf(&b, "  (%s)", *t.Note)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (h *Handler) handleAlias(ctx context.Context, user *userIdentity, chatID int64, args string) {
	alias, realName, found := strings.Cut(args, " ")
	realName = strings.TrimSpace(realName)
	if !found || alias == "" || realName == "" {
		h.reply(chatID, "Use: /alias nickname real name", false)
		return
	}

	debtor, err := h.debtors.AddAlias(ctx, user.ID, alias, realName)
	if err != nil {
		if conflict, ok := err.(*services.AliasConflictError); ok {
			h.reply(chatID, fmt.Sprintf("%q already points at someone.", conflict.Alias), false)
			return
		}
		h.reply(chatID, dbErrText, false)
		return
	}
	if debtor == nil {
		h.reply(chatID, fmt.Sprintf("I don't know anyone called %q.", realName), false)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ %q now also means *%s*.", alias, debtor.Name), true)
}

func (h *Handler) handleDeadline(ctx context.Context, user *userIdentity, chatID int64, args string) {
	idStr, dateStr, found := strings.Cut(args, " ")
	if !found {
		h.reply(chatID, "Use: /deadline entry_id 31.12.2026", false)
		return
	}
	txID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.reply(chatID, "The entry id must be a number, see /history.", false)
		return
	}
	due, err := ParseDate(dateStr)
	if err != nil {
		h.reply(chatID, err.Error(), true)
		return
	}

	updated, err := h.deadlines.SetDueDate(ctx, user.ID, txID, &due)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	if updated == nil {
		h.reply(chatID, fmt.Sprintf("Entry #%d is not yours or does not exist.", txID), false)
		return
	}
	h.reply(chatID, fmt.Sprintf("⏰ Entry #%d is due %s.", updated.ID, due.Format("02.01.2006")), false)
}

func (h *Handler) handleDeadlines(ctx context.Context, user *userIdentity, chatID int64) {
	items, err := h.deadlines.ListUpcoming(ctx, user.ID, 0, h.cfg.DeadlineLimit)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	if len(items) == 0 {
		h.reply(chatID, "No deadlines set.", false)
		return
	}

	now := time.Now()
	var b strings.Builder
	b.WriteString("⏰ *Deadlines:*\n")
	for _, item := range items {
		marker := ""
		if item.DueDate.Before(now) {
			marker = " ⚠️ overdue"
		}
		fmt.Fprintf(&b, "#%d  %s  %s  due %s%s\n",
			item.ID, item.DebtorName, item.Amount.StringFixed(2),
			item.DueDate.Format("02.01.2006"), marker)
	}
	h.reply(chatID, b.String(), true)
}

func (h *Handler) handleDelete(ctx context.Context, user *userIdentity, chatID int64, args string) {
	txID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		h.reply(chatID, "Use: /delete entry_id (see /history).", false)
		return
	}

	deleted, err := h.debts.DeleteTransaction(ctx, user.ID, txID)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	if !deleted {
		h.reply(chatID, fmt.Sprintf("Entry #%d is not yours or does not exist.", txID), false)
		return
	}
	h.reply(chatID, fmt.Sprintf("🗑 Entry #%d deleted.", txID), false)
}

func (h *Handler) handleDeleteDebtor(ctx context.Context, user *userIdentity, chatID int64, args string) {
	if args == "" {
		h.reply(chatID, "Use: /deletedebtor name", false)
		return
	}

	debtor, candidates, kind, err := h.debtors.ResolveDebtor(ctx, user.ID, args, h.cfg.FuzzyThreshold)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	if kind == services.MatchFuzzy && len(candidates) > 0 {
		h.askWhichFor(chatID, "delwho", args, candidates)
		return
	}
	if debtor == nil {
		h.reply(chatID, fmt.Sprintf("I don't know anyone called %q.", args), false)
		return
	}

	text, kb := deleteDebtorPrompt(debtor)
	h.replyWithKeyboard(chatID, text, kb)
}

func deleteDebtorPrompt(debtor *models.Debtor) (string, tgbotapi.InlineKeyboardMarkup) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("deldebtor:%d", debtor.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Keep", "noop"),
		),
	)
	return fmt.Sprintf("Delete *%s* and their whole history?", debtor.Name), kb
}

func (h *Handler) handleDeleteAllPrompt(ctx context.Context, user *userIdentity, chatID int64) {
	count, err := h.debts.CountDebtors(ctx, user.ID)
	if err != nil {
		h.reply(chatID, dbErrText, false)
		return
	}
	if count == 0 {
		h.reply(chatID, "Nothing to delete.", false)
		return
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete everything", "delall:yes"),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Keep", "noop"),
		),
	)
	h.replyWithKeyboard(chatID,
		fmt.Sprintf("This wipes *%d* debtors and every entry. Sure?", count), kb)
}
