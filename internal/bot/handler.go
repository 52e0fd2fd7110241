// Package bot is the Telegram front end: it parses chat lines into ledger
// operations, drives the fuzzy-match confirmation flow through inline
// keyboards, and renders replies.
package bot

import (
	"context"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/notocbot/backend/internal/config"
	"github.com/notocbot/backend/internal/services"
)

type Handler struct {
	api *tgbotapi.BotAPI
	cfg *config.BotConfig

	users     *services.UserService
	debtors   *services.DebtorService
	debts     *services.DebtService
	deadlines *services.DeadlineService
	pending   *services.PendingService
}

func NewHandler(api *tgbotapi.BotAPI, cfg *config.BotConfig,
	users *services.UserService, debtors *services.DebtorService,
	debts *services.DebtService, deadlines *services.DeadlineService,
	pending *services.PendingService) *Handler {
	return &Handler{
		api:       api,
		cfg:       cfg,
		users:     users,
		debtors:   debtors,
		debts:     debts,
		deadlines: deadlines,
		pending:   pending,
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		h.HandleCallback(ctx, upd.CallbackQuery)
		return
	}

	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if !msg.Chat.IsPrivate() {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	user, err := h.upsertSender(ctx, msg.From)
	if err != nil {
		log.Printf("[Bot] upsert user %d: %v", msg.From.ID, err)
		return
	}

	if !strings.HasPrefix(text, "/") {
		// A bare "50 tuan" line records a debt, same as /add.
		h.handleAdd(ctx, user, msg.Chat.ID, text)
		return
	}

	cmd, args, _ := strings.Cut(text, " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "/start", "/help":
		h.reply(msg.Chat.ID, helpText, true)
	case "/add":
		h.handleAdd(ctx, user, msg.Chat.ID, args)
	case "/paid":
		h.handlePaid(ctx, user, msg.Chat.ID, args)
	case "/balance":
		h.handleBalance(ctx, user, msg.Chat.ID, args)
	case "/history":
		h.handleHistory(ctx, user, msg.Chat.ID, args)
	case "/alias":
		h.handleAlias(ctx, user, msg.Chat.ID, args)
	case "/deadline":
		h.handleDeadline(ctx, user, msg.Chat.ID, args)
	case "/deadlines":
		h.handleDeadlines(ctx, user, msg.Chat.ID)
	case "/delete":
		h.handleDelete(ctx, user, msg.Chat.ID, args)
	case "/deletedebtor":
		h.handleDeleteDebtor(ctx, user, msg.Chat.ID, args)
	case "/deleteall":
		h.handleDeleteAllPrompt(ctx, user, msg.Chat.ID)
	default:
		h.reply(msg.Chat.ID, "Unknown command. Try /help.", false)
	}
}

const helpText = "I keep track of who owes you.\n\n" +
	"`50 tuan - lunch` or /add — record a debt\n" +
	"/paid `30 tuan` — record a repayment\n" +
	"/balance `[name]` — balances\n" +
	"/history `name` — recent entries\n" +
	"/alias `nickname name` — extra name for a debtor\n" +
	"/deadline `id 31.12.2026` — set a due date\n" +
	"/deadlines — what is due soon\n" +
	"/delete `id`, /deletedebtor `name`, /deleteall"

func (h *Handler) upsertSender(ctx context.Context, from *tgbotapi.User) (*userIdentity, error) {
	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
	var username *string
	if from.UserName != "" {
		u := from.UserName
		username = &u
	}
	u, err := h.users.GetOrCreateUser(ctx, from.ID, fullName, username)
	if err != nil {
		return nil, err
	}
	return &userIdentity{ID: u.ID, TelegramID: u.TelegramID, FullName: u.FullName, Username: username}, nil
}

// userIdentity is what command handlers need about the sender.
type userIdentity struct {
	ID         int64
	TelegramID int64
	FullName   string
	Username   *string
}

func (h *Handler) reply(chatID int64, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("[Bot] send to %d: %v", chatID, err)
	}
}

func (h *Handler) replyWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = kb
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("[Bot] send to %d: %v", chatID, err)
	}
}
