package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdFilter = "filter"
	cmdMore   = "more"

	actionPick = "pick"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, arg, ok := strings.Cut(data, ":")
	if !ok || arg == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case actionPick:
		kind, ok := b.registry.ByLabel(arg)
		if !ok {
			b.log.Warn("unknown filter label", "chat_id", chatID, "label", arg)
			return
		}
		c := b.chat(ctx, chatID)
		c.awaiting = nil
		b.pickKind(c, kind, "")
		b.persist(ctx, c)
	case cmdMore:
		qid, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		c := b.chat(ctx, chatID)
		if cur, ok := c.session.QueryID(); !ok || cur != qid {
			b.reply(chatID, "These results are out of date. Run /search again.")
			return
		}
		b.handleMore(c)
		b.persist(ctx, c)
	}
}
