package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"forum_search/internal/filter"
	"forum_search/internal/model"
	"forum_search/internal/session"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Forum Search Bot!

Build a forum search from free text and filters, then page through the results.

Quick start:
1. /text <words> — what to look for in posts
2. /filter — narrow it down by user, thread, date...
3. /search — run it

Use /help for the full command reference.`)
}

// handleStartLink adds the filters carried by a /start deep link to the
// chat's query. Kinds this bot does not know are skipped.
func (b *Bot) handleStartLink(c *chat, payload string) {
	tokens, err := DecodeStartPayload(payload)
	if err != nil {
		b.log.Warn("bad start payload", "chat_id", c.id, "error", err)
		b.reply(c.id, "This link is not valid. Use /help to build a search by hand.")
		return
	}

	added := 0
	for _, t := range tokens {
		f, err := b.registry.FromToken(t)
		if err != nil {
			b.log.Warn("skipping linked filter", "chat_id", c.id, "error", err)
			continue
		}
		if f.Kind().Editable() && strings.TrimSpace(f.Param()) == "" {
			continue
		}
		if err := c.session.AddFilter(f); err != nil {
			b.replyErr(c, err)
			return
		}
		added++
	}
	b.log.Info("filters opened from link", "chat_id", c.id, "added", added, "linked", len(tokens))
	b.reply(c.id, fmt.Sprintf("Added %d of %d linked filters.\nQuery: %s\nUse /search to run it.",
		added, len(tokens), c.session.Query()))
}

// handleShare replies with a deep link that opens the current query. The
// free text travels as a text filter.
func (b *Bot) handleShare(c *chat) {
	tokens := filter.Tokens(c.session.Filters())
	if text := strings.TrimSpace(c.session.FreeText()); text != "" {
		tokens = append([]model.FilterToken{{Kind: string(filter.KindText), Param: text}}, tokens...)
	}
	if len(tokens) == 0 {
		b.reply(c.id, "Nothing to share. Set text with /text or add filters with /filter.")
		return
	}

	payload := EncodeStartPayload(tokens)
	if len(payload) > maxStartPayload {
		b.reply(c.id, "This query is too long to fit in a link.")
		return
	}
	if b.username == "" {
		b.reply(c.id, "Send this to the bot: /start "+payload)
		return
	}
	b.reply(c.id, fmt.Sprintf("https://t.me/%s?start=%s", b.username, payload))
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Query:
/text <words> — set the free text (empty clears it)
/filter — pick a filter from the menu
/add <kind> <value> — add a filter directly
/filters — show the current filters
/edit <n> <value> — change the value of filter n
/rm <n> — remove filter n
/forums <id,...> — limit to forums (empty searches all)

Search:
/search [words] — run the search
/more — fetch the next page
/retry — repeat the failed request
/cancel — stop the running request
/status — show the session state
/reset — forget the query and results
/share — get a link that opens this query

Account:
/whoami [name] — show or set your forum username

Filter kinds: `+KindList(b.registry))
}

func (b *Bot) handleWhoami(chatID int64, args string) {
	if args == "" {
		name := b.identity.Username()
		if name == "" {
			b.reply(chatID, "No forum username set. Use /whoami <name> to set one.")
			return
		}
		b.reply(chatID, fmt.Sprintf("Searching as %q.", name))
		return
	}
	b.identity.SetUsername(args)
	b.log.Info("username changed", "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("Username set to %q. Filters using it follow the change.", args))
}

func (b *Bot) handleReset(ctx context.Context, chatID int64) {
	b.drop(ctx, chatID)
	b.reply(chatID, "Session reset.")
}

func (b *Bot) handleSetText(c *chat, args string) {
	if err := c.session.SetFreeText(args); err != nil {
		b.replyErr(c, err)
		return
	}
	c.dirty = true
	if args == "" {
		b.reply(c.id, "Text cleared.")
		return
	}
	b.reply(c.id, fmt.Sprintf("Text set. Query: %s", c.session.Query()))
}

func (b *Bot) handleFilterMenu(c *chat) {
	msg := tgbotapi.NewMessage(c.id, "Choose a filter:")
	msg.ReplyMarkup = KindKeyboard(b.registry)
	b.send(msg)
}

func (b *Bot) handleAddFilter(c *chat, args string) {
	kind, value, ok := ResolveKind(b.registry, args)
	if !ok {
		b.reply(c.id, "Usage: /add <kind> <value>\nKinds: "+KindList(b.registry))
		return
	}
	b.pickKind(c, kind, value)
}

// pickKind adds a filter of kind, or asks for its value when none was given.
func (b *Bot) pickKind(c *chat, kind *filter.Kind, value string) {
	if !kind.Editable() {
		if v, _ := kind.FixedValue(); v == "" {
			b.reply(c.id, "Set your forum username with /whoami <name> first.")
			return
		}
		b.addFilter(c, filter.New(kind, ""))
		return
	}
	if value == "" {
		c.awaiting = kind
		b.reply(c.id, fmt.Sprintf("Send the value for %q.", kind.Hint()))
		return
	}
	b.addFilter(c, filter.New(kind, value))
}

func (b *Bot) addFilter(c *chat, f filter.Filter) {
	if err := c.session.AddFilter(f); err != nil {
		b.replyErr(c, err)
		return
	}
	b.reply(c.id, fmt.Sprintf("Filter %d added: %s\nQuery: %s", len(c.session.Filters()), f, c.session.Query()))
}

func (b *Bot) handleFilters(c *chat) {
	b.reply(c.id, FormatFilterList(c.session.Filters()))
}

func (b *Bot) handleEdit(c *chat, args string) {
	idx, value, err := ParseEditArgs(args)
	if err != nil {
		b.reply(c.id, "Usage: /edit <n> <value>")
		return
	}
	if err := c.session.EditFilter(idx, value); err != nil {
		b.replyErr(c, err)
		return
	}
	b.reply(c.id, fmt.Sprintf("Filter %d updated.\nQuery: %s", idx+1, c.session.Query()))
}

func (b *Bot) handleRemove(c *chat, args string) {
	idx, err := ParseIndexArg(args)
	if err != nil {
		b.reply(c.id, "Usage: /rm <n>")
		return
	}
	if err := c.session.RemoveFilter(idx); err != nil {
		b.replyErr(c, err)
		return
	}
	b.reply(c.id, fmt.Sprintf("Filter %d removed.", idx+1))
}

func (b *Bot) handleForums(c *chat, args string) {
	ids, err := ParseForumIDs(args)
	if err != nil {
		b.reply(c.id, fmt.Sprintf("Error: %v", err))
		return
	}
	if err := c.session.SetForums(ids); err != nil {
		b.replyErr(c, err)
		return
	}
	c.dirty = true
	b.reply(c.id, "Searching in "+FormatForums(c.session.Forums())+".")
}

func (b *Bot) handleSearch(c *chat, args string) {
	if args != "" {
		if err := c.session.SetFreeText(args); err != nil {
			b.replyErr(c, err)
			return
		}
		c.dirty = true
	}
	req, ok := b.start(c, c.session.BeginSubmit)
	if !ok {
		return
	}
	b.log.Info("search submitted", "chat_id", c.id, "query", req.Query, "forums", req.Forums)
	b.reply(c.id, fmt.Sprintf("Searching for: %s", req.Query))
}

func (b *Bot) handleMore(c *chat) {
	if c.session.Status() == session.Ready && !c.session.HasMore() {
		if _, ok := c.session.QueryID(); !ok {
			b.reply(c.id, "No results to page through.")
			return
		}
		b.reply(c.id, "No more results.")
		return
	}
	req, ok := b.start(c, c.session.BeginNextPage)
	if !ok {
		return
	}
	b.reply(c.id, fmt.Sprintf("Fetching page %d...", req.Page))
}

func (b *Bot) handleRetry(c *chat) {
	req, ok := b.start(c, c.session.Retry)
	if !ok {
		return
	}
	b.reply(c.id, fmt.Sprintf("Retrying %s...", req.Kind))
}

func (b *Bot) handleCancel(c *chat) {
	if err := c.session.Cancel(); err != nil {
		b.reply(c.id, "Nothing to cancel.")
		return
	}
	b.jobs.Abort(c.id)
	b.reply(c.id, "Cancelled.")
}

func (b *Bot) handleStatus(c *chat) {
	b.reply(c.id, FormatStatus(c.session))
}
