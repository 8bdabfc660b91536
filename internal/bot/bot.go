package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"forum_search/internal/config"
	"forum_search/internal/filter"
	"forum_search/internal/identity"
	"forum_search/internal/model"
	"forum_search/internal/scheduler"
	"forum_search/internal/session"
	"forum_search/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// dispatcher runs session requests off the update loop.
type dispatcher interface {
	Enqueue(job scheduler.Job) error
	Abort(chatID int64)
	Completions() <-chan scheduler.Completion
}

// chat is the per-chat state owned by the update loop.
type chat struct {
	id       int64
	session  *session.Session
	awaiting *filter.Kind // kind waiting for its parameter
	lastSeen time.Time
	dirty    bool
}

// Bot is the Telegram front end. All sessions are created, mutated and torn
// down on the goroutine running Run.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	cfg      *config.Config
	registry *filter.Registry
	identity *identity.Store
	jobs     dispatcher
	log      *slog.Logger

	// username is the bot's own Telegram name, used in share links.
	username string

	chats map[int64]*chat
	now   func() time.Time
}

// New creates a Bot with the given Telegram token.
func New(token string, store storage.Storage, cfg *config.Config, ident *identity.Store, jobs *scheduler.Scheduler, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, store, cfg, ident, jobs, log)
	b.username = api.Self.UserName
	return b, nil
}

func newBot(api telegramAPI, store storage.Storage, cfg *config.Config, ident *identity.Store, jobs dispatcher, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		cfg:      cfg,
		registry: filter.NewRegistry(ident),
		identity: ident,
		jobs:     jobs,
		log:      log,
		chats:    make(map[int64]*chat),
		now:      time.Now,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	sweep := time.NewTicker(max(b.cfg.SessionIdleTimeout/4, time.Second))
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		case c := <-b.jobs.Completions():
			b.handleCompletion(c)
		case <-sweep.C:
			b.expireIdle(ctx)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.From == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.reply(cb.Message.Chat.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleText(ctx, msg)
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", msg.ChatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		if args == "" {
			b.handleStart(chatID)
			return
		}
	case "help":
		b.handleHelp(chatID)
		return
	case "whoami":
		b.handleWhoami(chatID, args)
		return
	case "reset":
		b.handleReset(ctx, chatID)
		return
	}

	c := b.chat(ctx, chatID)
	c.awaiting = nil

	switch cmd {
	case "start":
		b.handleStartLink(c, args)
	case "share":
		b.handleShare(c)
	case "text":
		b.handleSetText(c, args)
	case cmdFilter:
		b.handleFilterMenu(c)
	case "add":
		b.handleAddFilter(c, args)
	case "filters":
		b.handleFilters(c)
	case "edit":
		b.handleEdit(c, args)
	case "rm":
		b.handleRemove(c, args)
	case "forums":
		b.handleForums(c, args)
	case "search":
		b.handleSearch(c, args)
	case cmdMore:
		b.handleMore(c)
	case "retry":
		b.handleRetry(c)
	case "cancel":
		b.handleCancel(c)
	case "status":
		b.handleStatus(c)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
	b.persist(ctx, c)
}

// handleText takes the parameter of a filter picked from the menu.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	c, ok := b.chats[msg.Chat.ID]
	if !ok || c.awaiting == nil {
		b.reply(msg.Chat.ID, "Use /help for a list of commands.")
		return
	}
	c.lastSeen = b.now()

	value := strings.TrimSpace(msg.Text)
	if value == "" {
		b.reply(c.id, fmt.Sprintf("Send the value for %q.", c.awaiting.Hint()))
		return
	}
	kind := c.awaiting
	c.awaiting = nil
	b.addFilter(c, filter.New(kind, value))
	b.persist(ctx, c)
}

// chat returns the state for chatID, restoring its inputs from the last
// snapshot when the chat has no live session.
func (b *Bot) chat(ctx context.Context, chatID int64) *chat {
	if c, ok := b.chats[chatID]; ok {
		c.lastSeen = b.now()
		return c
	}

	c := &chat{id: chatID, session: session.New(), lastSeen: b.now()}
	b.restore(ctx, c)
	c.session.Observe(func(change filter.Change, index int) {
		b.log.Debug("filters changed", "chat_id", chatID, "change", change, "index", index)
		c.dirty = true
	})
	b.chats[chatID] = c
	return c
}

func (b *Bot) restore(ctx context.Context, c *chat) {
	snap, err := b.store.LoadSnapshot(ctx, c.id)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		b.log.Error("load snapshot", "chat_id", c.id, "error", err)
		return
	}

	set, dropped := b.registry.Restore(snap.Filters)
	for _, err := range dropped {
		b.log.Warn("dropping stored filter", "chat_id", c.id, "error", err)
	}
	// A fresh session accepts every edit.
	_ = c.session.SetFreeText(snap.FreeText)
	_ = c.session.SetForums(snap.ForumIDs)
	for _, f := range set.List() {
		_ = c.session.AddFilter(f)
	}
	c.dirty = len(dropped) > 0

	b.log.Info("session restored", "chat_id", c.id, "filters", set.Len(), "dropped", len(dropped))
}

func (b *Bot) persist(ctx context.Context, c *chat) {
	if c.session.Closed() {
		return
	}
	if !c.dirty {
		// Startup pruning goes by this time, so it must follow activity.
		if err := b.store.TouchSnapshot(ctx, c.id, c.lastSeen); err != nil {
			b.log.Error("touch snapshot", "chat_id", c.id, "error", err)
		}
		return
	}
	snap := model.Snapshot{
		ChatID:   c.id,
		FreeText: c.session.FreeText(),
		ForumIDs: c.session.Forums(),
		Filters:  filter.Tokens(c.session.Filters()),
	}
	if err := b.store.SaveSnapshot(ctx, &snap); err != nil {
		b.log.Error("save snapshot", "chat_id", c.id, "error", err)
		return
	}
	c.dirty = false
}

// drop closes the session of chatID and forgets it.
func (b *Bot) drop(ctx context.Context, chatID int64) {
	if c, ok := b.chats[chatID]; ok {
		c.session.Close()
		b.jobs.Abort(chatID)
		delete(b.chats, chatID)
	}
	if err := b.store.DeleteSnapshot(ctx, chatID); err != nil {
		b.log.Error("delete snapshot", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) expireIdle(ctx context.Context) {
	cutoff := b.now().Add(-b.cfg.SessionIdleTimeout)
	for id, c := range b.chats {
		if c.lastSeen.After(cutoff) {
			continue
		}
		b.drop(ctx, id)
		b.log.Info("session expired", "chat_id", id)
		b.reply(id, "Your search session expired. Start over with /search.")
	}
}

// handleCompletion applies a finished request to its chat's session.
func (b *Bot) handleCompletion(done scheduler.Completion) {
	c, ok := b.chats[done.ChatID]
	if !ok || !c.session.Finish(done.Request, done.Outcome) {
		b.log.Debug("discarding stale outcome", "chat_id", done.ChatID, "kind", done.Request.Kind)
		return
	}

	if err := c.session.Err(); err != nil {
		b.log.Warn("search failed", "chat_id", c.id, "error", err)
		b.reply(c.id, fmt.Sprintf("Search failed: %v\nUse /retry to try again.", err))
		return
	}

	items := done.Outcome.Items
	if done.Request.Kind == session.SearchRequest {
		items = done.Outcome.Result.Items
	}
	b.sendResults(c, items)
}

func (b *Bot) sendResults(c *chat, items []model.ResultItem) {
	qid, ok := c.session.QueryID()
	if !ok {
		b.reply(c.id, "No results.")
		return
	}
	cur, total := c.session.Page()
	first := len(c.session.Results()) - len(items) + 1

	chunks := FormatResults(items, first)
	for i, text := range chunks {
		if i < len(chunks)-1 {
			b.reply(c.id, text)
			continue
		}
		msg := tgbotapi.NewMessage(c.id, text+"\n\n"+FormatPageLine(cur, total))
		if c.session.HasMore() {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("More results", fmt.Sprintf("%s:%d", cmdMore, qid)),
				),
			)
		}
		b.send(msg)
	}
}

// start begins a request on the session and hands it to the workers.
func (b *Bot) start(c *chat, begin func() (session.Request, error)) (session.Request, bool) {
	req, err := begin()
	if err != nil {
		b.replyErr(c, err)
		return session.Request{}, false
	}
	if err := b.jobs.Enqueue(scheduler.Job{ChatID: c.id, Request: req}); err != nil {
		_ = c.session.Cancel()
		b.log.Warn("enqueue request", "chat_id", c.id, "error", err)
		b.reply(c.id, "Too many searches are running. Try again in a moment.")
		return session.Request{}, false
	}
	return req, true
}

func (b *Bot) replyErr(c *chat, err error) {
	var text string
	switch {
	case errors.Is(err, session.ErrEmptyQuery):
		text = "Nothing to search for. Set text with /text or add filters with /filter."
	case errors.Is(err, filter.ErrIndexOutOfRange):
		text = "No such filter. Use /filters to see the list."
	case errors.Is(err, filter.ErrNotEditable):
		text = "That filter cannot be edited."
	case errors.Is(err, session.ErrInvalidState):
		text = fmt.Sprintf("Not possible while the search is %s.", c.session.Status())
		if c.session.Status() == session.Submitting || c.session.Status() == session.FetchingNextPage {
			text += " Use /cancel to stop it."
		}
	default:
		text = fmt.Sprintf("Error: %v", err)
	}
	b.reply(c.id, text)
}
