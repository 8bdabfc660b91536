package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"forum_search/internal/filter"
	"forum_search/internal/model"
	"forum_search/internal/session"
)

const (
	maxMessageLen = 4000
	maxBlurbLen   = 200
)

// FormatResults renders items numbered from first, split into chunks that
// fit in a Telegram message.
func FormatResults(items []model.ResultItem, first int) []string {
	if len(items) == 0 {
		return []string{"No results on this page."}
	}
	var chunks []string
	var b strings.Builder
	for i, item := range items {
		entry := formatItem(first+i, item)
		if b.Len() > 0 && b.Len()+len(entry)+2 > maxMessageLen {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(entry)
	}
	return append(chunks, b.String())
}

func formatItem(n int, item model.ResultItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s", n, item.ThreadTitle)

	var meta []string
	if item.Username != "" {
		meta = append(meta, "by "+item.Username)
	}
	if item.ForumTitle != "" {
		meta = append(meta, "in "+item.ForumTitle)
	}
	if item.PostDate != "" {
		meta = append(meta, item.PostDate)
	}
	if len(meta) > 0 {
		b.WriteString("\n   ")
		b.WriteString(strings.Join(meta, " · "))
	}
	if item.Blurb != "" {
		b.WriteString("\n   ")
		b.WriteString(truncate(item.Blurb, maxBlurbLen))
	}
	if item.ThreadLink != "" {
		b.WriteString("\n   ")
		b.WriteString(item.ThreadLink)
	}
	return b.String()
}

// FormatPageLine describes pagination progress.
func FormatPageLine(current, total int) string {
	if current >= total {
		return fmt.Sprintf("Page %d of %d. That's all.", current, total)
	}
	return fmt.Sprintf("Page %d of %d. Use /more for the next page.", current, total)
}

// FormatFilterList lists filters numbered from 1.
func FormatFilterList(filters []filter.Filter) string {
	if len(filters) == 0 {
		return "No filters. Use /filter or /add to add one."
	}
	var b strings.Builder
	b.WriteString("Filters:\n")
	for i, f := range filters {
		fmt.Fprintf(&b, "\n%d. %s: %s", i+1, f.Kind().Label, f)
		if !f.Kind().Editable() {
			b.WriteString(" (fixed)")
		}
	}
	return b.String()
}

// FormatForums describes the forum scope of a search.
func FormatForums(ids []int) string {
	if len(ids) == 0 {
		return "all forums"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "forums " + strings.Join(parts, ", ")
}

// FormatStatus summarizes a session.
func FormatStatus(s *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", s.Status())

	query := s.Query()
	if query == "" {
		query = "(empty)"
	}
	fmt.Fprintf(&b, "Query: %s\n", query)
	fmt.Fprintf(&b, "Scope: %s\n", FormatForums(s.Forums()))
	fmt.Fprintf(&b, "Filters: %d\n", len(s.Filters()))

	if qid, ok := s.QueryID(); ok {
		cur, total := s.Page()
		fmt.Fprintf(&b, "Results: %d (query %d, page %d of %d)\n", len(s.Results()), qid, cur, total)
	}
	if err := s.Err(); err != nil {
		fmt.Fprintf(&b, "Last error: %v\n", err)
	}
	return strings.TrimRight(b.String(), "\n")
}

// KindKeyboard builds the filter menu, one button per kind.
func KindKeyboard(r *filter.Registry) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	kinds := r.Kinds()
	for i := 0; i < len(kinds); i += 2 {
		row := tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(kinds[i].Label, actionPick+":"+kinds[i].Label),
		)
		if i+1 < len(kinds) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(kinds[i+1].Label, actionPick+":"+kinds[i+1].Label))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// KindList lists the kind ids accepted by /add.
func KindList(r *filter.Registry) string {
	kinds := r.Kinds()
	ids := make([]string, len(kinds))
	for i, k := range kinds {
		ids[i] = string(k.ID)
	}
	return strings.Join(ids, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
