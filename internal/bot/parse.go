package bot

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"forum_search/internal/filter"
	"forum_search/internal/model"
)

// maxStartPayload is the longest /start parameter a Telegram deep link
// carries.
const maxStartPayload = 64

// ParseIndexArg parses a 1-based filter number and returns it 0-based.
func ParseIndexArg(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("filter number is required")
	}
	n, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid filter number %q", s)
	}
	return n - 1, nil
}

// ParseEditArgs extracts a 0-based filter index and its new value.
// Format: <n> <value...>
func ParseEditArgs(args string) (int, string, error) {
	num, value, _ := strings.Cut(strings.TrimSpace(args), " ")
	idx, err := ParseIndexArg(num)
	if err != nil {
		return 0, "", err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, "", fmt.Errorf("new value cannot be empty")
	}
	return idx, value, nil
}

// ParseForumIDs parses forum ids separated by commas or spaces. An empty
// string yields no ids.
func ParseForumIDs(args string) ([]int, error) {
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ' '
	})
	var ids []int
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid forum ID %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ResolveKind finds the filter kind named at the start of args, by id or by
// label (case-insensitive), and returns the rest as the value.
func ResolveKind(r *filter.Registry, args string) (*filter.Kind, string, bool) {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil, "", false
	}

	id, rest, _ := strings.Cut(args, " ")
	if k, ok := r.ByID(filter.KindID(strings.ToLower(id))); ok {
		return k, strings.TrimSpace(rest), true
	}

	// Labels may contain spaces, so prefer the longest one that matches.
	var best *filter.Kind
	for _, k := range r.Kinds() {
		n := len(k.Label)
		if len(args) < n || !strings.EqualFold(args[:n], k.Label) {
			continue
		}
		if len(args) > n && args[n] != ' ' {
			continue
		}
		if best == nil || n > len(best.Label) {
			best = k
		}
	}
	if best == nil {
		return nil, "", false
	}
	return best, strings.TrimSpace(args[len(best.Label):]), true
}

// EncodeStartPayload packs filter tokens into a /start deep-link parameter.
// The result only uses characters Telegram accepts there.
func EncodeStartPayload(tokens []model.FilterToken) string {
	pairs := make([]string, len(tokens))
	for i, t := range tokens {
		pairs[i] = url.QueryEscape(t.Kind) + "=" + url.QueryEscape(t.Param)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(pairs, "&")))
}

// DecodeStartPayload unpacks the tokens of a deep-link parameter in order.
// Kinds are not checked here.
func DecodeStartPayload(payload string) ([]model.FilterToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var tokens []model.FilterToken
	for _, pair := range strings.Split(string(raw), "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed filter %q", pair)
		}
		kind, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("filter kind %q: %w", k, err)
		}
		param, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("filter value %q: %w", v, err)
		}
		tokens = append(tokens, model.FilterToken{Kind: kind, Param: param})
	}
	return tokens, nil
}
